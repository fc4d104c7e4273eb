package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/analysis/mood"
	"github.com/feela-app/feela/backend/internal/model/chat"
	personaModel "github.com/feela-app/feela/backend/internal/model/persona"
	accountService "github.com/feela-app/feela/backend/internal/service/account"
	chatService "github.com/feela-app/feela/backend/internal/service/chat"
	"github.com/feela-app/feela/backend/internal/service/companion"
	"github.com/feela-app/feela/backend/internal/service/session"
)

type echoModel struct{}

func (echoModel) Complete(_ context.Context, text string) (string, error) {
	return "model says: " + text, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	accounts := accountService.NewService()
	feela := personaModel.Seed()[0]
	engine := companion.NewEngine(mood.Default(),
		companion.WithModel(echoModel{}),
		companion.WithRandom(companion.NewRandom(1)),
	)

	router := NewRouter(Deps{
		Personas:   personaModel.NewMemoryStore(personaModel.Seed()),
		Feela:      feela,
		Accounts:   accounts,
		Chats:      chatService.NewService(accounts),
		Sessions:   session.NewManager([]byte("router-test"), time.Hour),
		Responder:  engine,
		CookieName: "feela_session",
		Log:        zap.NewNop(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type exchange struct {
	User chat.Message `json:"user"`
	Bot  chat.Message `json:"bot"`
}

type transcript struct {
	Username string         `json:"username"`
	Messages []chat.Message `json:"messages"`
}

func login(t *testing.T, srv *httptest.Server, username string) *resty.Client {
	t.Helper()
	client := resty.New().SetBaseURL(srv.URL)

	resp, err := client.R().
		SetBody(map[string]string{"username": username, "password": "secret"}).
		Post("/api/signup")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	resp, err = client.R().
		SetBody(map[string]string{"username": username, "password": "secret"}).
		Post("/api/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
	return client
}

func say(t *testing.T, client *resty.Client, text string) exchange {
	t.Helper()
	var out exchange
	resp, err := client.R().
		SetBody(map[string]string{"text": text}).
		SetResult(&out).
		Post("/api/chat/messages")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
	return out
}

func readTranscript(t *testing.T, client *resty.Client) (int, transcript) {
	t.Helper()
	var out transcript
	resp, err := client.R().SetResult(&out).Get("/api/chat/transcript")
	require.NoError(t, err)
	return resp.StatusCode(), out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := resty.New().R().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), `"status":"ok"`)
}

func TestConversationFlow(t *testing.T) {
	srv := newTestServer(t)
	client := login(t, srv, "ada")

	greeting := say(t, client, "hello Feela")
	assert.Equal(t, string(companion.KindGreeting), greeting.Bot.Kind)
	assert.Contains(t, mood.Default().Greetings.Replies, greeting.Bot.Content)

	sad := say(t, client, "I am really tired")
	assert.Equal(t, string(mood.Sad), sad.Bot.Mood)

	neutral := say(t, client, "what is the capital of France?")
	assert.Equal(t, "model says: what is the capital of France?", neutral.Bot.Content)

	status, got := readTranscript(t, client)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada", got.Username)
	require.Len(t, got.Messages, 6)
	for i, msg := range got.Messages {
		want := chat.SpeakerUser
		if i%2 == 1 {
			want = chat.SpeakerBot
		}
		assert.Equal(t, want, msg.Speaker, fmt.Sprintf("message %d", i))
	}

	resp, err := client.R().Delete("/api/chat/transcript")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	_, got = readTranscript(t, client)
	assert.Empty(t, got.Messages)

	resp, err = client.R().Post("/api/logout")
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode())

	status, _ = readTranscript(t, client)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTranscriptsAreIsolated(t *testing.T) {
	srv := newTestServer(t)
	ada := login(t, srv, "ada")
	bob := login(t, srv, "bob")

	say(t, ada, "I feel great")

	_, adaTranscript := readTranscript(t, ada)
	_, bobTranscript := readTranscript(t, bob)
	assert.Len(t, adaTranscript.Messages, 2)
	assert.Empty(t, bobTranscript.Messages)
}

func TestEmptyMessageIsRejected(t *testing.T) {
	srv := newTestServer(t)
	client := login(t, srv, "ada")

	resp, err := client.R().SetBody(map[string]string{"text": ""}).Post("/api/chat/messages")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())

	_, got := readTranscript(t, client)
	assert.Empty(t, got.Messages)
}

func TestChatRequiresLogin(t *testing.T) {
	srv := newTestServer(t)

	resp, err := resty.New().R().
		SetBody(map[string]string{"text": "hi"}).
		Post(srv.URL + "/api/chat/messages")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func TestPersonaIsPublic(t *testing.T) {
	srv := newTestServer(t)

	resp, err := resty.New().R().Get(srv.URL + "/api/persona")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), `"name":"Feela"`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	resp, err := resty.New().R().
		SetHeader("Origin", "http://localhost:5173").
		SetHeader("Access-Control-Request-Method", http.MethodPost).
		Options(srv.URL + "/api/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, "http://localhost:5173", resp.Header().Get("Access-Control-Allow-Origin"))
}
