package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/analysis/mood"
	"github.com/feela-app/feela/backend/internal/middleware"
	"github.com/feela-app/feela/backend/internal/model/chat"
	"github.com/feela-app/feela/backend/internal/model/persona"
	"github.com/feela-app/feela/backend/internal/service/account"
	chatservice "github.com/feela-app/feela/backend/internal/service/chat"
	"github.com/feela-app/feela/backend/internal/service/companion"
	"github.com/feela-app/feela/backend/internal/service/session"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type fixture struct {
	url      string
	token    string
	sess     chat.Session
	sessions *session.Manager
	chats    *chatservice.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	accounts := account.NewService()
	require.NoError(t, accounts.Register(ctx, "ada", "pw"))
	chats := chatservice.NewService(accounts)
	require.NoError(t, chats.Ensure(ctx, "ada"))

	sessions := session.NewManager([]byte("test-secret"), time.Hour)
	token, sess, err := sessions.Issue(ctx, "ada")
	require.NoError(t, err)

	engine := companion.NewEngine(mood.Default(), companion.WithRandom(companion.NewRandom(7)))
	feela := persona.Seed()[0]
	handler := NewWebSocketHandler(chats, engine, sessions, feela, zap.NewNop())

	r := chi.NewRouter()
	r.Group(func(protected chi.Router) {
		protected.Use(middleware.NewAuth(sessions, "feela_session", zap.NewNop()).Require)
		handler.RegisterRoutes(protected)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &fixture{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		token:    token,
		sess:     sess,
		sessions: sessions,
		chats:    chats,
	}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.token)
	conn, resp, err := websocket.DefaultDialer.Dial(f.url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketConversation(t *testing.T) {
	verifyNoLeaks(t)

	f := newFixture(t)
	conn := f.dial(t)

	hello := readFrame(t, conn)
	require.Equal(t, "connected", hello.Type)
	assert.Contains(t, string(hello.Data), "Hello ada")

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "message", Text: "I feel so tired"}))
	reply := readFrame(t, conn)
	require.Equal(t, "reply", reply.Type)

	var exchange map[string]chat.Message
	require.NoError(t, json.Unmarshal(reply.Data, &exchange))
	assert.Equal(t, chat.SpeakerUser, exchange["user"].Speaker)
	assert.Equal(t, "I feel so tired", exchange["user"].Content)
	assert.Equal(t, chat.SpeakerBot, exchange["bot"].Speaker)
	assert.Equal(t, string(mood.Sad), exchange["bot"].Mood)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "transcript"}))
	transcript := readFrame(t, conn)
	require.Equal(t, "transcript", transcript.Type)
	var messages []chat.Message
	require.NoError(t, json.Unmarshal(transcript.Data, &messages))
	assert.Len(t, messages, 2)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "reset"}))
	assert.Equal(t, "cleared", readFrame(t, conn).Type)

	got, err := f.chats.Transcript(context.Background(), "ada")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	verifyNoLeaks(t)

	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "message"}))
	empty := readFrame(t, conn)
	assert.Equal(t, "error", empty.Type)
	assert.Contains(t, string(empty.Data), "text is required")

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "dance"}))
	unknown := readFrame(t, conn)
	assert.Equal(t, "error", unknown.Type)
	assert.Contains(t, string(unknown.Data), "dance")
}

func TestWebSocketClosesAfterLogout(t *testing.T) {
	verifyNoLeaks(t)

	f := newFixture(t)
	conn := f.dial(t)
	readFrame(t, conn)

	require.NoError(t, f.sessions.Revoke(context.Background(), f.sess.ID))
	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "message", Text: "hi"}))

	ended := readFrame(t, conn)
	assert.Equal(t, "error", ended.Type)
	assert.Contains(t, string(ended.Data), "session ended")

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))

	got, err := f.chats.Transcript(context.Background(), "ada")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWebSocketRequiresSession(t *testing.T) {
	verifyNoLeaks(t)

	f := newFixture(t)
	_, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// verifyNoLeaks runs after every other cleanup, including the test server
// shutdown registered by newFixture.
func verifyNoLeaks(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { goleak.VerifyNone(t) })
}
