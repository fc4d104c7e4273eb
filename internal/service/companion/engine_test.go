package companion_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feela-app/feela/backend/internal/analysis/mood"
	"github.com/feela-app/feela/backend/internal/service/companion"
)

type stubModel struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  []string
}

func (s *stubModel) Complete(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	return s.answer, s.err
}

type blockingModel struct{}

func (blockingModel) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func newEngine(model companion.Completer, opts ...companion.Option) *companion.Engine {
	opts = append([]companion.Option{companion.WithModel(model)}, opts...)
	return companion.NewEngine(mood.Default(), opts...)
}

func TestGreetingRepliesFromPool(t *testing.T) {
	model := &stubModel{answer: "llm"}
	engine := newEngine(model)
	pool := engine.Rules().Greetings.Replies

	for _, text := range []string{"hi", "Hello Feela", "hey I am sad", "yo", "HIYA friend"} {
		reply := engine.Generate(context.Background(), text)
		assert.Contains(t, pool, reply.Text, text)
		assert.Equal(t, companion.KindGreeting, reply.Kind)
	}
	assert.Empty(t, model.calls)
}

func TestThanksBeatsMood(t *testing.T) {
	engine := newEngine(&stubModel{})
	pool := engine.Rules().Thanks.Replies

	for _, text := range []string{"thanks, I feel sad", "Thank you! I'm furious though", "thx"} {
		reply := engine.Generate(context.Background(), text)
		assert.Contains(t, pool, reply.Text, text)
		assert.Equal(t, companion.KindThanks, reply.Kind)
	}
}

func TestGreetingBeatsThanks(t *testing.T) {
	engine := newEngine(&stubModel{})

	reply := engine.Generate(context.Background(), "hey thanks")
	assert.Equal(t, companion.KindGreeting, reply.Kind)
}

func TestHappyReply(t *testing.T) {
	engine := newEngine(&stubModel{})

	reply := engine.Generate(context.Background(), "I feel happy and sad today")
	assert.Equal(t, mood.Happy, reply.Mood)
	assert.Contains(t, engine.Rules().Replies.Happy, reply.Text)
}

func TestSadReplyEmbedsExerciseAndSnack(t *testing.T) {
	engine := newEngine(&stubModel{})
	rules := engine.Rules()

	reply := engine.Generate(context.Background(), "I am so tired")
	require.Equal(t, mood.Sad, reply.Mood)
	assert.Equal(t, companion.KindMood, reply.Kind)
	assert.True(t, containsOneOf(reply.Text, rules.Exercises), reply.Text)
	assert.True(t, containsOneOf(reply.Text, rules.Snacks), reply.Text)
	assert.NotContains(t, reply.Text, mood.ExercisePlaceholder)
	assert.NotContains(t, reply.Text, mood.SnackPlaceholder)
}

func TestAngryReplyEmbedsExercise(t *testing.T) {
	engine := newEngine(&stubModel{})
	rules := engine.Rules()

	reply := engine.Generate(context.Background(), "I'm so annoyed right now")
	require.Equal(t, mood.Angry, reply.Mood)
	assert.True(t, containsOneOf(reply.Text, rules.Exercises), reply.Text)
	assert.False(t, containsOneOf(reply.Text, rules.Snacks))
	assert.NotContains(t, reply.Text, mood.ExercisePlaceholder)
}

func TestNeutralDelegatesToModel(t *testing.T) {
	model := &stubModel{answer: "Paris is lovely this time of year."}
	engine := newEngine(model)

	reply := engine.Generate(context.Background(), "Tell me about Paris")
	assert.Equal(t, "Paris is lovely this time of year.", reply.Text)
	assert.Equal(t, companion.KindModel, reply.Kind)
	assert.Equal(t, mood.Neutral, reply.Mood)
	assert.Equal(t, []string{"Tell me about Paris"}, model.calls)
}

func TestNeutralKeywordDelegatesToModel(t *testing.T) {
	model := &stubModel{answer: "glad to hear"}
	engine := newEngine(model)

	reply := engine.Generate(context.Background(), "I'm okay")
	assert.Equal(t, companion.KindModel, reply.Kind)
	assert.Len(t, model.calls, 1)
}

func TestEmptyInputFallsBackWhenModelFails(t *testing.T) {
	model := &stubModel{err: errors.New("401 unauthorized")}
	engine := newEngine(model)
	fallback := engine.Rules().Replies.Fallback

	for _, text := range []string{"", "   "} {
		reply := engine.Generate(context.Background(), text)
		assert.Equal(t, fallback, reply.Text)
		assert.Equal(t, companion.KindFallback, reply.Kind)
		assert.Equal(t, mood.Neutral, reply.Mood)
	}
	assert.Equal(t, []string{"", "   "}, model.calls, "raw text is forwarded unchanged")
}

func TestNoModelFallsBack(t *testing.T) {
	engine := companion.NewEngine(mood.Default())

	reply := engine.Generate(context.Background(), "what's up")
	assert.Equal(t, companion.KindFallback, reply.Kind)
	assert.Equal(t, "Feela is unable to process your text right now. Please try again.", reply.Text)
}

func TestModelCallIsBounded(t *testing.T) {
	engine := newEngine(blockingModel{}, companion.WithTimeout(20*time.Millisecond))

	start := time.Now()
	reply := engine.Generate(context.Background(), "tell me a story")
	assert.Equal(t, companion.KindFallback, reply.Kind)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSeededRandomIsDeterministic(t *testing.T) {
	texts := []string{"hi", "thanks", "great day", "I feel down", "so mad"}

	run := func() []string {
		engine := newEngine(&stubModel{}, companion.WithRandom(companion.NewRandom(42)))
		out := make([]string, 0, len(texts))
		for _, text := range texts {
			out = append(out, engine.Generate(context.Background(), text).Text)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestClassify(t *testing.T) {
	engine := newEngine(&stubModel{})

	assert.Equal(t, mood.Happy, engine.Classify("I feel happy and sad today"))
	assert.Equal(t, mood.Neutral, engine.Classify(""))
}

func TestGenerateConcurrent(t *testing.T) {
	engine := newEngine(&stubModel{answer: "ok"}, companion.WithRandom(companion.NewRandom(7)))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				engine.Generate(context.Background(), "I feel sad")
			}
		}()
	}
	wg.Wait()
}

func containsOneOf(text string, pool []string) bool {
	for _, item := range pool {
		if strings.Contains(text, item) {
			return true
		}
	}
	return false
}
