// Package companion turns a user message into Feela's reply: scripted rules
// first, the language model only for neutral messages.
package companion

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/analysis/mood"
)

// Kind tells which rule produced a reply.
type Kind string

const (
	KindGreeting Kind = "greeting"
	KindThanks   Kind = "thanks"
	KindMood     Kind = "mood"
	KindModel    Kind = "model"
	KindFallback Kind = "fallback"
)

// Reply is the outcome of Generate.
type Reply struct {
	Text string    `json:"text"`
	Kind Kind      `json:"kind"`
	Mood mood.Mood `json:"mood,omitempty"`
}

// Completer sends a single message to a language model. Any error means no
// usable answer was produced.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

// Random picks indexes for reply selection.
type Random interface {
	IntN(n int) int
}

// NewRandom returns a deterministic source for the given seed.
func NewRandom(seed uint64) Random {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type entropy struct{}

func (entropy) IntN(n int) int { return rand.IntN(n) }

// Engine generates replies. It is safe for concurrent use.
type Engine struct {
	rules   *mood.RuleSet
	model   Completer
	timeout time.Duration
	log     *zap.Logger

	mu  sync.Mutex
	rnd Random
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom injects the random source used for reply selection.
func WithRandom(r Random) Option {
	return func(e *Engine) {
		e.rnd = r
	}
}

// WithModel sets the language model used for neutral messages. Without one
// every neutral message gets the fallback reply.
func WithModel(c Completer) Option {
	return func(e *Engine) {
		e.model = c
	}
}

// WithTimeout bounds each model call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine builds an Engine over rules.
func NewEngine(rules *mood.RuleSet, opts ...Option) *Engine {
	e := &Engine{
		rules:   rules,
		timeout: 30 * time.Second,
		log:     zap.NewNop(),
		rnd:     entropy{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the rule table in use.
func (e *Engine) Rules() *mood.RuleSet {
	return e.rules
}

// Classify returns the mood of text.
func (e *Engine) Classify(text string) mood.Mood {
	return e.rules.Classify(text)
}

// Generate returns the reply to text. Greetings win over thanks, and both
// win over mood keywords. Only neutral messages reach the model.
func (e *Engine) Generate(ctx context.Context, text string) Reply {
	if e.rules.IsGreeting(text) {
		return Reply{Text: e.pick(e.rules.Greetings.Replies), Kind: KindGreeting}
	}
	if e.rules.IsThanks(text) {
		return Reply{Text: e.pick(e.rules.Thanks.Replies), Kind: KindThanks}
	}

	m := e.rules.Classify(text)
	switch m {
	case mood.Sad:
		exercise := e.pick(e.rules.Exercises)
		snack := e.pick(e.rules.Snacks)
		return Reply{Text: fill(e.rules.Replies.Sad, exercise, snack), Kind: KindMood, Mood: m}
	case mood.Happy:
		return Reply{Text: e.pick(e.rules.Replies.Happy), Kind: KindMood, Mood: m}
	case mood.Angry:
		exercise := e.pick(e.rules.Exercises)
		return Reply{Text: fill(e.rules.Replies.Angry, exercise, ""), Kind: KindMood, Mood: m}
	default:
		return e.complete(ctx, text)
	}
}

func (e *Engine) complete(ctx context.Context, text string) Reply {
	fallback := Reply{Text: e.rules.Replies.Fallback, Kind: KindFallback, Mood: mood.Neutral}
	if e.model == nil {
		e.log.Warn("no language model configured, using fallback reply")
		return fallback
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := e.model.Complete(ctx, text)
	if err != nil {
		e.log.Warn("language model call failed, using fallback reply",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return fallback
	}

	e.log.Debug("language model replied",
		zap.Int("length", len(answer)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Reply{Text: answer, Kind: KindModel, Mood: mood.Neutral}
}

func (e *Engine) pick(pool []string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pool[e.rnd.IntN(len(pool))]
}

func fill(template, exercise, snack string) string {
	return strings.NewReplacer(
		mood.ExercisePlaceholder, exercise,
		mood.SnackPlaceholder, snack,
	).Replace(template)
}
