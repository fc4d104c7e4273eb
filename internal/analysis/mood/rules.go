package mood

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ExercisePlaceholder = "{exercise}"
	SnackPlaceholder    = "{snack}"
)

// ErrInvalidRules is wrapped by every rule table validation failure.
var ErrInvalidRules = errors.New("invalid rule table")

//go:embed rules.yaml
var defaultRules []byte

// Vocabulary pairs trigger words with the replies they unlock.
type Vocabulary struct {
	Words   []string `yaml:"words"`
	Replies []string `yaml:"replies"`
}

// Rule binds a mood to the keywords that select it.
type Rule struct {
	Mood     Mood     `yaml:"mood"`
	Keywords []string `yaml:"keywords"`
}

// Replies holds the mood-conditioned reply material.
type Replies struct {
	Happy    []string `yaml:"happy"`
	Sad      string   `yaml:"sad"`
	Angry    string   `yaml:"angry"`
	Fallback string   `yaml:"fallback"`
}

// RuleSet is the complete scripted behaviour of the companion. Moods are
// kept as an ordered slice: Classify returns the first declared mood with a
// matching keyword, so order in the table is significant.
type RuleSet struct {
	Greetings Vocabulary `yaml:"greetings"`
	Thanks    Vocabulary `yaml:"thanks"`
	Moods     []Rule     `yaml:"moods"`
	Replies   Replies    `yaml:"replies"`
	Exercises []string   `yaml:"exercises"`
	Snacks    []string   `yaml:"snacks"`

	greetingSet map[string]struct{}
}

// Default returns the embedded rule table.
func Default() *RuleSet {
	rs, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rules.yaml: %v", err))
	}
	return rs
}

// Load reads the rule table at path, or returns Default when path is empty.
func Load(path string) (*RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule table: %w", err)
	}

	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and validates a YAML rule table.
func Parse(data []byte) (*RuleSet, error) {
	rs := &RuleSet{}
	if err := yaml.Unmarshal(data, rs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	rs.normalize()
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (rs *RuleSet) normalize() {
	rs.Greetings.Words = lowerAll(rs.Greetings.Words)
	rs.Thanks.Words = lowerAll(rs.Thanks.Words)
	for i := range rs.Moods {
		rs.Moods[i].Mood = Mood(strings.ToLower(strings.TrimSpace(string(rs.Moods[i].Mood))))
		rs.Moods[i].Keywords = lowerAll(rs.Moods[i].Keywords)
	}

	rs.greetingSet = make(map[string]struct{}, len(rs.Greetings.Words))
	for _, w := range rs.Greetings.Words {
		rs.greetingSet[w] = struct{}{}
	}
}

func (rs *RuleSet) validate() error {
	switch {
	case len(rs.Greetings.Words) == 0 || len(rs.Greetings.Replies) == 0:
		return fmt.Errorf("%w: greetings need words and replies", ErrInvalidRules)
	case len(rs.Thanks.Words) == 0 || len(rs.Thanks.Replies) == 0:
		return fmt.Errorf("%w: thanks need words and replies", ErrInvalidRules)
	case len(rs.Replies.Happy) == 0:
		return fmt.Errorf("%w: no happy replies", ErrInvalidRules)
	case len(rs.Exercises) == 0 || len(rs.Snacks) == 0:
		return fmt.Errorf("%w: exercises and snacks must not be empty", ErrInvalidRules)
	case strings.TrimSpace(rs.Replies.Fallback) == "":
		return fmt.Errorf("%w: fallback reply is empty", ErrInvalidRules)
	case !strings.Contains(rs.Replies.Sad, ExercisePlaceholder) || !strings.Contains(rs.Replies.Sad, SnackPlaceholder):
		return fmt.Errorf("%w: sad reply must contain %s and %s", ErrInvalidRules, ExercisePlaceholder, SnackPlaceholder)
	case !strings.Contains(rs.Replies.Angry, ExercisePlaceholder):
		return fmt.Errorf("%w: angry reply must contain %s", ErrInvalidRules, ExercisePlaceholder)
	}

	seen := make(map[Mood]bool, len(rs.Moods))
	for _, rule := range rs.Moods {
		if !rule.Mood.Valid() {
			return fmt.Errorf("%w: unknown mood %q", ErrInvalidRules, rule.Mood)
		}
		if seen[rule.Mood] {
			return fmt.Errorf("%w: mood %q declared twice", ErrInvalidRules, rule.Mood)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("%w: mood %q has no keywords", ErrInvalidRules, rule.Mood)
		}
		seen[rule.Mood] = true
	}
	for i, m := range All() {
		if !seen[m] {
			return fmt.Errorf("%w: mood %q missing", ErrInvalidRules, m)
		}
		if rs.Moods[i].Mood != m {
			return fmt.Errorf("%w: mood %q declared at position %d, want %q", ErrInvalidRules, rs.Moods[i].Mood, i+1, m)
		}
	}
	return nil
}

// IsGreeting reports whether any whitespace-separated word of text is a
// greeting. Words keep their punctuation, so "hi!" does not count.
func (rs *RuleSet) IsGreeting(text string) bool {
	for _, token := range strings.Fields(strings.ToLower(text)) {
		if _, ok := rs.greetingSet[token]; ok {
			return true
		}
	}
	return false
}

// IsThanks reports whether a thanks phrase appears anywhere in text.
func (rs *RuleSet) IsThanks(text string) bool {
	return containsAny(strings.ToLower(text), rs.Thanks.Words)
}

// Classify returns the first declared mood with a keyword contained in
// text, or Neutral when nothing matches.
func (rs *RuleSet) Classify(text string) Mood {
	normalized := strings.ToLower(text)
	for _, rule := range rs.Moods {
		if containsAny(normalized, rule.Keywords) {
			return rule.Mood
		}
	}
	return Neutral
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		out = append(out, w)
	}
	return out
}
