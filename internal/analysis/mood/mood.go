// Package mood classifies chat messages into a small set of moods using an
// ordered keyword table.
package mood

// Mood 表示用户消息的情绪类别。
type Mood string

const (
	Happy   Mood = "happy"
	Sad     Mood = "sad"
	Angry   Mood = "angry"
	Neutral Mood = "neutral"
)

// All lists every mood in its canonical declaration order.
func All() []Mood {
	return []Mood{Happy, Sad, Angry, Neutral}
}

// Valid reports whether m is one of the known moods.
func (m Mood) Valid() bool {
	switch m {
	case Happy, Sad, Angry, Neutral:
		return true
	default:
		return false
	}
}

func (m Mood) String() string {
	return string(m)
}
