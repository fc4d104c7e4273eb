package chat

import "time"

// Speaker identifies who wrote a transcript entry.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerBot
}

// Message is a single transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
