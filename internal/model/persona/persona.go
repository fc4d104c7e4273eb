package persona

import "fmt"

// FeelaID identifies the mood companion persona.
const FeelaID = "feela"

// Persona captures the companion attributes exposed to the frontend and the
// language model.
type Persona struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Tone         string   `json:"tone"`
	SystemPrompt string   `json:"-"`
	OpeningLine  string   `json:"openingLine"`
	Description  string   `json:"description,omitempty"`
	Traits       []string `json:"traits,omitempty"`
}

// Welcome 返回登录后展示给用户的欢迎语。
func (p Persona) Welcome(username string) string {
	return fmt.Sprintf(p.OpeningLine, username)
}

// Seed provides the built-in personas.
func Seed() []Persona {
	return []Persona{
		{
			ID:           FeelaID,
			Name:         "Feela",
			Title:        "Your Mood Companion",
			Tone:         "kind, casual, friendly",
			SystemPrompt: "You are Feela, a kind, casual, friendly mood companion chatbot.",
			OpeningLine:  "Hello %s, I’m Feela. Tell me how you feel today!",
			Description:  "A friendly mood companion that listens, cheers you on and suggests small steps when you feel low.",
			Traits:       []string{"kind", "casual", "encouraging"},
		},
	}
}
