package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feela-app/feela/backend/internal/model/chat"
	"github.com/feela-app/feela/backend/internal/service/companion"
)

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrUnknownUser      = errors.New("user has not signed up")
	ErrInvalidSpeaker   = errors.New("speaker must be user or bot")
)

// Registry reports which usernames have signed up.
type Registry interface {
	Exists(username string) bool
}

// Responder produces the companion's reply to a user message.
type Responder interface {
	Generate(ctx context.Context, text string) companion.Reply
}

// Service keeps one ordered transcript per user.
type Service struct {
	users Registry
	now   func() time.Time

	mu       sync.RWMutex
	messages map[string][]chat.Message

	// turns holds one *sync.Mutex per username so that exchanges of the
	// same user never interleave.
	turns sync.Map
}

// NewService bootstraps the in-memory transcript store.
func NewService(users Registry) *Service {
	return &Service{
		users:    users,
		now:      time.Now,
		messages: make(map[string][]chat.Message),
	}
}

// Ensure creates an empty transcript for username if none exists yet.
func (s *Service) Ensure(_ context.Context, username string) error {
	if err := s.checkUser(username); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.messages[username]; !ok {
		s.messages[username] = make([]chat.Message, 0, 16)
	}
	s.mu.Unlock()
	return nil
}

// Append adds message to the end of its user's transcript and returns the
// stored copy with ID and timestamp filled in.
func (s *Service) Append(_ context.Context, message chat.Message) (chat.Message, error) {
	if err := s.checkUser(message.Username); err != nil {
		return chat.Message{}, err
	}
	if !message.Speaker.Valid() {
		return chat.Message{}, ErrInvalidSpeaker
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	s.messages[message.Username] = append(s.messages[message.Username], message)
	s.mu.Unlock()

	return message, nil
}

// Transcript returns a copy of the user's messages in insertion order.
func (s *Service) Transcript(_ context.Context, username string) ([]chat.Message, error) {
	if err := s.checkUser(username); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[username]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Reset clears the transcript of username only.
func (s *Service) Reset(_ context.Context, username string) error {
	if err := s.checkUser(username); err != nil {
		return err
	}

	s.mu.Lock()
	s.messages[username] = make([]chat.Message, 0, 16)
	s.mu.Unlock()
	return nil
}

// Exchange records text from username, asks responder for a reply and
// records that too. Both stored messages are returned. Exchanges of one
// user run one at a time, so each reply directly follows its message.
func (s *Service) Exchange(ctx context.Context, responder Responder, username, text string) (chat.Message, chat.Message, error) {
	if err := s.checkUser(username); err != nil {
		return chat.Message{}, chat.Message{}, err
	}
	turn := s.turnLock(username)
	turn.Lock()
	defer turn.Unlock()

	userMsg, err := s.Append(ctx, chat.Message{
		Username: username,
		Speaker:  chat.SpeakerUser,
		Content:  text,
	})
	if err != nil {
		return chat.Message{}, chat.Message{}, err
	}

	reply := responder.Generate(ctx, text)

	botMsg, err := s.Append(ctx, chat.Message{
		Username: username,
		Speaker:  chat.SpeakerBot,
		Content:  reply.Text,
		Mood:     string(reply.Mood),
		Kind:     string(reply.Kind),
	})
	if err != nil {
		return chat.Message{}, chat.Message{}, err
	}

	return userMsg, botMsg, nil
}

func (s *Service) turnLock(username string) *sync.Mutex {
	lock, _ := s.turns.LoadOrStore(username, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *Service) checkUser(username string) error {
	if username == "" {
		return ErrUsernameRequired
	}
	if s.users != nil && !s.users.Exists(username) {
		return ErrUnknownUser
	}
	return nil
}
