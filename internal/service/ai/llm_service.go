package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/config"
	"github.com/feela-app/feela/backend/internal/model/persona"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

// Service sends single-turn completions to the configured chat model. No
// conversation history is forwarded; every call is the persona's system
// prompt plus the raw user text.
type Service struct {
	persona persona.Persona
	chain   compose.Runnable[map[string]any, *schema.Message]
	log     *zap.Logger
}

// NewService creates the chat model from cfg and compiles the prompt chain
// for the persona identified by personaID.
func NewService(ctx context.Context, personas persona.Store, personaID string, cfg config.AIConfig, log *zap.Logger) (*Service, error) {
	p, err := persona.MustFind(personas, personaID)
	if err != nil {
		return nil, err
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return NewServiceWithModel(ctx, chatModel, p, log)
}

// NewServiceWithModel compiles the prompt chain around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, p persona.Persona, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		persona: p,
		chain:   runnable,
		log:     log,
	}, nil
}

// Complete returns the model's answer to text verbatim. Only a missing or
// zero-length answer is an error; whitespace is passed through.
func (s *Service) Complete(ctx context.Context, text string) (string, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{
		"system": s.persona.SystemPrompt,
		"query":  text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || response.Content == "" {
		return "", ErrEmptyResponse
	}

	s.log.Debug("model completion",
		zap.String("persona", s.persona.ID),
		zap.Int("length", len(response.Content)),
	)
	return response.Content, nil
}
