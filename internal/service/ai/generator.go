package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/hakoke/impostor/internal/config"
)

// Generator is the sole language-model call surface the game core consumes.
// All prompt construction lives in the caller.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message, temperature float32, maxTokens int) (string, error)
}

// Service implements Generator on top of an Ark chat model.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
}

// NewService creates the Ark-backed generator.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &Service{chatModel: chatModel, cfg: cfg}, nil
}

// Generate runs one completion with the requested sampling parameters.
func (s *Service) Generate(ctx context.Context, messages []*schema.Message, temperature float32, maxTokens int) (string, error) {
	response, err := s.chatModel.Generate(ctx, messages,
		model.WithTemperature(temperature),
		model.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("failed to run chat model: %w", err)
	}

	log.Printf("[ai] generated %d chars (temp=%.2f)", len(response.Content), temperature)
	return response.Content, nil
}
