package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Generator answers prompts through the chat completions endpoint.
type Generator struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	logger   *zap.Logger
}

// NewGenerator creates a chat completion generator.
func NewGenerator(cfg *Config) *Generator {
	return &Generator{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Generate sends the system instruction and the prompt as one chat turn.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
		User:     g.user,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("chat completion: %w", ctx.Err())
		}
		return "", parseAPIError(err, domain.ErrGenerationError)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion: %w", domain.ErrGenerationError)
	}

	g.logger.Debug("Completion created",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Duration("duration", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
