package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Generator answers prompts with a Gemini model.
type Generator struct {
	models     models
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg *Config) (*Generator, error) {
	m, err := newModels(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newGenerator(m, cfg), nil
}

func newGenerator(m models, cfg *Config) *Generator {
	g := &Generator{models: m, model: strings.TrimSpace(cfg.Model), maxRetries: cfg.MaxRetries, logger: cfg.Logger}
	if g.model == "" {
		g.model = defaultGenerateModel
	}
	if g.maxRetries <= 0 {
		g.maxRetries = defaultMaxRetries
	}
	return g
}

// Generate sends the prompt with system as the system instruction and returns the
// concatenated text of the first candidate.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	var config *genai.GenerateContentConfig
	if system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}

	start := time.Now()
	var resp *genai.GenerateContentResponse
	err := retry(ctx, g.maxRetries, g.logger, func() error {
		var err error
		resp, err = g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		return err //nolint:wrapcheck // classified below
	})
	if err != nil {
		return "", classify(ctx, err, domain.ErrGenerationError)
	}

	out := candidateText(resp)
	if out == "" {
		return "", fmt.Errorf("empty gemini response: %w", domain.ErrGenerationError)
	}

	g.logger.Debug("Gemini content generated",
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// HealthCheck verifies the model is reachable.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("get model %s: %w", g.model, err)
	}
	return nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p == nil || strings.TrimSpace(p.Text) == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(strings.TrimSpace(p.Text))
		}
		break
	}
	return b.String()
}
