// Package gemini adapts the Google GenAI API to the embedding and generation contracts.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

const (
	defaultGenerateModel = "gemini-2.5-flash"
	defaultEmbedModel    = "text-embedding-004"
	defaultMaxRetries    = 2
)

// sleep is swapped in tests.
var sleep = time.Sleep

// Config holds the Gemini settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	MaxRetries int
	Logger     *zap.Logger
}

// models is the subset of genai.Models the adapters call.
type models interface {
	GenerateContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
	EmbedContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig,
	) (*genai.EmbedContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

func newModels(ctx context.Context, cfg *Config) (models, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client.Models, nil
}

// retry runs fn until it succeeds, fails permanently or the attempts run out.
func retry(ctx context.Context, attempts int, logger *zap.Logger, fn func() error) error {
	var err error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			sleep(backoff)
		}
		if err = fn(); err == nil || !temporary(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func temporary(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return false
}

// classify wraps err with the domain class. 429 is reported as ErrRateLimited.
func classify(ctx context.Context, err error, wrap error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("gemini request: %w", ctx.Err())
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			wrap = domain.ErrRateLimited
		}
		return fmt.Errorf("gemini API error %d %s: %s: %w", apiErr.Code, apiErr.Status, apiErr.Message, wrap)
	}
	return fmt.Errorf("gemini request failed: %w: %w", wrap, err)
}
