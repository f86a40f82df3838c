package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

const provider = "gemini"

// Embedder vectorizes text with a Gemini embedding model.
type Embedder struct {
	models     models
	model      string
	dimensions int
	maxRetries int
	logger     *zap.Logger
}

// NewEmbedder creates an Embedder configured for the Gemini API backend.
func NewEmbedder(ctx context.Context, cfg *Config) (*Embedder, error) {
	m, err := newModels(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newEmbedder(m, cfg), nil
}

func newEmbedder(m models, cfg *Config) *Embedder {
	e := &Embedder{
		models:     m,
		model:      strings.TrimSpace(cfg.Model),
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
	if e.model == "" {
		e.model = defaultEmbedModel
	}
	if e.maxRetries <= 0 {
		e.maxRetries = defaultMaxRetries
	}
	return e
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

// BatchEmbed embeds every text in one request. The API reports no token usage.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}
	config := &genai.EmbedContentConfig{}
	if e.dimensions > 0 {
		dims := int32(e.dimensions) //nolint:gosec // configured, small
		config.OutputDimensionality = &dims
	}

	start := time.Now()
	var resp *genai.EmbedContentResponse
	err := retry(ctx, e.maxRetries, e.logger, func() error {
		var err error
		resp, err = e.models.EmbedContent(ctx, e.model, contents, config)
		return err //nolint:wrapcheck // classified below
	})
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, e.model, "api_error").Inc()
		return domain.BatchEmbeddingResult{}, classify(ctx, err, domain.ErrEmbeddingProviderError)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, e.model, "empty_response").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"got %d embeddings for %d texts: %w", got, len(texts), domain.ErrEmbeddingProviderError)
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"empty embedding for text %d: %w", i, domain.ErrEmbeddingProviderError)
		}
		out.Embeddings[i] = emb.Values
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, e.model).Observe(time.Since(start).Seconds())
	return out, nil
}

// HealthCheck verifies the model is reachable.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.models.Get(ctx, e.model, nil); err != nil {
		return fmt.Errorf("get model %s: %w", e.model, err)
	}
	return nil
}
