// Package embedding wraps the embedding provider with the limits every caller relies on:
// bounded batches, per-batch timeouts, dimension checks and token budgets.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

// DefaultBatchSize bounds the number of texts sent in one provider call.
const DefaultBatchSize = 64

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// Options tune the instrumented embedder. Zero values pick defaults.
type Options struct {
	// BatchSize bounds texts per provider call.
	BatchSize int
	// BatchTimeout bounds one provider call; expiry is a transient failure.
	BatchTimeout time.Duration
	// Dimensions pins the expected vector size; 0 pins it to the first vector this
	// embedder returns, for its whole lifetime.
	Dimensions int
}

// InstrumentedEmbedder wraps Embedder with batching, timeouts, dimension checks and budgets.
// Transport metrics (requests, duration, tokens) are recorded in the provider adapters.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	budget   BudgetChecker
	opts     Options
	dims     atomic.Int64
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, opts Options, logger *zap.Logger,
) *InstrumentedEmbedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	p := &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		opts:     opts,
		logger:   logger,
	}
	p.dims.Store(int64(max(opts.Dimensions, 0)))
	return p
}

// BatchSize returns the effective batch size.
func (p *InstrumentedEmbedder) BatchSize() int { return p.opts.BatchSize }

// Embed checks budget, delegates to the inner embedder, and records usage.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := p.checkBudget(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	callCtx, cancel := p.callContext(ctx)
	result, err := p.inner.Embed(callCtx, text)
	cancel()
	duration := time.Since(start)

	if err != nil {
		err = p.classify(ctx, err)
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if err := p.checkDim(len(result.Embedding)); err != nil {
		return domain.EmbeddingResult{}, err
	}

	p.record(ctx, result.TotalTokens)
	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed splits texts into bounded batches, checking the budget before each one.
// Every returned vector has the same dimension; drift between batches is an integrity error.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for offset := 0; offset < len(texts); offset += p.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed at %d: %w", offset, err)
		}
		if err := p.checkBudget(ctx, len(texts)); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}

		batch := texts[offset:min(offset+p.opts.BatchSize, len(texts))]
		res, err := p.embedBatch(ctx, batch)
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("batch_offset", offset),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed at %d: %w", offset, err)
		}

		for i, v := range res.Embeddings {
			if err := p.checkDim(len(v)); err != nil {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("text %d: %w", offset+i, err)
			}
		}

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
		p.record(ctx, res.TotalTokens)
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("texts", len(texts)),
		zap.Int64("dimensions", p.dims.Load()),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// Dimensions returns the pinned vector size, or 0 before the first vector is seen.
func (p *InstrumentedEmbedder) Dimensions() int { return int(p.dims.Load()) }

// checkDim pins the first observed size and rejects any later vector that differs.
func (p *InstrumentedEmbedder) checkDim(n int) error {
	want := p.dims.Load()
	if want == 0 && n > 0 && p.dims.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want == 0 {
		want = p.dims.Load()
	}
	if n == 0 || int64(n) != want {
		return domain.NewDimMismatch(int(want), n)
	}
	return nil
}

// HealthCheck forwards to the inner embedder.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (p *InstrumentedEmbedder) embedBatch(ctx context.Context, batch []string) (domain.BatchEmbeddingResult, error) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	res, err := domain.EmbedBatch(callCtx, p.inner, batch)
	if err != nil {
		return domain.BatchEmbeddingResult{}, p.classify(ctx, err)
	}
	return res, nil
}

func (p *InstrumentedEmbedder) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.BatchTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.opts.BatchTimeout)
}

// classify marks a per-call timeout as transient. Cancellation of the parent context
// passes through unchanged.
func (p *InstrumentedEmbedder) classify(parent context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "timeout").Inc()
		return fmt.Errorf("provider call exceeded %s: %w: %w", p.opts.BatchTimeout, domain.ErrTransient, err)
	}
	return err
}

func (p *InstrumentedEmbedder) checkBudget(ctx context.Context, texts int) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx); err != nil {
		p.logger.Error("Budget exceeded",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Int("texts", texts),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (p *InstrumentedEmbedder) record(ctx context.Context, tokens int) {
	domain.UsageFromContext(ctx).AddTokens(tokens)
	if p.budget == nil || tokens <= 0 {
		return
	}
	p.budget.Record(int64(tokens))
	remaining := metrics.EmbeddingBudgetTokensRemaining
	remaining.WithLabelValues(p.provider, "daily").Set(float64(p.budget.RemainingDaily()))
	remaining.WithLabelValues(p.provider, "monthly").Set(float64(p.budget.RemainingMonthly()))
}
