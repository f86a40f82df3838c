package domain

import (
	"context"
	"sync/atomic"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects token usage for a single request.
// The HTTP handler puts a collector into the context, services add to it after each
// provider call, and the handler reports the total in a response header.
type EmbeddingUsage struct {
	totalTokens atomic.Int64
	used        atomic.Bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens. Safe on a nil collector.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.totalTokens.Add(int64(n))
	u.used.Store(true)
}

// TotalTokens returns the tokens recorded so far.
func (u *EmbeddingUsage) TotalTokens() int64 {
	if u == nil {
		return 0
	}
	return u.totalTokens.Load()
}

// Used reports whether any embedding call happened, even a cache hit with zero tokens.
func (u *EmbeddingUsage) Used() bool {
	return u != nil && u.used.Load()
}
