package embcache

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/jobrag/internal/db/memory"
	"github.com/kailas-cloud/jobrag/internal/domain"
)

const (
	goPosting   = "Job Title: Golang Engineer\nCompany: Acme\nLocation: Remote"
	rustPosting = "Job Title: Rust Engineer\nCompany: Initech\nLocation: Berlin"
	resumeText  = "Backend developer, five years of Golang and Kubernetes"
)

// providerStub answers from a fixed vector table and records what reached the provider.
type providerStub struct {
	vectors       map[string][]float32
	tokensPerText int
	err           error
	dropLast      bool

	embedCalls int
	batchCalls int
	sent       []string
}

func newProviderStub() *providerStub {
	return &providerStub{
		vectors: map[string][]float32{
			goPosting:   {0.9, 0.1, 0},
			rustPosting: {0.1, 0.9, 0},
			resumeText:  {0.7, 0, 0.7},
		},
		tokensPerText: 12,
	}
}

func (p *providerStub) vector(text string) []float32 {
	if v, ok := p.vectors[text]; ok {
		return v
	}
	return []float32{float32(len(text)), 0, 1}
}

func (p *providerStub) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	p.embedCalls++
	if p.err != nil {
		return domain.EmbeddingResult{}, p.err
	}
	p.sent = append(p.sent, text)
	return domain.EmbeddingResult{
		Embedding:    p.vector(text),
		PromptTokens: p.tokensPerText,
		TotalTokens:  p.tokensPerText,
	}, nil
}

func (p *providerStub) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	p.batchCalls++
	if p.err != nil {
		return domain.BatchEmbeddingResult{}, p.err
	}
	p.sent = append(p.sent, texts...)
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, p.vector(t))
	}
	if p.dropLast {
		out = out[:len(out)-1]
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: p.tokensPerText * len(texts),
		TotalTokens:  p.tokensPerText * len(texts),
	}, nil
}

// kvStore is an in-memory cache backend with injectable failures.
type kvStore struct {
	*memory.Store
	getErr error
	setErr error
	sets   int
}

func (s *kvStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.Store.Get(ctx, key) //nolint:wrapcheck // test double
}

func (s *kvStore) Set(ctx context.Context, key string, value []byte) error {
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.Set(ctx, key, value) //nolint:wrapcheck // test double
}

type cacheFixture struct {
	cache    *CachedEmbedder
	provider *providerStub
	store    *kvStore
	lookups  *prometheus.CounterVec
	logs     *observer.ObservedLogs
}

func newCacheFixture(t *testing.T, model string) *cacheFixture {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	f := &cacheFixture{
		provider: newProviderStub(),
		store:    &kvStore{Store: memory.NewStore()},
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_embedding_cache_total"},
			[]string{"result"},
		),
		logs: logs,
	}
	f.cache = New(f.provider, f.store, model, f.lookups, zap.New(core))
	return f
}
