package corpus

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/chunker"
	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
)

// --- Mocks ---

type mockRepo struct {
	mu      sync.Mutex
	snaps   map[string]*domcorpus.Snapshot
	saves   int
	saveErr error
	loadErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{snaps: make(map[string]*domcorpus.Snapshot)}
}

func (m *mockRepo) Load(_ context.Context, tenant string, t domcorpus.Type) (*domcorpus.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if s, ok := m.snaps[string(t)+":"+tenant]; ok {
		return s, nil
	}
	return domcorpus.Empty(tenant, t), nil
}

func (m *mockRepo) Save(_ context.Context, s *domcorpus.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m.saves++
	m.snaps[string(s.Type)+":"+s.TenantID] = s
	return nil
}

// lengthEmbedder maps every text to [runes, 1] so vectors are deterministic.
type lengthEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
}

func (e *lengthEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{float32(len([]rune(text))), 1}, TotalTokens: 1}, nil
}

func (e *lengthEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return domain.BatchEmbeddingResult{}, ctx.Err()
		}
	}
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	res := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		res.Embeddings[i] = []float32{float32(len([]rune(t))), 1}
		res.TotalTokens++
	}
	return res, nil
}

type mockFetcher struct {
	data []byte
	mime string
	err  error
	urls []string
}

func (f *mockFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	f.urls = append(f.urls, url)
	return f.data, f.mime, f.err
}

func newTestService(t *testing.T, repo *mockRepo, emb domain.Embedder) *Service {
	t.Helper()
	ch, err := chunker.New(chunker.WithChunkSize(1000), chunker.WithOverlap(0))
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	svc := New(repo, emb, ch, zap.NewNop())
	svc.genID = func() string { return "gen-1" }
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}
