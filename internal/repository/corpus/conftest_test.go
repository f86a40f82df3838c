package corpus

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/kailas-cloud/jobrag/internal/db/memory"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn    func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	delFn     func(ctx context.Context, key string) error
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *memory.Store) {
	t.Helper()
	s := memory.NewStore()
	return New(s), s
}

func jobSnapshot(tenant string) *domcorpus.Snapshot {
	return &domcorpus.Snapshot{
		Type:       domcorpus.Job,
		TenantID:   tenant,
		Generation: "gen-1",
		Chunks: []domcorpus.Chunk{
			{ID: 0, Text: "Job Title: Go", Type: domcorpus.Job, TenantID: tenant, OriginIndex: 0, SourceRef: "https://a"},
			{ID: 1, Text: "Job Title: Rust", Type: domcorpus.Job, TenantID: tenant, OriginIndex: 1, SourceRef: "https://b"},
		},
		Vectors: [][]float32{{1, 0, 0.5}, {0, 1, -0.25}},
		Jobs:    []job.Job{{Title: "Go", Link: "https://a"}, {Title: "Rust", Link: "https://b"}},
	}
}

// matrixHeader builds a bare vector matrix header claiming rows x dims values.
func matrixHeader(rows, dims uint32) []byte {
	h := make([]byte, matrixHeaderLen)
	copy(h, matrixMagic[:])
	binary.LittleEndian.PutUint32(h[4:], rows)
	binary.LittleEndian.PutUint32(h[8:], dims)
	return h
}
