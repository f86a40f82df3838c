package retrieval

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
)

func snapshot(tenant string, t domcorpus.Type, vectors ...[]float32) *domcorpus.Snapshot {
	s := &domcorpus.Snapshot{Type: t, TenantID: tenant, Vectors: vectors}
	for i := range vectors {
		s.Chunks = append(s.Chunks, domcorpus.Chunk{
			ID: i, Text: "chunk", Type: t, TenantID: tenant, OriginIndex: i,
		})
	}
	return s
}

func TestExactScan_Basic(t *testing.T) {
	snap := snapshot("alice", domcorpus.Job, []float32{1, 0}, []float32{0, 1})

	hits, err := ExactScan{}.Rank([]float32{1, 0}, snap, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Chunk.ID != 0 || hits[0].Score != 1 {
		t.Errorf("first hit: %+v", hits[0])
	}
	if hits[1].Chunk.ID != 1 || hits[1].Score != 0 {
		t.Errorf("second hit: %+v", hits[1])
	}
}

func TestExactScan_TiesByAscendingID(t *testing.T) {
	snap := snapshot("alice", domcorpus.Job,
		[]float32{0, 1}, []float32{2, 0}, []float32{1, 0}, []float32{3, 0})

	hits, err := ExactScan{}.Rank([]float32{1, 0}, snap, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 2, 3, 0}
	for i, id := range want {
		if hits[i].Chunk.ID != id {
			t.Fatalf("position %d: want id %d, got %d (%+v)", i, id, hits[i].Chunk.ID, hits)
		}
	}
}

func TestExactScan_KBounds(t *testing.T) {
	snap := snapshot("alice", domcorpus.Job, []float32{1, 0}, []float32{0, 1})

	hits, _ := ExactScan{}.Rank([]float32{1, 0}, snap, 10)
	if len(hits) != 2 {
		t.Errorf("k above corpus size returns all chunks, got %d", len(hits))
	}

	hits, _ = ExactScan{}.Rank([]float32{1, 0}, snap, 1)
	if len(hits) != 1 {
		t.Errorf("expected 1 hit, got %d", len(hits))
	}

	hits, _ = ExactScan{}.Rank([]float32{1, 0}, snap, 0)
	if hits == nil || len(hits) != 0 {
		t.Errorf("k=0 returns an empty list, got %v", hits)
	}

	hits, _ = ExactScan{}.Rank([]float32{1, 0}, domcorpus.Empty("alice", domcorpus.Job), 5)
	if len(hits) != 0 {
		t.Errorf("empty corpus returns nothing, got %v", hits)
	}
}

func TestExactScan_ZeroVectorScoresZero(t *testing.T) {
	snap := snapshot("alice", domcorpus.Resume, []float32{0, 0}, []float32{-1, 0})

	hits, err := ExactScan{}.Rank([]float32{1, 0}, snap, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits[0].Chunk.ID != 0 || hits[0].Score != 0 || hits[1].Score != -1 {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestExactScan_SkipsForeignChunks(t *testing.T) {
	snap := snapshot("alice", domcorpus.Job, []float32{1, 0}, []float32{1, 0})
	snap.Chunks[0].TenantID = "mallory"

	hits, err := ExactScan{}.Rank([]float32{1, 0}, snap, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.TenantID != "alice" {
		t.Errorf("foreign chunk leaked: %+v", hits)
	}
}

func TestExactScan_DimensionMismatch(t *testing.T) {
	snap := snapshot("alice", domcorpus.Job, []float32{1, 0, 0})

	_, err := ExactScan{}.Rank([]float32{1, 0}, snap, 1)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}
