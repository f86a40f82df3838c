package retrieval

import (
	"slices"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/domain/search"
	"github.com/kailas-cloud/jobrag/internal/domain/vector"
)

// ExactScan scores every vector of the snapshot. O(n·D) per query.
type ExactScan struct{}

// Rank implements Ranker.
func (ExactScan) Rank(query []float32, snap *domcorpus.Snapshot, k int) ([]search.Hit, error) {
	if k <= 0 || snap.Len() == 0 {
		return []search.Hit{}, nil
	}
	if d := snap.Dim(); d != len(query) {
		return nil, domain.NewDimMismatch(d, len(query))
	}

	qn := vector.Norm(query)
	hits := make([]search.Hit, 0, snap.Len())
	for i, c := range snap.Chunks {
		if c.TenantID != snap.TenantID {
			continue
		}
		v := snap.Vectors[i]
		hits = append(hits, search.Hit{Chunk: c, Score: vector.CosineWithNorms(query, v, qn, vector.Norm(v))})
	}

	slices.SortStableFunc(hits, compareHits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func compareHits(a, b search.Hit) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	return a.Chunk.ID - b.Chunk.ID
}
