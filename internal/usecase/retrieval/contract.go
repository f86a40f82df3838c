package retrieval

import (
	"context"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/domain/search"
)

// SnapshotReader reads tenant corpus snapshots.
type SnapshotReader interface {
	All(ctx context.Context, tenant string, t domcorpus.Type) (*domcorpus.Snapshot, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Ranker returns the k chunks of snap closest to query, best first.
// Ties are broken by ascending chunk id.
type Ranker interface {
	Rank(query []float32, snap *domcorpus.Snapshot, k int) ([]search.Hit, error)
}
