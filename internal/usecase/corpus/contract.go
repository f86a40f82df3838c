package corpus

import (
	"context"

	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
)

// Repository defines the snapshot storage contract.
type Repository interface {
	Load(ctx context.Context, tenant string, t domcorpus.Type) (*domcorpus.Snapshot, error)
	Save(ctx context.Context, s *domcorpus.Snapshot) error
}

// Splitter cuts canonical text into chunks.
type Splitter interface {
	Split(text string) []string
}

// Fetcher downloads a resume document referenced by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, mimeType string, err error)
}
