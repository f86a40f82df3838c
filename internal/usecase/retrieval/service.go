// Package retrieval ranks a tenant's stored chunks against a natural-language query.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/domain/search"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

// DefaultMaxK bounds k per corpus when no limit is configured.
const DefaultMaxK = 100

// Request selects how many hits to return from each corpus. Zero skips a corpus.
type Request struct {
	Query    string
	KJobs    int
	KResumes int
}

// Service embeds a query once and ranks it against each requested corpus.
type Service struct {
	corpora SnapshotReader
	embed   Embedder
	ranker  Ranker
	maxK    int
	logger  *zap.Logger
}

// New creates a retrieval service backed by an exact scan.
func New(corpora SnapshotReader, embed Embedder, logger *zap.Logger) *Service {
	return &Service{
		corpora: corpora,
		embed:   embed,
		ranker:  ExactScan{},
		maxK:    DefaultMaxK,
		logger:  logger,
	}
}

// WithRanker swaps the ranking strategy.
func (s *Service) WithRanker(r Ranker) *Service {
	s.ranker = r
	return s
}

// WithMaxK sets the per-corpus k limit.
func (s *Service) WithMaxK(maxK int) *Service {
	if maxK > 0 {
		s.maxK = maxK
	}
	return s
}

// Retrieve returns the top hits per corpus for the tenant. A corpus smaller than k
// returns all its chunks; an empty corpus returns none.
func (s *Service) Retrieve(ctx context.Context, tenant string, req Request) (search.Results, error) {
	if err := s.validate(tenant, req); err != nil {
		return search.Results{}, err
	}

	out := search.Results{Jobs: []search.Hit{}, Resumes: []search.Hit{}}
	if req.KJobs == 0 && req.KResumes == 0 {
		return out, nil
	}

	emb, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		return search.Results{}, fmt.Errorf("vectorize query: %w", err)
	}

	if out.Jobs, err = s.rank(ctx, tenant, domcorpus.Job, emb.Embedding, req.KJobs); err != nil {
		return search.Results{}, err
	}
	if out.Resumes, err = s.rank(ctx, tenant, domcorpus.Resume, emb.Embedding, req.KResumes); err != nil {
		return search.Results{}, err
	}
	return out, nil
}

func (s *Service) rank(
	ctx context.Context, tenant string, t domcorpus.Type, query []float32, k int,
) ([]search.Hit, error) {
	if k == 0 {
		return []search.Hit{}, nil
	}

	snap, err := s.corpora.All(ctx, tenant, t)
	if err != nil {
		return nil, fmt.Errorf("read %s corpus: %w", t, err)
	}
	if snap.TenantID != tenant {
		return nil, fmt.Errorf("%s corpus of %q served for %q: %w", t, snap.TenantID, tenant, domain.ErrTenantMismatch)
	}

	start := time.Now()
	hits, err := s.ranker.Rank(query, snap, k)
	metrics.ScanDuration.WithLabelValues("retrieve").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("rank %s corpus: %w", t, err)
	}

	s.logger.Debug("Corpus ranked",
		zap.String("tenant", tenant),
		zap.String("corpus_type", string(t)),
		zap.Int("chunks", snap.Len()),
		zap.Int("hits", len(hits)),
		zap.Duration("duration", time.Since(start)),
	)
	return hits, nil
}

func (s *Service) validate(tenant string, req Request) error {
	switch {
	case strings.TrimSpace(tenant) == "":
		return domain.InvalidArgf("tenant is required")
	case strings.TrimSpace(req.Query) == "":
		return domain.InvalidArgf("query cannot be empty")
	case req.KJobs < 0 || req.KResumes < 0:
		return domain.InvalidArgf("k must not be negative")
	case req.KJobs > s.maxK || req.KResumes > s.maxK:
		return fmt.Errorf("k above %d: %w", s.maxK, domain.ErrLimitExceeded)
	}
	return nil
}
