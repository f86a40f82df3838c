// Package match finds the scraped jobs that best fit a tenant's resume.
package match

import (
	"context"
	"fmt"
	"maps"
	"math"
	"runtime"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	dommatch "github.com/kailas-cloud/jobrag/internal/domain/match"
	"github.com/kailas-cloud/jobrag/internal/domain/vector"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

// SnapshotReader reads tenant corpus snapshots.
type SnapshotReader interface {
	All(ctx context.Context, tenant string, t domcorpus.Type) (*domcorpus.Snapshot, error)
}

var negInf = math.Inf(-1)

// rowsPerTask is the number of job chunks one scoring task handles.
const rowsPerTask = 256

// Service scores every job chunk against every resume chunk of a tenant.
type Service struct {
	corpora SnapshotReader
	workers int
	logger  *zap.Logger
}

// New creates a match service.
func New(corpora SnapshotReader, logger *zap.Logger) *Service {
	return &Service{corpora: corpora, workers: runtime.GOMAXPROCS(0), logger: logger}
}

// WithWorkers bounds scoring parallelism.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// Match returns one result per job posting whose best similarity to any resume chunk
// is at least threshold, ordered by origin index.
func (s *Service) Match(ctx context.Context, tenant string, threshold float64) ([]dommatch.Result, error) {
	results, _, err := s.run(ctx, tenant, threshold)
	return results, err
}

// MatchJobs is Match with each result resolved to its posting from the same snapshot
// the scores were computed on.
func (s *Service) MatchJobs(ctx context.Context, tenant string, threshold float64) ([]dommatch.Matched, error) {
	results, jobs, err := s.run(ctx, tenant, threshold)
	if err != nil {
		return nil, err
	}

	out := make([]dommatch.Matched, 0, len(results))
	for _, r := range results {
		m := dommatch.Matched{Result: r}
		if r.JobOriginIndex < len(jobs.Jobs) {
			m.Job = jobs.Jobs[r.JobOriginIndex]
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Service) run(
	ctx context.Context, tenant string, threshold float64,
) ([]dommatch.Result, *domcorpus.Snapshot, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, nil, domain.InvalidArgf("tenant is required")
	}
	if err := dommatch.ValidateThreshold(threshold); err != nil {
		return nil, nil, err
	}

	resumes, err := s.load(ctx, tenant, domcorpus.Resume)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := s.load(ctx, tenant, domcorpus.Job)
	if err != nil {
		return nil, nil, err
	}
	if resumes.Len() == 0 || jobs.Len() == 0 {
		return []dommatch.Result{}, jobs, nil
	}
	if resumes.Dim() != jobs.Dim() {
		return nil, nil, fmt.Errorf("resume vectors vs job vectors: %w", domain.NewDimMismatch(jobs.Dim(), resumes.Dim()))
	}

	start := time.Now()
	best, err := s.columnMax(ctx, resumes, jobs)
	metrics.ScanDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, nil, fmt.Errorf("score jobs: %w", err)
	}

	results := aggregate(jobs, best, threshold)
	s.logger.Info("Match run completed",
		zap.String("tenant", tenant),
		zap.Int("resume_chunks", resumes.Len()),
		zap.Int("job_chunks", jobs.Len()),
		zap.Int("matches", len(results)),
		zap.Float64("threshold", threshold),
		zap.Duration("duration", time.Since(start)),
	)
	return results, jobs, nil
}

func (s *Service) load(ctx context.Context, tenant string, t domcorpus.Type) (*domcorpus.Snapshot, error) {
	snap, err := s.corpora.All(ctx, tenant, t)
	if err != nil {
		return nil, fmt.Errorf("read %s corpus: %w", t, err)
	}
	if snap.TenantID != tenant {
		return nil, fmt.Errorf("%s corpus of %q served for %q: %w", t, snap.TenantID, tenant, domain.ErrTenantMismatch)
	}
	return snap, nil
}

// columnMax returns, for every job chunk, its best cosine against the resume chunks.
// Chunks of a foreign tenant score -Inf so they can never clear a threshold.
func (s *Service) columnMax(ctx context.Context, resumes, jobs *domcorpus.Snapshot) ([]float64, error) {
	resumeRows := make([][]float32, 0, resumes.Len())
	for i, c := range resumes.Chunks {
		if c.TenantID == resumes.TenantID {
			resumeRows = append(resumeRows, resumes.Vectors[i])
		}
	}
	resumeNorms := vector.Norms(resumeRows)

	best := make([]float64, jobs.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for lo := 0; lo < jobs.Len(); lo += rowsPerTask {
		hi := min(lo+rowsPerTask, jobs.Len())
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // wrapped by caller
			}
			for j := lo; j < hi; j++ {
				best[j] = negInf
				if jobs.Chunks[j].TenantID != jobs.TenantID {
					continue
				}
				v := jobs.Vectors[j]
				vn := vector.Norm(v)
				for r, row := range resumeRows {
					if sc := vector.CosineWithNorms(row, v, resumeNorms[r], vn); sc > best[j] {
						best[j] = sc
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	return best, nil
}

// aggregate keeps the best chunk score per posting and filters by threshold, inclusive.
func aggregate(jobs *domcorpus.Snapshot, best []float64, threshold float64) []dommatch.Result {
	perOrigin := make(map[int]float64)
	for j, c := range jobs.Chunks {
		if prev, ok := perOrigin[c.OriginIndex]; !ok || best[j] > prev {
			perOrigin[c.OriginIndex] = best[j]
		}
	}

	out := []dommatch.Result{}
	for _, origin := range slices.Sorted(maps.Keys(perOrigin)) {
		if score := perOrigin[origin]; score >= threshold {
			out = append(out, dommatch.Result{JobOriginIndex: origin, Score: score})
		}
	}
	return out
}
