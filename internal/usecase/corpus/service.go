// Package corpus rebuilds and reads the per-tenant job and resume corpora.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
	"github.com/kailas-cloud/jobrag/internal/domain/resume"
	"github.com/kailas-cloud/jobrag/internal/extract"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

// Limits bound a single rebuild. Zero disables a limit.
type Limits struct {
	MaxChunks        int
	MaxRecords       int
	MaxDocumentBytes int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxChunks:        20000,
		MaxRecords:       5000,
		MaxDocumentBytes: 10 << 20,
	}
}

// Skipped describes a source record that contributed no chunks.
type Skipped struct {
	Index  int    `json:"index"`
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// Report summarizes one rebuild.
type Report struct {
	Type       domcorpus.Type `json:"corpus_type"`
	Records    int            `json:"records"`
	Chunks     int            `json:"chunks"`
	Skipped    []Skipped      `json:"skipped,omitempty"`
	NoText     bool           `json:"no_text,omitempty"`
	Generation string         `json:"generation,omitempty"`
	TokensUsed int            `json:"tokens_used"`
}

// Service owns corpus rebuilds. Rebuilds of one (tenant, type) pair are serialized;
// a failed or cancelled rebuild leaves the previous snapshot in place.
type Service struct {
	repo     Repository
	embedder domain.Embedder
	splitter Splitter
	fetcher  Fetcher
	limits   Limits
	locks    *keyedMutex
	genID    func() string
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a corpus service.
func New(repo Repository, embedder domain.Embedder, splitter Splitter, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		embedder: embedder,
		splitter: splitter,
		limits:   DefaultLimits(),
		locks:    newKeyedMutex(),
		genID:    uuid.NewString,
		now:      time.Now,
		logger:   logger,
	}
}

// WithLimits replaces the rebuild limits.
func (s *Service) WithLimits(l Limits) *Service {
	s.limits = l
	return s
}

// WithFetcher enables URL resume sources.
func (s *Service) WithFetcher(f Fetcher) *Service {
	s.fetcher = f
	return s
}

// ReplaceJobs rebuilds the tenant's job corpus from the given postings.
// An empty list installs an empty corpus.
func (s *Service) ReplaceJobs(ctx context.Context, tenant string, jobs []job.Job) (Report, error) {
	if err := s.checkRecords(tenant, len(jobs)); err != nil {
		return Report{}, err
	}

	return s.rebuild(ctx, tenant, domcorpus.Job, func(_ context.Context) (*domcorpus.Snapshot, Report, error) {
		snap := &domcorpus.Snapshot{Type: domcorpus.Job, TenantID: tenant, Jobs: jobs}
		rep := Report{Type: domcorpus.Job, Records: len(jobs)}
		if snap.Jobs == nil {
			snap.Jobs = []job.Job{}
		}

		for i, j := range jobs {
			if j.Blank() {
				rep.Skipped = append(rep.Skipped, Skipped{Index: i, Reason: "blank posting"})
				continue
			}
			s.appendChunks(snap, i, j.Canonical(), j.Link)
		}
		return snap, rep, nil
	})
}

// ReplaceResumes rebuilds the tenant's resume corpus. Unreadable documents are reported
// and skipped. When no source yields text nothing is written and the report says so.
func (s *Service) ReplaceResumes(ctx context.Context, tenant string, sources []resume.Source) (Report, error) {
	if err := s.checkRecords(tenant, len(sources)); err != nil {
		return Report{}, err
	}
	if len(sources) == 0 {
		return Report{}, domain.InvalidArgf("no resume sources")
	}
	for i, src := range sources {
		if err := src.Validate(); err != nil {
			return Report{}, fmt.Errorf("source %d: %w", i, err)
		}
		if s.limits.MaxDocumentBytes > 0 && len(src.Content) > s.limits.MaxDocumentBytes {
			return Report{}, fmt.Errorf("source %d is %d bytes, max %d: %w",
				i, len(src.Content), s.limits.MaxDocumentBytes, domain.ErrLimitExceeded)
		}
		if src.URL != "" && s.fetcher == nil {
			return Report{}, fmt.Errorf("source %d: url sources: %w", i, domain.ErrNotImplemented)
		}
	}

	return s.rebuild(ctx, tenant, domcorpus.Resume, func(ctx context.Context) (*domcorpus.Snapshot, Report, error) {
		snap := &domcorpus.Snapshot{Type: domcorpus.Resume, TenantID: tenant}
		rep := Report{Type: domcorpus.Resume, Records: len(sources)}

		for i, src := range sources {
			text, err := s.resumeText(ctx, src)
			switch {
			case errors.Is(err, domain.ErrUnreadableDocument):
				rep.Skipped = append(rep.Skipped, Skipped{Index: i, Ref: src.Ref(), Reason: err.Error()})
				continue
			case err != nil:
				return nil, rep, fmt.Errorf("source %d: %w", i, err)
			case text == "":
				rep.Skipped = append(rep.Skipped, Skipped{Index: i, Ref: src.Ref(), Reason: "no text"})
				continue
			}
			s.appendChunks(snap, i, text, src.Ref())
		}

		if snap.Len() == 0 {
			rep.NoText = true
			return nil, rep, nil
		}
		return snap, rep, nil
	})
}

// All returns the current snapshot of one tenant corpus.
func (s *Service) All(ctx context.Context, tenant string, t domcorpus.Type) (*domcorpus.Snapshot, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, domain.InvalidArgf("tenant is required")
	}
	snap, err := s.repo.Load(ctx, tenant, t)
	if err != nil {
		return nil, fmt.Errorf("load %s corpus: %w", t, err)
	}
	return snap, nil
}

// Jobs returns the postings behind the tenant's current job corpus.
func (s *Service) Jobs(ctx context.Context, tenant string) ([]job.Job, error) {
	snap, err := s.All(ctx, tenant, domcorpus.Job)
	if err != nil {
		return nil, err
	}
	if snap.Jobs == nil {
		return []job.Job{}, nil
	}
	return snap.Jobs, nil
}

type buildFunc func(ctx context.Context) (*domcorpus.Snapshot, Report, error)

// rebuild runs build under the (tenant, type) lock, embeds the chunks it produced and
// swaps the snapshot in one write. A nil snapshot from build means nothing to store.
func (s *Service) rebuild(ctx context.Context, tenant string, t domcorpus.Type, build buildFunc) (Report, error) {
	start := time.Now()
	log := s.logger.With(zap.String("tenant", tenant), zap.String("corpus_type", string(t)))

	unlock, err := s.locks.Lock(ctx, string(t)+":"+tenant)
	if err != nil {
		return Report{}, fmt.Errorf("rebuild %s corpus: %w", t, err)
	}
	defer unlock()

	rep, err := s.buildAndSave(ctx, build)
	duration := time.Since(start)
	metrics.CorpusRebuildDuration.WithLabelValues(string(t)).Observe(duration.Seconds())

	switch {
	case err != nil:
		metrics.CorpusRebuildsTotal.WithLabelValues(string(t), "error").Inc()
		log.Error("Corpus rebuild failed, previous snapshot kept",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return rep, fmt.Errorf("rebuild %s corpus: %w", t, err)
	case rep.Generation == "":
		metrics.CorpusRebuildsTotal.WithLabelValues(string(t), "noop").Inc()
		log.Warn("Corpus rebuild produced no text, nothing stored",
			zap.Int("records", rep.Records),
			zap.Int("skipped", len(rep.Skipped)),
		)
		return rep, nil
	}

	metrics.CorpusRebuildsTotal.WithLabelValues(string(t), "ok").Inc()
	metrics.CorpusChunks.WithLabelValues(string(t)).Observe(float64(rep.Chunks))
	log.Info("Corpus rebuilt",
		zap.String("generation", rep.Generation),
		zap.Int("records", rep.Records),
		zap.Int("chunks", rep.Chunks),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("tokens", rep.TokensUsed),
		zap.Duration("duration", duration),
	)
	return rep, nil
}

func (s *Service) buildAndSave(ctx context.Context, build buildFunc) (Report, error) {
	snap, rep, err := build(ctx)
	if err != nil || snap == nil {
		return rep, err
	}
	if s.limits.MaxChunks > 0 && snap.Len() > s.limits.MaxChunks {
		return rep, fmt.Errorf("%d chunks, max %d: %w", snap.Len(), s.limits.MaxChunks, domain.ErrLimitExceeded)
	}

	texts := make([]string, snap.Len())
	for i, c := range snap.Chunks {
		texts[i] = c.Text
	}
	res, err := domain.EmbedBatch(ctx, s.embedder, texts)
	if err != nil {
		return rep, fmt.Errorf("embed %d chunks: %w", len(texts), err)
	}
	snap.Vectors = res.Embeddings
	rep.TokensUsed = res.TotalTokens

	// Nothing is written once the caller has gone away.
	if err := ctx.Err(); err != nil {
		return rep, fmt.Errorf("before swap: %w", err)
	}

	snap.Generation = s.genID()
	snap.UpdatedAt = s.now().UTC()
	if snap.Chunks == nil {
		snap.Chunks = []domcorpus.Chunk{}
		snap.Vectors = [][]float32{}
	}
	if err := s.repo.Save(ctx, snap); err != nil {
		return rep, fmt.Errorf("save snapshot: %w", err)
	}

	rep.Chunks = snap.Len()
	rep.Generation = snap.Generation
	return rep, nil
}

func (s *Service) appendChunks(snap *domcorpus.Snapshot, origin int, text, ref string) {
	for _, piece := range s.splitter.Split(text) {
		snap.Chunks = append(snap.Chunks, domcorpus.Chunk{
			ID:          len(snap.Chunks),
			Text:        piece,
			Type:        snap.Type,
			TenantID:    snap.TenantID,
			OriginIndex: origin,
			SourceRef:   ref,
		})
	}
}

func (s *Service) resumeText(ctx context.Context, src resume.Source) (string, error) {
	data, declared, name := src.Content, src.MIMEType, src.Name
	if src.URL != "" {
		var err error
		data, declared, err = s.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", src.URL, err)
		}
		if s.limits.MaxDocumentBytes > 0 && len(data) > s.limits.MaxDocumentBytes {
			return "", fmt.Errorf("%s is %d bytes, max %d: %w",
				src.URL, len(data), s.limits.MaxDocumentBytes, domain.ErrLimitExceeded)
		}
		name = src.URL
	}

	text, err := extract.Text(extract.DetectMIME(declared, name, data), data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", src.Ref(), err)
	}
	return text, nil
}

func (s *Service) checkRecords(tenant string, n int) error {
	if strings.TrimSpace(tenant) == "" {
		return domain.InvalidArgf("tenant is required")
	}
	if s.limits.MaxRecords > 0 && n > s.limits.MaxRecords {
		return fmt.Errorf("%d records, max %d: %w", n, s.limits.MaxRecords, domain.ErrLimitExceeded)
	}
	return nil
}
