package chi

import (
	"context"

	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
	dommatch "github.com/kailas-cloud/jobrag/internal/domain/match"
	"github.com/kailas-cloud/jobrag/internal/domain/resume"
	"github.com/kailas-cloud/jobrag/internal/domain/search"
	domusage "github.com/kailas-cloud/jobrag/internal/domain/usage"
	corpusuc "github.com/kailas-cloud/jobrag/internal/usecase/corpus"
	healthuc "github.com/kailas-cloud/jobrag/internal/usecase/health"
	notifyuc "github.com/kailas-cloud/jobrag/internal/usecase/notify"
	raguc "github.com/kailas-cloud/jobrag/internal/usecase/rag"
	retrievaluc "github.com/kailas-cloud/jobrag/internal/usecase/retrieval"
)

// CorpusService rebuilds and reads tenant corpora.
type CorpusService interface {
	ReplaceJobs(ctx context.Context, tenant string, jobs []job.Job) (corpusuc.Report, error)
	ReplaceResumes(ctx context.Context, tenant string, sources []resume.Source) (corpusuc.Report, error)
	All(ctx context.Context, tenant string, t domcorpus.Type) (*domcorpus.Snapshot, error)
	Jobs(ctx context.Context, tenant string) ([]job.Job, error)
}

// RetrievalService ranks chunks against a query.
type RetrievalService interface {
	Retrieve(ctx context.Context, tenant string, req retrievaluc.Request) (search.Results, error)
}

// MatchService runs the match engine.
type MatchService interface {
	MatchJobs(ctx context.Context, tenant string, threshold float64) ([]dommatch.Matched, error)
}

// NotifyService runs a match and notifies the recipient.
type NotifyService interface {
	Run(ctx context.Context, tenant, recipient string, threshold float64) (notifyuc.Report, error)
}

// AskService answers questions from the tenant's corpora.
type AskService interface {
	Ask(ctx context.Context, tenant, question string) (raguc.Answer, error)
}

// HealthService reports dependency health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageService reports embedding token usage against the budget.
type UsageService interface {
	Report(ctx context.Context, period domusage.Period) (domusage.Report, error)
}
