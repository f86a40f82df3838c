package notify

import (
	"context"

	dommatch "github.com/kailas-cloud/jobrag/internal/domain/match"
	"github.com/kailas-cloud/jobrag/internal/domain/notification"
)

// Matcher runs the match engine and resolves postings.
type Matcher interface {
	MatchJobs(ctx context.Context, tenant string, threshold float64) ([]dommatch.Matched, error)
}

// Notifier delivers one message.
type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) error
}
