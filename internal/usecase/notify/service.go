// Package notify turns match results into notifications.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain/notification"
	"github.com/kailas-cloud/jobrag/internal/metrics"
)

// Report summarizes one notification run.
type Report struct {
	Matches int                    `json:"matches"`
	Sent    int                    `json:"sent"`
	Failed  int                    `json:"failed"`
	Items   []notification.Message `json:"items"`
}

// Service runs the match engine and notifies the recipient of every match.
// A failed delivery is logged and counted; the run continues with the next match.
type Service struct {
	matcher  Matcher
	notifier Notifier
	driver   string
	logger   *zap.Logger
}

// New creates a notification service. driver labels metrics and logs.
func New(matcher Matcher, notifier Notifier, driver string, logger *zap.Logger) *Service {
	return &Service{matcher: matcher, notifier: notifier, driver: driver, logger: logger}
}

// Run matches the tenant's jobs against its resume and sends one message per match.
func (s *Service) Run(ctx context.Context, tenant, recipient string, threshold float64) (Report, error) {
	if err := (notification.Message{Recipient: recipient}).Validate(); err != nil {
		return Report{}, err
	}

	matches, err := s.matcher.MatchJobs(ctx, tenant, threshold)
	if err != nil {
		return Report{}, fmt.Errorf("match jobs: %w", err)
	}

	start := time.Now()
	rep := Report{Matches: len(matches), Items: make([]notification.Message, 0, len(matches))}
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("notify after %d of %d: %w", rep.Sent+rep.Failed, len(matches), err)
		}

		msg := notification.Message{
			Tenant:         tenant,
			Recipient:      recipient,
			JobOriginIndex: m.JobOriginIndex,
			Score:          m.Score,
			Job:            m.Job,
		}
		rep.Items = append(rep.Items, msg)

		if err := s.notifier.Notify(ctx, msg); err != nil {
			rep.Failed++
			metrics.NotificationsTotal.WithLabelValues(s.driver, "error").Inc()
			s.logger.Error("Notification failed",
				zap.String("tenant", tenant),
				zap.String("driver", s.driver),
				zap.Int("job_origin_index", m.JobOriginIndex),
				zap.Error(err),
			)
			continue
		}
		rep.Sent++
		metrics.NotificationsTotal.WithLabelValues(s.driver, "sent").Inc()
	}

	s.logger.Info("Notification run completed",
		zap.String("tenant", tenant),
		zap.String("driver", s.driver),
		zap.Int("matches", rep.Matches),
		zap.Int("sent", rep.Sent),
		zap.Int("failed", rep.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	return rep, nil
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, msg notification.Message) error {
	n.logger.Info(notification.Subject,
		zap.String("tenant", msg.Tenant),
		zap.String("recipient", msg.Recipient),
		zap.Int("job_origin_index", msg.JobOriginIndex),
		zap.Int("percent", msg.Percent()),
		zap.String("title", msg.Job.Title),
		zap.String("company", msg.Job.Company),
		zap.String("link", msg.Job.Link),
	)
	return nil
}
