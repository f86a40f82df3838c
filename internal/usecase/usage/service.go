// Package usage reports embedding token consumption.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/jobrag/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (no budget configured).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: func() time.Time { return time.Now().UTC() }}
}

// Report returns the usage of the current window of period.
func (s *Service) Report(_ context.Context, period domusage.Period) (domusage.Report, error) {
	if _, err := domusage.ParsePeriod(string(period)); err != nil {
		return domusage.Report{}, err
	}

	var (
		provider       string
		daily, monthly domusage.Window
	)
	if s.br != nil {
		provider = s.br.Provider()
		daily, monthly = s.br.Usage()
	} else {
		// Unlimited: windows are derived from the clock, usage is not tracked.
		now := s.now()
		daily.Start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		monthly.Start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	if period == domusage.PeriodMonth {
		return domusage.NewReport(provider, period, monthly, monthly.Start.AddDate(0, 1, 0)), nil
	}
	return domusage.NewReport(provider, domusage.PeriodDay, daily, daily.Start.AddDate(0, 0, 1)), nil
}
