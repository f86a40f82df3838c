// Package usage describes embedding token consumption against the configured budget.
package usage

import (
	"strings"
	"time"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Period is the budget window a report covers.
type Period string

// Report periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. Empty selects the daily window.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth:
		return p, nil
	}
	return "", domain.InvalidArgf("unknown usage period %q", s)
}

// Window is the state of one budget window. A zero limit means unlimited.
type Window struct {
	Limit int64
	Used  int64
	Start time.Time
}

// Report is the token usage of one window.
type Report struct {
	Provider    string    `json:"provider,omitempty"`
	Period      Period    `json:"period"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	TokensUsed  int64     `json:"tokens_used"`
	// TokensLimit is 0 and TokensRemaining -1 when the window is unlimited.
	TokensLimit     int64 `json:"tokens_limit"`
	TokensRemaining int64 `json:"tokens_remaining"`
	Exhausted       bool  `json:"exhausted"`
}

// NewReport derives the remaining budget of w. end is the start of the next window.
func NewReport(provider string, period Period, w Window, end time.Time) Report {
	r := Report{
		Provider:        provider,
		Period:          period,
		PeriodStart:     w.Start,
		PeriodEnd:       end,
		TokensUsed:      w.Used,
		TokensLimit:     w.Limit,
		TokensRemaining: -1,
	}
	if w.Limit > 0 {
		r.TokensRemaining = max(w.Limit-w.Used, 0)
		r.Exhausted = w.Used >= w.Limit
	}
	return r
}
