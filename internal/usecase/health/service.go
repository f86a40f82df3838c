// Package health aggregates dependency checks into one status.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional dependency is failing; stored corpora are still readable.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const databaseCheck = "database"

// DefaultTimeout bounds each individual check.
const DefaultTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	Errors map[string]string      `json:"errors,omitempty"`
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	checks  map[string]Checker
	timeout time.Duration
}

// New creates a Service backed by the database ping.
func New(db DBPinger) *Service {
	return &Service{db: db, checks: make(map[string]Checker), timeout: DefaultTimeout}
}

// With registers an optional dependency. A nil checker is ignored.
func (s *Service) With(name string, c Checker) *Service {
	if c != nil {
		s.checks[name] = c
	}
	return s
}

// WithTimeout overrides the per-check timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Names lists the registered checks, database first.
func (s *Service) Names() []string {
	names := make([]string, 0, len(s.checks)+1)
	for n := range s.checks {
		names = append(names, n)
	}
	sort.Strings(names)
	return append([]string{databaseCheck}, names...)
}

// Check runs every check concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs = make(map[string]error, len(s.checks)+1)
	)
	run := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		err := fn(cctx)
		mu.Lock()
		errs[name] = err
		mu.Unlock()
	}

	wg.Add(1 + len(s.checks))
	go run(databaseCheck, s.db.Ping)
	for name, c := range s.checks {
		go run(name, c.HealthCheck)
	}
	wg.Wait()

	r := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(errs))}
	for name, err := range errs {
		if err == nil {
			r.Checks[name] = CheckOK
			continue
		}
		r.Checks[name] = CheckError
		if r.Errors == nil {
			r.Errors = make(map[string]string)
		}
		r.Errors[name] = err.Error()
		if name == databaseCheck {
			r.Status = Unhealthy
		} else if r.Status == Healthy {
			r.Status = Degraded
		}
	}
	return r
}
