package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domusage "github.com/kailas-cloud/jobrag/internal/domain/usage"
)

// BudgetAction defines behavior when the token budget is exhausted.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists budget counters across restarts.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// window is one budget period. A zero limit means unlimited.
type window struct {
	name     string
	layout   string
	truncate func(time.Time) time.Time
	limit    int64
	used     int64
	start    time.Time
}

func (w *window) roll(now time.Time) {
	if cur := w.truncate(now); cur.After(w.start) {
		w.used = 0
		w.start = cur
	}
}

func (w *window) exceeded() bool { return w.limit > 0 && w.used >= w.limit }

func (w *window) remaining() int64 {
	if w.limit == 0 {
		return -1
	}
	return max(w.limit-w.used, 0)
}

// BudgetTracker enforces daily and monthly token caps for one provider.
// Check runs in memory; Record updates memory first and then writes behind to the store.
type BudgetTracker struct {
	mu       sync.Mutex
	daily    window
	monthly  window
	action   BudgetAction
	provider string
	store    BudgetStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewBudgetTracker creates a budget tracker with the given limits.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		daily:    window{name: "daily", layout: "2006-01-02", truncate: truncateToDay, limit: dailyLimit},
		monthly:  window{name: "monthly", layout: "2006-01", truncate: truncateToMonth, limit: monthlyLimit},
		action:   action,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	now := b.now()
	b.daily.start = truncateToDay(now)
	b.monthly.start = truncateToMonth(now)
	return b
}

// WithStore attaches a persistence store and loads the current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	for _, w := range []*window{&b.daily, &b.monthly} {
		val, err := store.Get(ctx, b.key(w, now))
		if err != nil {
			b.logger.Warn("Failed to load budget from store", zap.String("window", w.name), zap.Error(err))
			continue
		}
		w.used = val
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("monthly_used", b.monthly.used),
	)
	return b
}

func (b *BudgetTracker) key(w *window, t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s", domain.KeyPrefix, b.provider, w.name, t.Format(w.layout))
}

// Check verifies the budget allows a new request.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollLocked()
	if !b.daily.exceeded() && !b.monthly.exceeded() {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("daily_limit", b.daily.limit),
		zap.Int64("monthly_used", b.monthly.used),
		zap.Int64("monthly_limit", b.monthly.limit),
	)
	return nil
}

// Record registers consumed tokens.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.rollLocked()
	b.daily.used += tokens
	b.monthly.used += tokens
	now := b.now()
	keys := []string{b.key(&b.daily, now), b.key(&b.monthly, now)}
	store := b.store
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request so a slow store never blocks embedding.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, k := range keys {
		if err := store.IncrBy(ctx, k, tokens); err != nil {
			b.logger.Warn("Failed to persist budget", zap.String("key", k), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.daily.remaining()
}

// RemainingMonthly returns tokens left this month (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.monthly.remaining()
}

// Provider returns the provider the budget applies to.
func (b *BudgetTracker) Provider() string { return b.provider }

// Usage returns the current daily and monthly windows.
func (b *BudgetTracker) Usage() (daily, monthly domusage.Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.daily.snapshot(), b.monthly.snapshot()
}

func (w *window) snapshot() domusage.Window {
	return domusage.Window{Limit: w.limit, Used: w.used, Start: w.start}
}

func (b *BudgetTracker) rollLocked() {
	now := b.now()
	b.daily.roll(now)
	b.monthly.roll(now)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
