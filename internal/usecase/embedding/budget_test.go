package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

func newClockedTracker(daily, monthly int64, action BudgetAction, now *time.Time) *BudgetTracker {
	bt := NewBudgetTracker("prov", daily, monthly, action, zap.NewNop())
	bt.now = func() time.Time { return *now }
	bt.daily.start = truncateToDay(*now)
	bt.monthly.start = truncateToMonth(*now)
	return bt
}

func TestBudgetTracker_RejectWhenExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionReject, zap.NewNop())
	bt.Record(100)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestBudgetTracker_WarnWhenExceeded(t *testing.T) {
	bt := NewBudgetTracker("test", 100, 0, BudgetActionWarn, zap.NewNop())
	bt.Record(200)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for warn action, got %v", err)
	}
}

func TestBudgetTracker_MonthlyReject(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 500, BudgetActionReject, zap.NewNop())
	bt.Record(500)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded for monthly limit, got %v", err)
	}
}

func TestBudgetTracker_UnlimitedWhenZero(t *testing.T) {
	bt := NewBudgetTracker("test", 0, 0, BudgetActionReject, zap.NewNop())
	bt.Record(999999999)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for unlimited budget, got %v", err)
	}
	if bt.RemainingDaily() != -1 || bt.RemainingMonthly() != -1 {
		t.Error("expected -1 for unlimited windows")
	}
}

func TestBudgetTracker_Remaining(t *testing.T) {
	bt := NewBudgetTracker("test", 1000, 10000, BudgetActionWarn, zap.NewNop())
	bt.Record(300)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("expected daily remaining 700, got %d", got)
	}
	if got := bt.RemainingMonthly(); got != 9700 {
		t.Errorf("expected monthly remaining 9700, got %d", got)
	}

	bt.Record(5000)
	if got := bt.RemainingDaily(); got != 0 {
		t.Errorf("remaining never goes negative, got %d", got)
	}
}

func TestBudgetTracker_DayRollover(t *testing.T) {
	now := time.Date(2026, 5, 31, 23, 0, 0, 0, time.UTC)
	bt := newClockedTracker(100, 1000, BudgetActionReject, &now)

	bt.Record(100)
	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected daily limit to reject")
	}

	now = now.Add(2 * time.Hour) // June 1st: both windows roll.
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected fresh day to allow, got %v", err)
	}
	if got := bt.RemainingMonthly(); got != 1000 {
		t.Errorf("expected monthly window reset, got %d", got)
	}
}

func TestBudgetTracker_Usage(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	bt := newClockedTracker(100, 1000, BudgetActionWarn, &now)
	bt.Record(40)

	daily, monthly := bt.Usage()
	if daily.Limit != 100 || daily.Used != 40 || !daily.Start.Equal(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected daily window: %+v", daily)
	}
	if monthly.Limit != 1000 || monthly.Used != 40 || !monthly.Start.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected monthly window: %+v", monthly)
	}
	if bt.Provider() != "prov" {
		t.Errorf("unexpected provider %q", bt.Provider())
	}

	now = now.Add(24 * time.Hour)
	if daily, _ = bt.Usage(); daily.Used != 0 {
		t.Errorf("expected rolled daily window, got %+v", daily)
	}
}

// --- Mock BudgetStore ---

type mockBudgetStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	setErr error
}

func newMockBudgetStore() *mockBudgetStore {
	return &mockBudgetStore{data: make(map[string]int64)}
}

func (m *mockBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] += val
	return nil
}

func (m *mockBudgetStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

// --- Persistence tests ---

func TestBudgetTracker_WithStore_LoadsValues(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	store := newMockBudgetStore()
	store.data["jobrag:budget:prov:daily:2026-10-15"] = 300
	store.data["jobrag:budget:prov:monthly:2026-10"] = 5000

	bt := newClockedTracker(1000, 10000, BudgetActionReject, &now)
	bt.WithStore(context.Background(), store)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("expected daily remaining 700, got %d", got)
	}
	if got := bt.RemainingMonthly(); got != 5000 {
		t.Errorf("expected monthly remaining 5000, got %d", got)
	}
}

func TestBudgetTracker_Record_PersistsToStore(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	store := newMockBudgetStore()
	bt := newClockedTracker(1000, 10000, BudgetActionWarn, &now)
	bt.WithStore(context.Background(), store)

	bt.Record(150)
	bt.Record(50)

	if got := store.data["jobrag:budget:prov:daily:2026-10-15"]; got != 200 {
		t.Errorf("expected daily 200 in store, got %d", got)
	}
	if got := store.data["jobrag:budget:prov:monthly:2026-10"]; got != 200 {
		t.Errorf("expected monthly 200 in store, got %d", got)
	}
}

func TestBudgetTracker_WithStore_LoadError(t *testing.T) {
	store := newMockBudgetStore()
	store.getErr = errors.New("connection refused")

	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionReject, zap.NewNop())
	bt.WithStore(context.Background(), store)

	if got := bt.RemainingDaily(); got != 1000 {
		t.Errorf("load failure starts from zero usage, got remaining %d", got)
	}
}

func TestBudgetTracker_Record_StoreWriteError(t *testing.T) {
	store := newMockBudgetStore()
	store.setErr = errors.New("write failed")

	bt := NewBudgetTracker("prov", 1000, 10000, BudgetActionWarn, zap.NewNop())
	bt.WithStore(context.Background(), store)
	bt.Record(100)

	if got := bt.RemainingDaily(); got != 900 {
		t.Errorf("in-memory counters must survive store errors, got %d", got)
	}
}
