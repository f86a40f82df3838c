// Package budget persists embedding token counters so daily and monthly
// limits survive restarts.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/jobrag/internal/db"
)

// Default retention per window. Counters outlive their window so the
// previous period can still be inspected after a rollover.
const (
	DefaultDailyTTL   = 48 * time.Hour
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps counters under keys of the form
// jobrag:budget:{provider}:{daily|monthly}:{period}.
type Store struct {
	store store
	ttls  map[string]time.Duration
}

// New creates a budget store. Zero TTLs fall back to the defaults.
func New(s store, dailyTTL, monthlyTTL time.Duration) *Store {
	if dailyTTL <= 0 {
		dailyTTL = DefaultDailyTTL
	}
	if monthlyTTL <= 0 {
		monthlyTTL = DefaultMonthlyTTL
	}
	return &Store{
		store: s,
		ttls:  map[string]time.Duration{"daily": dailyTTL, "monthly": monthlyTTL},
	}
}

// IncrBy adds val to the counter and starts its TTL on first write.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	ttl, err := s.ttl(key)
	if err != nil {
		return err
	}
	if val <= 0 {
		return nil
	}

	if err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}
	// NX keeps the window's original expiry on every later increment.
	if err := s.store.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Get returns the counter value, 0 when the window has no usage yet.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	if _, err := s.ttl(key); err != nil {
		return 0, err
	}

	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) ttl(key string) (time.Duration, error) {
	parts := strings.Split(key, ":")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] != "budget" {
			continue
		}
		// budget:{provider}:{window}:{period}
		if i+3 < len(parts) {
			if ttl, ok := s.ttls[parts[i+2]]; ok {
				return ttl, nil
			}
		}
		break
	}
	return 0, fmt.Errorf("budget key %q has no known window", key)
}
