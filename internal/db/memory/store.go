// Package memory is an in-process db.Store for local runs and tests.
// Data lives only as long as the process.
package memory

import (
	"context"
	"maps"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/jobrag/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type entry struct {
	value     []byte
	hash      map[string]string
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store keeps hashes and strings in a single guarded map.
type Store struct {
	mu   sync.RWMutex
	data map[string]*entry
	now  func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]*entry), now: time.Now}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// live returns the entry for key, dropping it when expired. Caller holds the write lock.
func (s *Store) live(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if e.expired(s.now()) {
		delete(s.data, key)
		return nil
	}
	return e
}

// HSet merges fields into the hash under a single lock.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := ctx.Err(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		e = &entry{}
		s.data[key] = e
	}
	// Copy-on-write: readers holding the previous map keep a consistent view.
	next := make(map[string]string, len(e.hash)+len(fields))
	maps.Copy(next, e.hash)
	maps.Copy(next, fields)
	e.hash = next
	e.value = nil
	return nil
}

// HGetAll returns a copy of all fields; a missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	if e := s.live(key); e != nil {
		maps.Copy(out, e.hash)
	}
	return out, nil
}

// Del deletes a key.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key) != nil, nil
}

// Scan returns keys matching a glob pattern, sorted.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for k := range s.data {
		if s.live(k) == nil {
			continue
		}
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Get retrieves a string value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.hash != nil {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl; ttl <= 0 means no expiry.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

// IncrBy increments a decimal counter, creating it at zero.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		e = &entry{}
		s.data[key] = e
	}
	var cur int64
	if len(e.value) > 0 {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return &db.Error{Op: db.OpIncrBy, Err: err}
		}
		cur = n
	}
	e.value = []byte(strconv.FormatInt(cur+val, 10))
	return nil
}

// Expire sets TTL on a key. With nx the TTL is only set when the key has none yet.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return nil
	}
	if nx && !e.expiresAt.IsZero() {
		return nil
	}
	e.expiresAt = s.now().Add(ttl)
	return nil
}
