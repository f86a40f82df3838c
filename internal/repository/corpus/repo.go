// Package corpus persists per-tenant corpus snapshots as one hash record each.
package corpus

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
)

var snapshotKeyPrefix = domain.KeyPrefix + "snapshot:"

// store is the consumer interface for snapshots (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Repo implements usecase/corpus.Repository.
type Repo struct {
	store store
}

// New creates a snapshot repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func snapshotKey(tenant string, t domcorpus.Type) string {
	return snapshotKeyPrefix + string(t) + ":" + tenant
}

// Load returns the current snapshot, or an empty one when none was written.
// Storage failures are transient; malformed records are integrity errors.
func (r *Repo) Load(ctx context.Context, tenant string, t domcorpus.Type) (*domcorpus.Snapshot, error) {
	key := snapshotKey(tenant, t)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w: %w", key, domain.ErrTransient, err)
	}
	if len(fields) == 0 {
		return domcorpus.Empty(tenant, t), nil
	}

	s, err := decodeSnapshot(tenant, t, fields)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return s, nil
}

// Save replaces the snapshot in a single write. Invalid snapshots are rejected
// before anything is written.
func (r *Repo) Save(ctx context.Context, s *domcorpus.Snapshot) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	fields, err := encodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	key := snapshotKey(s.TenantID, s.Type)
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("save snapshot %s: %w: %w", key, domain.ErrTransient, err)
	}
	return nil
}

// Delete drops the snapshot of one (tenant, type) pair.
func (r *Repo) Delete(ctx context.Context, tenant string, t domcorpus.Type) error {
	key := snapshotKey(tenant, t)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w: %w", key, domain.ErrTransient, err)
	}
	return nil
}
