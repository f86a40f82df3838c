// Package corpus defines chunks and the per-tenant snapshot persisted for each corpus type.
package corpus

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
	"github.com/kailas-cloud/jobrag/internal/domain/vector"
)

// Type distinguishes the job corpus from the resume corpus.
type Type string

// Corpus types.
const (
	Job    Type = "job"
	Resume Type = "resume"
)

// Types lists all corpus types in retrieval order.
var Types = []Type{Job, Resume}

// ParseType validates a corpus type name.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case Job, Resume:
		return t, nil
	}
	return "", domain.InvalidArgf("unknown corpus type %q", s)
}

// Label is the tag used in assembled prompt context.
func (t Type) Label() string { return strings.ToUpper(string(t)) }

// Chunk is a unit of retrievable text.
type Chunk struct {
	ID          int    `json:"id"`
	Text        string `json:"text"`
	Type        Type   `json:"corpus_type"`
	TenantID    string `json:"tenant_id"`
	OriginIndex int    `json:"origin_index"`
	SourceRef   string `json:"source_ref"`
}

// Snapshot is the chunk list and vector matrix of one (tenant, type) pair.
// Jobs holds the source postings for the job corpus so origin indexes resolve
// against the same generation as the vectors.
type Snapshot struct {
	Type       Type
	TenantID   string
	Generation string
	Chunks     []Chunk
	Vectors    [][]float32
	Jobs       []job.Job
	UpdatedAt  time.Time
}

// Empty returns the snapshot of a corpus that was never written.
func Empty(tenant string, t Type) *Snapshot {
	return &Snapshot{Type: t, TenantID: tenant}
}

// Len returns the number of chunks.
func (s *Snapshot) Len() int { return len(s.Chunks) }

// Dim returns the vector dimension, 0 for an empty snapshot.
func (s *Snapshot) Dim() int {
	if len(s.Vectors) == 0 {
		return 0
	}
	return len(s.Vectors[0])
}

// Validate checks the structural invariants every persisted snapshot must hold.
func (s *Snapshot) Validate() error {
	if len(s.Chunks) != len(s.Vectors) {
		return fmt.Errorf("%d chunks, %d vectors: %w", len(s.Chunks), len(s.Vectors), domain.ErrLengthMismatch)
	}
	if _, err := vector.CheckDims(s.Vectors, 0); err != nil {
		return err
	}
	for i, c := range s.Chunks {
		switch {
		case c.TenantID != s.TenantID:
			return fmt.Errorf("chunk %d tenant %q in partition %q: %w", i, c.TenantID, s.TenantID, domain.ErrTenantMismatch)
		case c.Type != s.Type:
			return fmt.Errorf("chunk %d type %q in %q corpus: %w", i, c.Type, s.Type, domain.ErrIntegrity)
		case c.ID != i:
			return fmt.Errorf("chunk at %d has id %d: %w", i, c.ID, domain.ErrIntegrity)
		case c.Text == "":
			return fmt.Errorf("chunk %d is empty: %w", i, domain.ErrIntegrity)
		case c.OriginIndex < 0:
			return fmt.Errorf("chunk %d origin %d: %w", i, c.OriginIndex, domain.ErrIntegrity)
		case s.Type == Job && s.Jobs != nil && c.OriginIndex >= len(s.Jobs):
			return fmt.Errorf("chunk %d origin %d beyond %d jobs: %w", i, c.OriginIndex, len(s.Jobs), domain.ErrIntegrity)
		}
	}
	return nil
}
