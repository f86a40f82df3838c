// Package search holds retrieval results.
package search

import "github.com/kailas-cloud/jobrag/internal/domain/corpus"

// Hit is a scored chunk.
type Hit struct {
	Chunk corpus.Chunk `json:"chunk"`
	Score float64      `json:"score"`
}

// Results are the ranked hits of one query, per corpus.
type Results struct {
	Jobs    []Hit `json:"jobs"`
	Resumes []Hit `json:"resumes"`
}

// Empty reports whether neither corpus produced a hit.
func (r Results) Empty() bool { return len(r.Jobs) == 0 && len(r.Resumes) == 0 }
