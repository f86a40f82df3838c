// Package export writes corpus snapshots as parquet files for offline inspection.
package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
)

// Row is one chunk of a snapshot. Vector is empty unless requested.
type Row struct {
	Tenant      string    `parquet:"tenant,dict"`
	CorpusType  string    `parquet:"corpus_type,dict"`
	Generation  string    `parquet:"generation,dict"`
	ChunkID     int64     `parquet:"chunk_id"`
	OriginIndex int64     `parquet:"origin_index"`
	SourceRef   string    `parquet:"source_ref"`
	Text        string    `parquet:"text"`
	Vector      []float32 `parquet:"vector"`
}

// Options tune an export.
type Options struct {
	IncludeVectors bool
	// RowGroupSize bounds rows buffered before a flush; 0 writes one group.
	RowGroupSize int
}

// Rows converts a snapshot to export rows in chunk order.
func Rows(snap *domcorpus.Snapshot, includeVectors bool) []Row {
	rows := make([]Row, len(snap.Chunks))
	for i, c := range snap.Chunks {
		rows[i] = Row{
			Tenant:      snap.TenantID,
			CorpusType:  string(snap.Type),
			Generation:  snap.Generation,
			ChunkID:     int64(c.ID),
			OriginIndex: int64(c.OriginIndex),
			SourceRef:   c.SourceRef,
			Text:        c.Text,
		}
		if includeVectors && i < len(snap.Vectors) {
			rows[i].Vector = snap.Vectors[i]
		}
	}
	return rows
}

// Write encodes the snapshots to w as a single zstd-compressed parquet file
// and returns the number of rows written.
func Write(w io.Writer, snaps []*domcorpus.Snapshot, opts Options) (int, error) {
	pw := parquet.NewGenericWriter[Row](w, parquet.Compression(&parquet.Zstd))

	total := 0
	for _, snap := range snaps {
		rows := Rows(snap, opts.IncludeVectors)
		for len(rows) > 0 {
			batch := rows
			if opts.RowGroupSize > 0 && len(batch) > opts.RowGroupSize {
				batch = rows[:opts.RowGroupSize]
			}
			n, err := pw.Write(batch)
			total += n
			if err != nil {
				_ = pw.Close()
				return total, fmt.Errorf("write %s rows of %s: %w", snap.Type, snap.TenantID, err)
			}
			if opts.RowGroupSize > 0 {
				if err := pw.Flush(); err != nil {
					_ = pw.Close()
					return total, fmt.Errorf("flush row group: %w", err)
				}
			}
			rows = rows[len(batch):]
		}
	}

	if err := pw.Close(); err != nil {
		return total, fmt.Errorf("close parquet writer: %w", err)
	}
	return total, nil
}
