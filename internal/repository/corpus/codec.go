package corpus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
)

// Hash field names of a snapshot record.
const (
	fieldChunks     = "chunks"
	fieldVectors    = "vectors"
	fieldJobs       = "jobs"
	fieldGeneration = "generation"
	fieldUpdatedAt  = "updated_at"
	fieldCount      = "count"
)

// matrixMagic prefixes the vector matrix so foreign blobs are rejected early.
var matrixMagic = [4]byte{'J', 'R', 'V', '1'}

const matrixHeaderLen = 12

// encodeMatrix writes magic, rows and dims as little-endian uint32, then row-major float32 values.
func encodeMatrix(rows [][]float32) []byte {
	dims := 0
	if len(rows) > 0 {
		dims = len(rows[0])
	}
	buf := make([]byte, matrixHeaderLen+len(rows)*dims*4)
	copy(buf, matrixMagic[:])
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(rows)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(dims))

	off := matrixHeaderLen
	for _, r := range rows {
		for _, f := range r {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	return buf
}

func decodeMatrix(data []byte) ([][]float32, error) {
	if len(data) < matrixHeaderLen || [4]byte(data[:4]) != matrixMagic {
		return nil, fmt.Errorf("vector matrix header: %w", domain.ErrIntegrity)
	}
	r32 := binary.LittleEndian.Uint32(data[4:])
	d32 := binary.LittleEndian.Uint32(data[8:])
	// The product of two uint32 values cannot overflow uint64.
	body := uint64(len(data) - matrixHeaderLen)
	if body%4 != 0 || uint64(r32)*uint64(d32) != body/4 {
		return nil, fmt.Errorf("vector matrix body is %d bytes, header says %dx%d: %w",
			body, r32, d32, domain.ErrIntegrity)
	}
	rows, dims := int(r32), int(d32)

	out := make([][]float32, rows)
	flat := make([]float32, rows*dims)
	for i := range flat {
		flat[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[matrixHeaderLen+i*4:]))
	}
	for i := range out {
		out[i] = flat[i*dims : (i+1)*dims : (i+1)*dims]
	}
	return out, nil
}

func encodeSnapshot(s *domcorpus.Snapshot) (map[string]string, error) {
	chunks := s.Chunks
	if chunks == nil {
		chunks = []domcorpus.Chunk{}
	}
	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return nil, fmt.Errorf("marshal chunks: %w", err)
	}

	jobs := s.Jobs
	if jobs == nil {
		jobs = []job.Job{}
	}
	jobsJSON, err := json.Marshal(jobs)
	if err != nil {
		return nil, fmt.Errorf("marshal jobs: %w", err)
	}

	return map[string]string{
		fieldChunks:     string(chunksJSON),
		fieldVectors:    string(encodeMatrix(s.Vectors)),
		fieldJobs:       string(jobsJSON),
		fieldGeneration: s.Generation,
		fieldUpdatedAt:  s.UpdatedAt.UTC().Format(time.RFC3339Nano),
		fieldCount:      strconv.Itoa(len(s.Chunks)),
	}, nil
}

func decodeSnapshot(tenant string, t domcorpus.Type, fields map[string]string) (*domcorpus.Snapshot, error) {
	rawChunks, okC := fields[fieldChunks]
	rawVectors, okV := fields[fieldVectors]
	if !okC || !okV {
		return nil, fmt.Errorf("snapshot record lacks chunks or vectors: %w", domain.ErrIntegrity)
	}

	s := &domcorpus.Snapshot{
		Type:       t,
		TenantID:   tenant,
		Generation: fields[fieldGeneration],
	}
	if err := json.Unmarshal([]byte(rawChunks), &s.Chunks); err != nil {
		return nil, fmt.Errorf("decode chunks: %v: %w", err, domain.ErrIntegrity)
	}
	vectors, err := decodeMatrix([]byte(rawVectors))
	if err != nil {
		return nil, err
	}
	s.Vectors = vectors

	if raw, ok := fields[fieldJobs]; ok && t == domcorpus.Job {
		if err := json.Unmarshal([]byte(raw), &s.Jobs); err != nil {
			return nil, fmt.Errorf("decode jobs: %v: %w", err, domain.ErrIntegrity)
		}
	}
	if raw := fields[fieldUpdatedAt]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			s.UpdatedAt = ts
		}
	}
	return s, nil
}
