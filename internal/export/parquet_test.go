package export

import (
	"bytes"
	"testing"

	"github.com/parquet-go/parquet-go"

	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
)

func testSnapshot(t domcorpus.Type, tenant string, texts ...string) *domcorpus.Snapshot {
	snap := &domcorpus.Snapshot{Type: t, TenantID: tenant, Generation: "gen-" + tenant}
	for i, text := range texts {
		snap.Chunks = append(snap.Chunks, domcorpus.Chunk{
			ID: i, Text: text, Type: t, TenantID: tenant, OriginIndex: i / 2, SourceRef: "ref",
		})
		snap.Vectors = append(snap.Vectors, []float32{float32(i), 1})
	}
	return snap
}

func readBack(t *testing.T, buf *bytes.Buffer) []Row {
	t.Helper()
	rows, err := parquet.Read[Row](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	return rows
}

func TestWrite_RoundTrip(t *testing.T) {
	snaps := []*domcorpus.Snapshot{
		testSnapshot(domcorpus.Job, "alice", "a", "b", "c"),
		testSnapshot(domcorpus.Resume, "alice", "cv"),
	}

	var buf bytes.Buffer
	n, err := Write(&buf, snaps, Options{IncludeVectors: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 rows, got %d", n)
	}

	rows := readBack(t, &buf)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows read, got %d", len(rows))
	}
	if rows[2].Text != "c" || rows[2].ChunkID != 2 || rows[2].OriginIndex != 1 || rows[2].CorpusType != "job" {
		t.Errorf("unexpected row: %+v", rows[2])
	}
	if rows[3].CorpusType != "resume" || rows[3].Generation != "gen-alice" {
		t.Errorf("unexpected row: %+v", rows[3])
	}
	if len(rows[1].Vector) != 2 || rows[1].Vector[0] != 1 {
		t.Errorf("unexpected vector: %v", rows[1].Vector)
	}
}

func TestWrite_WithoutVectors(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Write(&buf, []*domcorpus.Snapshot{testSnapshot(domcorpus.Job, "bob", "x")}, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := readBack(t, &buf)
	if len(rows) != 1 || len(rows[0].Vector) != 0 {
		t.Errorf("expected one row without vector, got %+v", rows)
	}
}

func TestWrite_RowGroups(t *testing.T) {
	var buf bytes.Buffer
	snap := testSnapshot(domcorpus.Job, "carol", "1", "2", "3", "4", "5")
	n, err := Write(&buf, []*domcorpus.Snapshot{snap}, Options{RowGroupSize: 2})
	if err != nil || n != 5 {
		t.Fatalf("unexpected result: %d %v", n, err)
	}

	f, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	if got := len(f.RowGroups()); got < 3 {
		t.Errorf("expected a row group per flush, got %d", got)
	}
	if f.NumRows() != 5 {
		t.Errorf("expected 5 rows, got %d", f.NumRows())
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, []*domcorpus.Snapshot{domcorpus.Empty("dave", domcorpus.Job)}, Options{})
	if err != nil || n != 0 {
		t.Fatalf("unexpected result: %d %v", n, err)
	}
	if rows := readBack(t, &buf); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}
