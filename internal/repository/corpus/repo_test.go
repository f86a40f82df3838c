package corpus

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	in := jobSnapshot("t1")
	in.UpdatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := repo.Load(ctx, "t1", domcorpus.Job)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(out.Chunks, in.Chunks) {
		t.Errorf("chunks differ:\n%+v\n%+v", out.Chunks, in.Chunks)
	}
	if !reflect.DeepEqual(out.Vectors, in.Vectors) {
		t.Errorf("vectors differ: %v vs %v", out.Vectors, in.Vectors)
	}
	if !reflect.DeepEqual(out.Jobs, in.Jobs) {
		t.Errorf("jobs differ: %v vs %v", out.Jobs, in.Jobs)
	}
	if out.Generation != "gen-1" || !out.UpdatedAt.Equal(in.UpdatedAt) {
		t.Errorf("metadata lost: %q %v", out.Generation, out.UpdatedAt)
	}
}

func TestLoad_MissingIsEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)

	s, err := repo.Load(context.Background(), "nobody", domcorpus.Resume)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 0 || s.TenantID != "nobody" || s.Type != domcorpus.Resume {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

func TestSave_TenantsAndTypesAreSeparate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	if err := repo.Save(ctx, jobSnapshot("t1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, jobSnapshot("t2")); err != nil {
		t.Fatal(err)
	}
	empty := domcorpus.Empty("t1", domcorpus.Job)
	if err := repo.Save(ctx, empty); err != nil {
		t.Fatal(err)
	}

	t1, _ := repo.Load(ctx, "t1", domcorpus.Job)
	t2, _ := repo.Load(ctx, "t2", domcorpus.Job)
	res, _ := repo.Load(ctx, "t1", domcorpus.Resume)
	if t1.Len() != 0 {
		t.Errorf("t1 job corpus should be replaced by the empty set, got %d chunks", t1.Len())
	}
	if t2.Len() != 2 {
		t.Errorf("t2 must be untouched, got %d chunks", t2.Len())
	}
	if res.Len() != 0 {
		t.Errorf("resume corpus must be untouched, got %d chunks", res.Len())
	}
}

func TestSave_RejectsInvalidSnapshot(t *testing.T) {
	called := false
	repo := New(&mockStore{hsetFn: func(context.Context, string, map[string]string) error {
		called = true
		return nil
	}})

	s := jobSnapshot("t1")
	s.Vectors = s.Vectors[:1]
	err := repo.Save(context.Background(), s)
	if !errors.Is(err, domain.ErrLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
	if called {
		t.Error("nothing may be written for an invalid snapshot")
	}
}

func TestSave_StoreErrorIsTransient(t *testing.T) {
	repo := New(&mockStore{hsetFn: func(context.Context, string, map[string]string) error {
		return errors.New("connection reset")
	}})

	err := repo.Save(context.Background(), jobSnapshot("t1"))
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestLoad_StoreErrorIsTransient(t *testing.T) {
	repo := New(&mockStore{hgetAllFn: func(context.Context, string) (map[string]string, error) {
		return nil, context.DeadlineExceeded
	}})

	_, err := repo.Load(context.Background(), "t1", domcorpus.Job)
	if !domain.IsTransient(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected transient wrapping deadline, got %v", err)
	}
}

func TestLoad_CorruptRecords(t *testing.T) {
	good, err := encodeSnapshot(jobSnapshot("t1"))
	if err != nil {
		t.Fatal(err)
	}
	oneRow := encodeMatrix([][]float32{{1, 0, 0}})

	tests := []struct {
		name   string
		mutate func(f map[string]string)
		want   error
	}{
		{"missing vectors", func(f map[string]string) { delete(f, fieldVectors) }, domain.ErrIntegrity},
		{"garbage chunks", func(f map[string]string) { f[fieldChunks] = "{" }, domain.ErrIntegrity},
		{"bad magic", func(f map[string]string) { f[fieldVectors] = "XXXX00000000" }, domain.ErrIntegrity},
		{"truncated matrix", func(f map[string]string) { f[fieldVectors] = f[fieldVectors][:20] }, domain.ErrIntegrity},
		{"oversized header", func(f map[string]string) { f[fieldVectors] = string(matrixHeader(1<<31, 1<<31)) }, domain.ErrIntegrity},
		{"header larger than body", func(f map[string]string) {
			f[fieldVectors] = string(append(matrixHeader(2, 3), make([]byte, 12)...))
		}, domain.ErrIntegrity},
		{"ragged body", func(f map[string]string) { f[fieldVectors] = string(append(matrixHeader(0, 3), 1, 2)) }, domain.ErrIntegrity},
		{"length mismatch", func(f map[string]string) { f[fieldVectors] = string(oneRow) }, domain.ErrLengthMismatch},
		{"foreign tenant", func(f map[string]string) {
			f[fieldChunks] = `[{"id":0,"text":"x","corpus_type":"job","tenant_id":"t2","origin_index":0},` +
				`{"id":1,"text":"y","corpus_type":"job","tenant_id":"t1","origin_index":1}]`
		}, domain.ErrTenantMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := make(map[string]string, len(good))
			for k, v := range good {
				fields[k] = v
			}
			tc.mutate(fields)

			repo := New(&mockStore{hgetAllFn: func(context.Context, string) (map[string]string, error) {
				return fields, nil
			}})
			_, err := repo.Load(context.Background(), "t1", domcorpus.Job)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSnapshotKey(t *testing.T) {
	if got := snapshotKey("t1", domcorpus.Resume); got != "jobrag:snapshot:resume:t1" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	_ = repo.Save(ctx, jobSnapshot("t1"))

	if err := repo.Delete(ctx, "t1", domcorpus.Job); err != nil {
		t.Fatal(err)
	}
	s, _ := repo.Load(ctx, "t1", domcorpus.Job)
	if s.Len() != 0 {
		t.Error("expected empty snapshot after delete")
	}
}
