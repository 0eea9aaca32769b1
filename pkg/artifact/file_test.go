package artifact

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close(ctx)

	rec := &Record{
		ID:        "run-1",
		Corpus:    "corpus.xml",
		DOT:       "digraph G {\n}\n",
		Engine:    "dot",
		NodeCount: 12,
		EdgeCount: 9,
		Duration:  3 * time.Second,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DOT != rec.DOT || got.NodeCount != 12 || got.Engine != "dot" {
		t.Errorf("got %+v", got)
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(absent) = %v, want ErrNotFound", err)
	}
}

func TestFileStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"a", "b"} {
		if err := store.Put(ctx, &Record{ID: id, CreatedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Errorf("deleting a missing record should not error: %v", err)
	}

	ids, _ = store.List(ctx)
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("ids after delete = %v", ids)
	}
}
