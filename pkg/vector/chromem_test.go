package vector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestChromemStore_UpsertAndSearch(t *testing.T) {
	store, err := NewChromemStore(Config{})
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	docs := []struct {
		id     string
		vector []float32
		text   string
	}{
		{"doc-a", []float32{1, 0, 0}, "alpha"},
		{"doc-b", []float32{0, 1, 0}, "beta"},
		{"doc-c", []float32{0.9938, 0.1104, 0}, "gamma"},
	}
	for _, d := range docs {
		meta := map[string]any{"content": d.text, "turn": 1}
		if err := store.Upsert(ctx, "memory", d.id, d.vector, meta); err != nil {
			t.Fatalf("Upsert(%s) error = %v", d.id, err)
		}
	}

	results, err := store.Search(ctx, "memory", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].ID != "doc-a" {
		t.Errorf("nearest result = %q, want doc-a", results[0].ID)
	}
	if results[1].ID != "doc-c" {
		t.Errorf("second result = %q, want doc-c", results[1].ID)
	}
	if results[0].Content != "alpha" {
		t.Errorf("nearest content = %q, want alpha", results[0].Content)
	}
	if got := results[0].Metadata["turn"]; got != "1" {
		t.Errorf("metadata turn = %v, want stringified 1", got)
	}
}

func TestChromemStore_SearchClampsTopK(t *testing.T) {
	store, err := NewChromemStore(Config{})
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Empty collection: no error, no results.
	results, err := store.Search(ctx, "memory", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search() on empty collection error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Search() on empty collection returned %d results", len(results))
	}

	// One document, topK larger than collection size.
	if err := store.Upsert(ctx, "memory", "only", []float32{1, 0, 0}, map[string]any{"content": "x"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	results, err = store.Search(ctx, "memory", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(results))
	}
}

func TestChromemStore_PersistAndReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewChromemStore(Config{PersistPath: dir})
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	if err := store.Upsert(ctx, "memory", "doc-1", []float32{0, 0, 1}, map[string]any{"content": "persisted"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "vectors.gob")); err != nil {
		t.Fatalf("expected persisted database file: %v", err)
	}

	reloaded, err := NewChromemStore(Config{PersistPath: dir})
	if err != nil {
		t.Fatalf("NewChromemStore() reload error = %v", err)
	}
	defer reloaded.Close()

	results, err := reloaded.Search(ctx, "memory", []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatalf("Search() after reload error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "doc-1" {
		t.Fatalf("Search() after reload = %+v, want doc-1", results)
	}
	if results[0].Content != "persisted" {
		t.Errorf("reloaded content = %q, want persisted", results[0].Content)
	}
}
