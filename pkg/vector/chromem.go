// Package vector wraps an embedded chromem-go database behind the small
// store surface long-term memory needs: upsert pre-computed embeddings,
// search by similarity, persist to the state directory.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Store is the vector surface the memory manager consumes.
type Store interface {
	Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	Close() error
}

// Result is one similarity hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// Config configures the chromem store.
type Config struct {
	// PersistPath enables file persistence when non-empty. The
	// directory is created if missing.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress gzips the persisted database.
	Compress bool `yaml:"compress,omitempty"`
}

// ChromemStore stores vectors in memory with optional file persistence.
// Embeddings are computed externally and passed in, so the collection's
// embedding function is never invoked.
type ChromemStore struct {
	db          *chromem.DB
	persistPath string
	compress    bool

	mu          sync.RWMutex
	collections map[string]*chromem.Collection

	embeddingFunc chromem.EmbeddingFunc
}

// NewChromemStore creates a chromem-backed store, loading a previously
// persisted database when one exists at the configured path.
func NewChromemStore(cfg Config) (*ChromemStore, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		dbPath := dbFilePath(cfg.PersistPath, cfg.Compress)
		if _, statErr := os.Stat(dbPath); statErr == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				slog.Warn("Failed to load existing vector database, creating new",
					"path", dbPath,
					"error", err)
				db = chromem.NewDB()
			} else {
				slog.Info("Loaded vector database from file", "path", dbPath)
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
	}

	return &ChromemStore{
		db:            db,
		persistPath:   cfg.PersistPath,
		compress:      cfg.Compress,
		collections:   make(map[string]*chromem.Collection),
		embeddingFunc: identityEmbed,
	}, nil
}

func (s *ChromemStore) getCollection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	if col, ok := s.collections[name]; ok {
		s.mu.RUnlock()
		return col, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", name, err)
	}

	s.collections[name] = col
	return col, nil
}

// Upsert stores a document with its pre-computed embedding.
func (s *ChromemStore) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}

	// chromem metadata values must be strings.
	strMetadata := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMetadata[k] = fmt.Sprint(v)
	}

	content := ""
	if c, ok := metadata["content"].(string); ok {
		content = c
	}

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Metadata:  strMetadata,
		Embedding: vector,
	}

	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after upsert", "error", err)
	}

	return nil
}

// Search returns the topK most similar documents. topK is clamped to
// the collection size, so searching a near-empty collection is not an
// error.
func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	col, err := s.getCollection(collection)
	if err != nil {
		return nil, err
	}

	if count := col.Count(); topK > count {
		topK = count
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}

		out = append(out, Result{
			ID:       r.ID,
			Score:    r.Similarity,
			Content:  r.Content,
			Metadata: metadata,
		})
	}

	return out, nil
}

// Close persists the database when persistence is enabled.
func (s *ChromemStore) Close() error {
	return s.persist()
}

func (s *ChromemStore) persist() error {
	if s.persistPath == "" {
		return nil
	}

	dbPath := dbFilePath(s.persistPath, s.compress)
	if err := s.db.Export(dbPath, s.compress, ""); err != nil {
		return fmt.Errorf("failed to persist database: %w", err)
	}
	return nil
}

func dbFilePath(persistPath string, compress bool) string {
	path := persistPath + "/vectors.gob"
	if compress {
		path += ".gz"
	}
	return path
}

var _ Store = (*ChromemStore)(nil)
