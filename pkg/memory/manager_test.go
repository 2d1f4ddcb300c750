package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/llm"
	"github.com/batonlabs/baton/pkg/vector"
)

// countingRepository wraps the in-memory repository and counts History
// calls so cache behavior is observable.
type countingRepository struct {
	*InMemoryRepository
	mu           sync.Mutex
	historyCalls int
}

func (r *countingRepository) History(agentID string, maxTurns int) ([]Turn, error) {
	r.mu.Lock()
	r.historyCalls++
	r.mu.Unlock()
	return r.InMemoryRepository.History(agentID, maxTurns)
}

func (r *countingRepository) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.historyCalls
}

func newCountingManager(t *testing.T) (*Manager, *countingRepository) {
	t.Helper()
	repo := &countingRepository{InMemoryRepository: NewInMemoryRepository()}
	mgr, err := NewManager(repo, 10)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return mgr, repo
}

func TestManager_ContextServedFromCache(t *testing.T) {
	mgr, repo := newCountingManager(t)
	ctx := context.Background()

	if err := mgr.SaveTurn(ctx, "agent-1", RoleUser, "hello", nil); err != nil {
		t.Fatalf("SaveTurn() error = %v", err)
	}

	first, err := mgr.Context("agent-1", 5)
	if err != nil {
		t.Fatalf("Context() error = %v", err)
	}
	if len(first.Turns) != 1 {
		t.Fatalf("Context() returned %d turns, want 1", len(first.Turns))
	}

	second, err := mgr.Context("agent-1", 5)
	if err != nil {
		t.Fatalf("Context() error = %v", err)
	}
	if repo.calls() != 1 {
		t.Errorf("History called %d times, want 1 (second read from cache)", repo.calls())
	}
	if second.Turns[0].Content != "hello" {
		t.Errorf("cached context content = %q", second.Turns[0].Content)
	}

	// Different turn bound is a different cache entry.
	if _, err := mgr.Context("agent-1", 3); err != nil {
		t.Fatalf("Context() error = %v", err)
	}
	if repo.calls() != 2 {
		t.Errorf("History called %d times, want 2 (distinct bound misses)", repo.calls())
	}
}

func TestManager_WriteInvalidatesCache(t *testing.T) {
	mgr, repo := newCountingManager(t)
	ctx := context.Background()

	_ = mgr.SaveTurn(ctx, "agent-1", RoleUser, "one", nil)
	if _, err := mgr.Context("agent-1", 5); err != nil {
		t.Fatalf("Context() error = %v", err)
	}

	// A write for any agent purges every cached snapshot.
	_ = mgr.SaveTurn(ctx, "agent-2", RoleUser, "two", nil)

	snapshot, err := mgr.Context("agent-1", 5)
	if err != nil {
		t.Fatalf("Context() error = %v", err)
	}
	if repo.calls() != 2 {
		t.Errorf("History called %d times, want 2 (cache purged on write)", repo.calls())
	}
	if len(snapshot.Turns) != 1 {
		t.Errorf("snapshot has %d turns, want 1", len(snapshot.Turns))
	}

	tests := []struct {
		name  string
		write func() error
	}{
		{"AppendTurns", func() error {
			return mgr.AppendTurns("agent-1", []Turn{{Role: RoleUser, Content: "x"}})
		}},
		{"ClearAgent", func() error { return mgr.ClearAgent("agent-1") }},
		{"DeleteAgent", func() error { return mgr.DeleteAgent("agent-1") }},
		{"ClearAll", func() error { return mgr.ClearAll() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := mgr.Context("agent-1", 5); err != nil {
				t.Fatalf("Context() error = %v", err)
			}
			before := repo.calls()
			if err := tt.write(); err != nil {
				t.Fatalf("write error = %v", err)
			}
			if _, err := mgr.Context("agent-1", 5); err != nil {
				t.Fatalf("Context() error = %v", err)
			}
			if repo.calls() != before+1 {
				t.Errorf("History calls = %d, want %d (write must purge cache)", repo.calls(), before+1)
			}
		})
	}
}

func TestManager_CachedContextIsCopied(t *testing.T) {
	mgr, _ := newCountingManager(t)
	ctx := context.Background()

	_ = mgr.SaveTurn(ctx, "agent-1", RoleUser, "hello", map[string]any{"k": "v"})

	first, _ := mgr.Context("agent-1", 5)
	first.Turns[0].Content = "tampered"
	first.Turns[0].Metadata["k"] = "tampered"

	second, _ := mgr.Context("agent-1", 5)
	if second.Turns[0].Content != "hello" || second.Turns[0].Metadata["k"] != "v" {
		t.Error("cached context aliased a previously returned snapshot")
	}
}

func TestManager_Stats(t *testing.T) {
	mgr, _ := newCountingManager(t)
	ctx := context.Background()

	_ = mgr.SaveTurn(ctx, "orchestrator", RoleUser, "q", nil)
	_ = mgr.SaveTurn(ctx, "orchestrator", RoleAssistant, "a", nil)
	_ = mgr.SaveTurn(ctx, "exec-1", RoleUser, "task", nil)

	stats, err := mgr.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.AgentCount != 2 {
		t.Errorf("AgentCount = %d, want 2", stats.AgentCount)
	}
	if stats.TotalTurns != 3 {
		t.Errorf("TotalTurns = %d, want 3", stats.TotalTurns)
	}
	if stats.TurnsByAgent["orchestrator"] != 2 || stats.TurnsByAgent["exec-1"] != 1 {
		t.Errorf("TurnsByAgent = %v", stats.TurnsByAgent)
	}
}

func TestManager_CleanupInactive(t *testing.T) {
	mgr, repo := newCountingManager(t)

	old := time.Now().Add(-48 * time.Hour)
	_ = repo.AppendTurns("stale", []Turn{{Role: RoleUser, Content: "old", Timestamp: old}})
	_ = repo.AppendTurns("fresh", []Turn{{Role: RoleUser, Content: "new", Timestamp: time.Now()}})

	removed, err := mgr.CleanupInactive(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupInactive() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("CleanupInactive() removed %d, want 1", removed)
	}

	if exists, _ := repo.Exists("stale"); exists {
		t.Error("stale agent still exists")
	}
	if exists, _ := repo.Exists("fresh"); !exists {
		t.Error("fresh agent was removed")
	}
}

// stubEmbedder returns a fixed vector per text.
type stubEmbedder struct {
	calls []string
}

func (e *stubEmbedder) Embedding(ctx context.Context, texts []string) (*llm.EmbeddingResponse, error) {
	e.calls = append(e.calls, texts...)
	data := make([]llm.EmbeddingData, len(texts))
	for i := range texts {
		data[i] = llm.EmbeddingData{Index: i, Embedding: []float32{1, 0, 0}}
	}
	return &llm.EmbeddingResponse{Data: data}, nil
}

// stubStore records upserts and serves canned search results.
type stubStore struct {
	upserts []string // collection names
	results []vector.Result
}

func (s *stubStore) Upsert(ctx context.Context, collection, id string, vec []float32, metadata map[string]any) error {
	s.upserts = append(s.upserts, collection)
	return nil
}

func (s *stubStore) Search(ctx context.Context, collection string, vec []float32, topK int) ([]vector.Result, error) {
	if topK < len(s.results) {
		return s.results[:topK], nil
	}
	return s.results, nil
}

func (s *stubStore) Close() error { return nil }

func TestManager_LongTermRecall(t *testing.T) {
	repo := NewInMemoryRepository()
	mgr, err := NewManager(repo, 10)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	embedder := &stubEmbedder{}
	store := &stubStore{results: []vector.Result{
		{ID: "r1", Score: 0.9, Content: "we discussed sqlite"},
	}}
	cfg := &config.LongTermConfig{Enabled: true, Collection: "baton-memory", TopK: 5}
	cfg.SetDefaults()
	mgr.EnableRecall(store, embedder, cfg)

	ctx := context.Background()

	// User and assistant turns are indexed, tool turns are not.
	_ = mgr.SaveTurn(ctx, "orchestrator", RoleUser, "what database do we use", nil)
	_ = mgr.SaveTurn(ctx, "orchestrator", RoleTool, "tool output", nil)

	if len(store.upserts) != 1 {
		t.Fatalf("store received %d upserts, want 1", len(store.upserts))
	}
	if store.upserts[0] != "baton-memory-orchestrator" {
		t.Errorf("upsert collection = %q, want baton-memory-orchestrator", store.upserts[0])
	}

	results, err := mgr.Recall(ctx, "orchestrator", "which db", 0)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(results) != 1 || results[0].Content != "we discussed sqlite" {
		t.Errorf("Recall() = %+v", results)
	}

	// Recall is a no-op when disabled.
	plain, _ := NewManager(NewInMemoryRepository(), 10)
	results, err = plain.Recall(ctx, "orchestrator", "anything", 3)
	if err != nil || results != nil {
		t.Errorf("Recall() disabled = %v, %v; want nil, nil", results, err)
	}
}
