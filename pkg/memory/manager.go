package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/llm"
	"github.com/batonlabs/baton/pkg/vector"
)

// DefaultCacheSize caps the context cache when no size is configured.
const DefaultCacheSize = 100

// Embedder produces embeddings for long-term recall. *llm.Client
// satisfies it.
type Embedder interface {
	Embedding(ctx context.Context, texts []string) (*llm.EmbeddingResponse, error)
}

// Manager wraps a Repository with a context snapshot cache and optional
// vector-based recall across past conversations.
//
// Cache entries are keyed by agent and turn bound. Any write purges the
// whole cache: coarse, but it can never serve a stale snapshot.
type Manager struct {
	repo  Repository
	cache *lru.Cache[string, *Context]

	// Long-term recall, nil unless enabled.
	store    vector.Store
	embedder Embedder
	longTerm *config.LongTermConfig
}

// NewManager creates a manager over the given repository. cacheSize <= 0
// falls back to DefaultCacheSize.
func NewManager(repo Repository, cacheSize int) (*Manager, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, *Context](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create context cache: %w", err)
	}

	return &Manager{
		repo:  repo,
		cache: cache,
	}, nil
}

// EnableRecall turns on long-term recall: saved user and assistant turns
// are embedded and upserted into the vector store, and Recall surfaces
// related past turns.
func (m *Manager) EnableRecall(store vector.Store, embedder Embedder, cfg *config.LongTermConfig) {
	m.store = store
	m.embedder = embedder
	m.longTerm = cfg
}

func contextKey(agentID string, maxTurns int) string {
	return fmt.Sprintf("context:%s:%d", agentID, maxTurns)
}

// SaveTurn stores a turn and invalidates cached contexts.
func (m *Manager) SaveTurn(ctx context.Context, agentID, role, content string, metadata map[string]any) error {
	if err := m.repo.SaveTurn(agentID, role, content, metadata); err != nil {
		return err
	}
	m.cache.Purge()

	m.index(ctx, agentID, role, content)
	return nil
}

// index embeds a turn into the vector store. Failures are logged, never
// fatal: recall is a supplement, not a dependency of the write path.
func (m *Manager) index(ctx context.Context, agentID, role, content string) {
	if m.store == nil || m.embedder == nil || content == "" {
		return
	}
	if role != RoleUser && role != RoleAssistant {
		return
	}

	resp, err := m.embedder.Embedding(ctx, []string{content})
	if err != nil {
		slog.Warn("Failed to embed turn for long-term recall", "agent", agentID, "error", err)
		return
	}
	if len(resp.Data) == 0 {
		return
	}

	id := fmt.Sprintf("%s-%d", agentID, time.Now().UnixNano())
	metadata := map[string]any{
		"content":  content,
		"agent_id": agentID,
		"role":     role,
	}
	if err := m.store.Upsert(ctx, m.collection(agentID), id, resp.Data[0].Embedding, metadata); err != nil {
		slog.Warn("Failed to upsert turn into vector store", "agent", agentID, "error", err)
	}
}

func (m *Manager) collection(agentID string) string {
	return m.longTerm.Collection + "-" + agentID
}

// Recall returns past turns related to the query, most similar first.
// Returns nil when recall is disabled.
func (m *Manager) Recall(ctx context.Context, agentID, query string, topK int) ([]vector.Result, error) {
	if m.store == nil || m.embedder == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = m.longTerm.TopK
	}

	resp, err := m.embedder.Embedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed recall query: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}

	return m.store.Search(ctx, m.collection(agentID), resp.Data[0].Embedding, topK)
}

// Context returns a snapshot of the agent's recent history, serving from
// cache when possible.
func (m *Manager) Context(agentID string, maxTurns int) (*Context, error) {
	key := contextKey(agentID, maxTurns)

	if cached, ok := m.cache.Get(key); ok {
		return cached.clone(), nil
	}

	turns, err := m.repo.History(agentID, maxTurns)
	if err != nil {
		return nil, err
	}

	snapshot := &Context{
		AgentID:  agentID,
		MaxTurns: maxTurns,
		Turns:    turns,
		BuiltAt:  time.Now(),
	}
	m.cache.Add(key, snapshot)

	return snapshot.clone(), nil
}

// History bypasses the cache and reads straight from the repository.
func (m *Manager) History(agentID string, maxTurns int) ([]Turn, error) {
	return m.repo.History(agentID, maxTurns)
}

// LastTurn returns the agent's most recent turn.
func (m *Manager) LastTurn(agentID string) (Turn, bool, error) {
	return m.repo.LastTurn(agentID)
}

// TurnCount returns the number of turns stored for the agent.
func (m *Manager) TurnCount(agentID string) (int, error) {
	return m.repo.TurnCount(agentID)
}

// Exists reports whether the agent has a memory entry.
func (m *Manager) Exists(agentID string) (bool, error) {
	return m.repo.Exists(agentID)
}

// AppendTurns stores several turns atomically and invalidates the cache.
func (m *Manager) AppendTurns(agentID string, turns []Turn) error {
	if err := m.repo.AppendTurns(agentID, turns); err != nil {
		return err
	}
	m.cache.Purge()
	return nil
}

// ClearAgent empties an agent's history and invalidates the cache.
func (m *Manager) ClearAgent(agentID string) error {
	if err := m.repo.ClearAgent(agentID); err != nil {
		return err
	}
	m.cache.Purge()
	return nil
}

// DeleteAgent removes an agent's memory entirely and invalidates the cache.
func (m *Manager) DeleteAgent(agentID string) error {
	if err := m.repo.DeleteAgent(agentID); err != nil {
		return err
	}
	m.cache.Purge()
	return nil
}

// AllAgentIDs returns every agent with stored memory.
func (m *Manager) AllAgentIDs() ([]string, error) {
	return m.repo.AllAgentIDs()
}

// ClearAll wipes every agent's memory and the cache.
func (m *Manager) ClearAll() error {
	if err := m.repo.ClearAll(); err != nil {
		return err
	}
	m.cache.Purge()
	return nil
}

// CleanupInactive deletes agents whose last turn is older than the given
// age and returns how many were removed. Agents with no turns are kept.
func (m *Manager) CleanupInactive(olderThan time.Duration) (int, error) {
	ids, err := m.repo.AllAgentIDs()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, id := range ids {
		last, ok, err := m.repo.LastTurn(id)
		if err != nil {
			return removed, err
		}
		if !ok || !last.Timestamp.Before(cutoff) {
			continue
		}
		if err := m.repo.DeleteAgent(id); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		m.cache.Purge()
	}
	return removed, nil
}

// Stats summarizes repository and cache state.
func (m *Manager) Stats() (Stats, error) {
	ids, err := m.repo.AllAgentIDs()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		AgentCount:   len(ids),
		TurnsByAgent: make(map[string]int, len(ids)),
		CacheEntries: m.cache.Len(),
	}
	for _, id := range ids {
		count, err := m.repo.TurnCount(id)
		if err != nil {
			return Stats{}, err
		}
		stats.TurnsByAgent[id] = count
		stats.TotalTurns += count
	}

	return stats, nil
}

// Close releases repository and vector store resources.
func (m *Manager) Close() error {
	var firstErr error
	if closer, ok := m.repo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			firstErr = err
		}
	}
	if m.store != nil {
		if err := m.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
