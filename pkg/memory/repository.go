package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Repository stores conversation turns per agent. Implementations must
// be safe for concurrent use and must return deep copies.
type Repository interface {
	// SaveTurn appends one turn to an agent's history. A zero timestamp
	// is assigned by the repository.
	SaveTurn(agentID, role, content string, metadata map[string]any) error

	// History returns an agent's turns oldest-first. When maxTurns > 0
	// only the most recent maxTurns are returned.
	History(agentID string, maxTurns int) ([]Turn, error)

	// LastTurn returns the most recent turn, or false when the agent
	// has none.
	LastTurn(agentID string) (Turn, bool, error)

	// TurnCount returns the number of stored turns for an agent.
	TurnCount(agentID string) (int, error)

	// Exists reports whether the agent has a memory entry.
	Exists(agentID string) (bool, error)

	// ClearAgent empties an agent's history but keeps the entry.
	ClearAgent(agentID string) error

	// DeleteAgent removes the agent's entry entirely.
	DeleteAgent(agentID string) error

	// AppendTurns appends multiple turns atomically, preserving order.
	AppendTurns(agentID string, turns []Turn) error

	// AllAgentIDs returns every agent with a memory entry, sorted.
	AllAgentIDs() ([]string, error)

	// ClearAll removes everything.
	ClearAll() error
}

// InMemoryRepository keeps turns in a map guarded by a mutex. It is the
// default backend; the SQL repository is a drop-in replacement.
type InMemoryRepository struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewInMemoryRepository creates an empty in-memory turn store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		turns: make(map[string][]Turn),
	}
}

func (r *InMemoryRepository) SaveTurn(agentID, role, content string, metadata map[string]any) error {
	if agentID == "" {
		return fmt.Errorf("agentID cannot be empty")
	}
	if role == "" {
		return fmt.Errorf("role cannot be empty")
	}

	turn := Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.turns[agentID] = append(r.turns[agentID], turn.clone())
	return nil
}

func (r *InMemoryRepository) History(agentID string, maxTurns int) ([]Turn, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agentID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	turns := r.turns[agentID]
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	return cloneTurns(turns), nil
}

func (r *InMemoryRepository) LastTurn(agentID string) (Turn, bool, error) {
	if agentID == "" {
		return Turn{}, false, fmt.Errorf("agentID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	turns := r.turns[agentID]
	if len(turns) == 0 {
		return Turn{}, false, nil
	}

	return turns[len(turns)-1].clone(), true, nil
}

func (r *InMemoryRepository) TurnCount(agentID string) (int, error) {
	if agentID == "" {
		return 0, fmt.Errorf("agentID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.turns[agentID]), nil
}

func (r *InMemoryRepository) Exists(agentID string) (bool, error) {
	if agentID == "" {
		return false, fmt.Errorf("agentID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.turns[agentID]
	return ok, nil
}

func (r *InMemoryRepository) ClearAgent(agentID string) error {
	if agentID == "" {
		return fmt.Errorf("agentID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.turns[agentID]; ok {
		r.turns[agentID] = nil
	}
	return nil
}

func (r *InMemoryRepository) DeleteAgent(agentID string) error {
	if agentID == "" {
		return fmt.Errorf("agentID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.turns, agentID)
	return nil
}

func (r *InMemoryRepository) AppendTurns(agentID string, turns []Turn) error {
	if agentID == "" {
		return fmt.Errorf("agentID cannot be empty")
	}
	if len(turns) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, t := range turns {
		turn := t.clone()
		if turn.Timestamp.IsZero() {
			turn.Timestamp = now
		}
		r.turns[agentID] = append(r.turns[agentID], turn)
	}
	return nil
}

func (r *InMemoryRepository) AllAgentIDs() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.turns))
	for id := range r.turns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *InMemoryRepository) ClearAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.turns = make(map[string][]Turn)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
