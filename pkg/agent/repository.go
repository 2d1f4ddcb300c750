package agent

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNameTaken rejects a save whose name belongs to a different
	// agent id.
	ErrNameTaken = errors.New("agent name already registered to a different agent")

	// ErrNotFound reports a lookup miss.
	ErrNotFound = errors.New("agent not found")
)

// Repository is the registered-agent catalog. Implementations must be
// safe for concurrent use and must return deep copies.
type Repository interface {
	// Save upserts an agent by id. A name that already maps to a
	// different id fails with ErrNameTaken.
	Save(a *RegisteredAgent) error

	// FindByID returns the agent, or ErrNotFound.
	FindByID(agentID string) (*RegisteredAgent, error)

	// FindByName returns the agent registered under name, or ErrNotFound.
	FindByName(name string) (*RegisteredAgent, error)

	// FindAll returns every agent, sorted by name.
	FindAll() ([]*RegisteredAgent, error)

	// FindActive returns active agents, sorted by name.
	FindActive() ([]*RegisteredAgent, error)

	// Exists reports whether the id is registered.
	Exists(agentID string) (bool, error)

	// ExistsByName reports whether the name is registered.
	ExistsByName(name string) (bool, error)

	// Delete removes the agent, or ErrNotFound.
	Delete(agentID string) error

	// Count returns the number of registered agents.
	Count() (int, error)

	// Clear removes everything.
	Clear() error
}

// InMemoryRepository keeps agents in maps guarded by a mutex. The
// default backend for the process lifetime.
type InMemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*RegisteredAgent
	byName map[string]string // name -> agent id
}

// NewInMemoryRepository creates an empty agent catalog.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:   make(map[string]*RegisteredAgent),
		byName: make(map[string]string),
	}
}

func (r *InMemoryRepository) Save(a *RegisteredAgent) error {
	if a == nil {
		return fmt.Errorf("agent cannot be nil")
	}
	if err := a.Identity.Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.Identity.AgentID
	name := a.Identity.AgentName
	if owner, taken := r.byName[name]; taken && owner != id {
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	}

	// An update may carry a renamed identity; drop the stale index entry.
	if prev, ok := r.byID[id]; ok && prev.Identity.AgentName != name {
		delete(r.byName, prev.Identity.AgentName)
	}

	r.byID[id] = a.clone()
	r.byName[name] = id
	return nil
}

func (r *InMemoryRepository) FindByID(agentID string) (*RegisteredAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: id %q", ErrNotFound, agentID)
	}
	return a.clone(), nil
}

func (r *InMemoryRepository) FindByName(name string) (*RegisteredAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
	}
	return r.byID[id].clone(), nil
}

func (r *InMemoryRepository) FindAll() ([]*RegisteredAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(*RegisteredAgent) bool { return true }), nil
}

func (r *InMemoryRepository) FindActive() ([]*RegisteredAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(a *RegisteredAgent) bool { return a.IsActive }), nil
}

// collect snapshots matching agents sorted by name. Callers hold the
// read lock.
func (r *InMemoryRepository) collect(keep func(*RegisteredAgent) bool) []*RegisteredAgent {
	out := make([]*RegisteredAgent, 0, len(r.byID))
	for _, a := range r.byID {
		if keep(a) {
			out = append(out, a.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity.AgentName < out[j].Identity.AgentName
	})
	return out
}

func (r *InMemoryRepository) Exists(agentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[agentID]
	return ok, nil
}

func (r *InMemoryRepository) ExistsByName(name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok, nil
}

func (r *InMemoryRepository) Delete(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[agentID]
	if !ok {
		return fmt.Errorf("%w: id %q", ErrNotFound, agentID)
	}
	delete(r.byName, a.Identity.AgentName)
	delete(r.byID, agentID)
	return nil
}

func (r *InMemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

func (r *InMemoryRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*RegisteredAgent)
	r.byName = make(map[string]string)
	return nil
}
