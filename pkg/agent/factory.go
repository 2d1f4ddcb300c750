package agent

import (
	"fmt"
	"sync"

	batoncontext "github.com/batonlabs/baton/pkg/context"
	"github.com/batonlabs/baton/pkg/llm"
	"github.com/batonlabs/baton/pkg/memory"
	"github.com/batonlabs/baton/pkg/reasoning"
	"github.com/batonlabs/baton/pkg/tools"
)

// FactoryDeps carries the shared collaborators every agent instance
// runs against.
type FactoryDeps struct {
	LLM       llm.Provider
	Scheduler *tools.Scheduler
	Registry  *tools.Registry
	Memory    *memory.Manager

	// Contexts is optional; when nil a context manager is built from
	// Memory and Registry.
	Contexts *batoncontext.Manager

	// Interaction approves dangerous tool calls. Nil denies them.
	Interaction reasoning.InteractionHandler

	// MaxRetries bounds JSON-recovery retries per reasoning turn.
	// Zero means the engine default of 1.
	MaxRetries int
}

// CreateOptions tunes a single CreateAgent call.
type CreateOptions struct {
	// ForceRecreate bypasses the instance cache.
	ForceRecreate bool
}

// Factory builds Agent instances from registrations and caches them by
// agent id.
type Factory struct {
	llm       llm.Provider
	scheduler *tools.Scheduler
	registry  *tools.Registry
	memory    *memory.Manager
	contexts  *batoncontext.Manager
	engine    *reasoning.Engine

	mu    sync.Mutex
	cache map[string]*Agent
}

// NewFactory wires the shared reasoning engine and returns a factory.
func NewFactory(deps FactoryDeps) (*Factory, error) {
	if deps.LLM == nil {
		return nil, fmt.Errorf("factory requires an LLM provider")
	}
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("factory requires a tool scheduler")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("factory requires a tool registry")
	}
	if deps.Memory == nil {
		return nil, fmt.Errorf("factory requires a memory manager")
	}

	contexts := deps.Contexts
	if contexts == nil {
		contexts = batoncontext.NewManager(deps.Memory, deps.Registry)
	}

	engine := reasoning.NewEngine(deps.LLM, deps.Scheduler, deps.Registry, contexts,
		reasoning.WithInteractionHandler(deps.Interaction),
		reasoning.WithMaxRetries(deps.MaxRetries),
	)

	return &Factory{
		llm:       deps.LLM,
		scheduler: deps.Scheduler,
		registry:  deps.Registry,
		memory:    deps.Memory,
		contexts:  contexts,
		engine:    engine,
		cache:     make(map[string]*Agent),
	}, nil
}

// CreateAgent returns the cached instance for the registration's id, or
// builds one. Inactive registrations are rejected.
func (f *Factory) CreateAgent(reg *RegisteredAgent, opts *CreateOptions) (*Agent, error) {
	if reg == nil {
		return nil, fmt.Errorf("registered agent cannot be nil")
	}
	if !reg.IsActive {
		return nil, fmt.Errorf("agent %q is inactive", reg.Identity.AgentName)
	}

	force := opts != nil && opts.ForceRecreate

	f.mu.Lock()
	defer f.mu.Unlock()

	if !force {
		if cached, ok := f.cache[reg.Identity.AgentID]; ok {
			return cached, nil
		}
	}

	a := &Agent{
		identity:     reg.Identity,
		capabilities: reg.Capabilities,
		systemPrompt: reg.EffectiveSystemPrompt(),
		engine:       f.engine,
	}
	f.cache[reg.Identity.AgentID] = a
	return a, nil
}

// Invalidate drops one cached instance.
func (f *Factory) Invalidate(agentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, agentID)
}

// Reset drops every cached instance.
func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]*Agent)
}

// Contexts exposes the shared context manager so callers can attach
// system context to prompts.
func (f *Factory) Contexts() *batoncontext.Manager {
	return f.contexts
}
