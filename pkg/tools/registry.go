package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/batonlabs/baton/pkg/registry"
)

// Registry holds the process's tool surface. Registration normally
// happens once at startup; reads dominate afterwards.
type Registry struct {
	base *registry.BaseRegistry[Tool]
}

// ListOptions filter List and AllToolsInfo output.
type ListOptions struct {
	// Category restricts to one category when non-empty.
	Category string

	// IncludeDangerous keeps dangerous tools in the listing.
	IncludeDangerous bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		base: registry.NewBaseRegistry[Tool](),
	}
}

// Register adds a tool. A duplicate name is a no-op with a warning so
// startup wiring and hot reload can overlap safely.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool cannot be nil")
	}

	meta := t.Metadata()
	if meta.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if r.base.Has(meta.Name) {
		slog.Warn("Tool already registered, keeping existing", "tool", meta.Name)
		return nil
	}

	return r.base.Register(meta.Name, t)
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.base.Get(name)
}

// Has reports whether the named tool is registered.
func (r *Registry) Has(name string) bool {
	return r.base.Has(name)
}

// Remove drops a tool, for toolset detach on config reload.
func (r *Registry) Remove(name string) error {
	return r.base.Remove(name)
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return r.base.Count()
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	return r.base.Names()
}

// List returns tools matching the options, sorted by name.
func (r *Registry) List(opts ListOptions) []Tool {
	var out []Tool
	for _, name := range r.base.Names() {
		t, ok := r.base.Get(name)
		if !ok {
			continue
		}
		meta := t.Metadata()
		if opts.Category != "" && meta.Category != opts.Category {
			continue
		}
		if !opts.IncludeDangerous && (meta.Dangerous || DangerousTools[meta.Name]) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// GetInfo returns one tool's metadata.
func (r *Registry) GetInfo(name string) (Metadata, bool) {
	t, ok := r.base.Get(name)
	if !ok {
		return Metadata{}, false
	}
	return t.Metadata(), true
}

// AllToolsInfo returns every tool's metadata sorted by name, with
// parameters in stable order. This feeds the prompt layer's catalog.
func (r *Registry) AllToolsInfo() []Metadata {
	names := r.base.Names()
	out := make([]Metadata, 0, len(names))
	for _, name := range names {
		t, ok := r.base.Get(name)
		if !ok {
			continue
		}
		meta := t.Metadata()
		meta.Parameters = sortedParams(meta.Parameters)
		out = append(out, meta)
	}
	return out
}

// Execute looks up and runs a tool directly, without scheduler
// mediation. Prefer the Scheduler for LLM-originated calls.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (Outcome, error) {
	t, ok := r.base.Get(name)
	if !ok {
		return Outcome{}, fmt.Errorf("tool not found: %s", name)
	}
	return t.Execute(ctx, args)
}
