// Package memory stores per-agent conversation history. A Repository
// holds role-tagged turns keyed by agent ID; the Manager layers a
// context cache and optional vector-based recall on top.
package memory

import "time"

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Turn is a single role-tagged message in an agent's memory.
type Turn struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// clone returns a deep copy so callers cannot mutate stored state.
func (t Turn) clone() Turn {
	out := t
	if t.Metadata != nil {
		out.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func cloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t.clone()
	}
	return out
}

// Context is an immutable snapshot of an agent's recent history, built
// once and cached until the next write.
type Context struct {
	AgentID  string
	MaxTurns int
	Turns    []Turn
	BuiltAt  time.Time
}

func (c *Context) clone() *Context {
	if c == nil {
		return nil
	}
	return &Context{
		AgentID:  c.AgentID,
		MaxTurns: c.MaxTurns,
		Turns:    cloneTurns(c.Turns),
		BuiltAt:  c.BuiltAt,
	}
}

// Stats summarizes repository and cache state for inspection commands.
type Stats struct {
	AgentCount   int            `json:"agent_count"`
	TotalTurns   int            `json:"total_turns"`
	TurnsByAgent map[string]int `json:"turns_by_agent"`
	CacheEntries int            `json:"cache_entries"`
}
