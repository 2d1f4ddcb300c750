// Package agent holds the registered-agent domain model, the agent
// repository, and the factory that turns registrations into runnable
// agents. Specialization is data: a system prompt plus a tool
// whitelist, never a subtype.
package agent

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// agentNameRe: starts with a letter, then letters, digits or
// underscores, 3-50 chars total.
var agentNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{2,49}$`)

// Identity identifies one agent. Immutable after creation.
type Identity struct {
	AgentID   string    `json:"agent_id"`
	AgentName string    `json:"agent_name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewIdentity mints an identity with a fresh uuid-v4 id.
func NewIdentity(name string) (Identity, error) {
	id := Identity{
		AgentID:   uuid.NewString(),
		AgentName: name,
		CreatedAt: time.Now(),
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Validate checks the identity fields.
func (id Identity) Validate() error {
	if _, err := uuid.Parse(id.AgentID); err != nil {
		return fmt.Errorf("agent_id must be a uuid: %w", err)
	}
	if !agentNameRe.MatchString(id.AgentName) {
		return fmt.Errorf("agent_name %q must start with a letter and be 3-50 chars of [A-Za-z0-9_]", id.AgentName)
	}
	if id.CreatedAt.After(time.Now()) {
		return fmt.Errorf("created_at cannot be in the future")
	}
	return nil
}

// Capabilities declares what an agent may do and how its LLM calls are
// shaped. Treated as an immutable value.
type Capabilities struct {
	// Description of the agent's purpose, 10-500 chars.
	Description string `json:"description"`

	// SystemPrompt is the default system prompt for this agent.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// AuthorizedTools whitelists tool names. Empty means all tools
	// permitted.
	AuthorizedTools []string `json:"authorized_tools,omitempty"`

	// MaxReasoningTurns caps the native tool-calling loop, 1-100.
	MaxReasoningTurns int `json:"max_reasoning_turns"`

	// MaxMemoryTurns bounds how much history enters the context, 0-1000.
	MaxMemoryTurns int `json:"max_memory_turns"`

	// SpecializationTags label the agent for selection, each tag at
	// most 50 chars.
	SpecializationTags []string `json:"specialization_tags,omitempty"`

	// Temperature for LLM calls, 0-2.
	Temperature float64 `json:"llm_temperature"`

	// MaxTokens for LLM calls, at least 1.
	MaxTokens int `json:"llm_max_tokens"`

	// Timeout for LLM calls in seconds. Zero uses the client default.
	Timeout int `json:"llm_timeout,omitempty"`

	// ResponseFormat is "json" or "default".
	ResponseFormat string `json:"llm_response_format"`
}

// Validate checks capability bounds.
func (c Capabilities) Validate() error {
	if n := len(c.Description); n < 10 || n > 500 {
		return fmt.Errorf("description must be 10-500 chars, got %d", n)
	}
	if c.MaxReasoningTurns < 1 || c.MaxReasoningTurns > 100 {
		return fmt.Errorf("max_reasoning_turns must be 1-100, got %d", c.MaxReasoningTurns)
	}
	if c.MaxMemoryTurns < 0 || c.MaxMemoryTurns > 1000 {
		return fmt.Errorf("max_memory_turns must be 0-1000, got %d", c.MaxMemoryTurns)
	}
	for _, tag := range c.SpecializationTags {
		if len(tag) > 50 {
			return fmt.Errorf("specialization tag %q exceeds 50 chars", tag)
		}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm_temperature must be 0-2, got %g", c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("llm_max_tokens must be at least 1, got %d", c.MaxTokens)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("llm_timeout cannot be negative")
	}
	if c.ResponseFormat != "json" && c.ResponseFormat != "default" {
		return fmt.Errorf("llm_response_format must be json or default, got %q", c.ResponseFormat)
	}
	return nil
}

// RegisteredAgent is the mutable catalog entry: identity plus
// capabilities plus runtime state. Every mutator refreshes UpdatedAt.
type RegisteredAgent struct {
	Identity     Identity       `json:"identity"`
	Capabilities Capabilities   `json:"capabilities"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewRegisteredAgent registers a named agent with the given
// capabilities, active by default.
func NewRegisteredAgent(name string, caps Capabilities) (*RegisteredAgent, error) {
	if err := caps.Validate(); err != nil {
		return nil, fmt.Errorf("capabilities: %w", err)
	}
	identity, err := NewIdentity(name)
	if err != nil {
		return nil, err
	}

	now := identity.CreatedAt
	return &RegisteredAgent{
		Identity:     identity,
		Capabilities: caps,
		SystemPrompt: caps.SystemPrompt,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     make(map[string]any),
	}, nil
}

func (a *RegisteredAgent) touch() {
	a.UpdatedAt = time.Now()
}

// Activate marks the agent usable by the factory.
func (a *RegisteredAgent) Activate() {
	a.IsActive = true
	a.touch()
}

// Deactivate hides the agent from the factory without deleting it.
func (a *RegisteredAgent) Deactivate() {
	a.IsActive = false
	a.touch()
}

// SetSystemPrompt overrides the agent's system prompt.
func (a *RegisteredAgent) SetSystemPrompt(prompt string) {
	a.SystemPrompt = prompt
	a.touch()
}

// SetMetadata stores one freeform metadata entry.
func (a *RegisteredAgent) SetMetadata(key string, value any) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = value
	a.touch()
}

// EffectiveSystemPrompt returns the entity-level prompt when set,
// falling back to the capabilities prompt.
func (a *RegisteredAgent) EffectiveSystemPrompt() string {
	if a.SystemPrompt != "" {
		return a.SystemPrompt
	}
	return a.Capabilities.SystemPrompt
}

func (a *RegisteredAgent) clone() *RegisteredAgent {
	if a == nil {
		return nil
	}
	out := *a
	if a.Capabilities.AuthorizedTools != nil {
		out.Capabilities.AuthorizedTools = append([]string(nil), a.Capabilities.AuthorizedTools...)
	}
	if a.Capabilities.SpecializationTags != nil {
		out.Capabilities.SpecializationTags = append([]string(nil), a.Capabilities.SpecializationTags...)
	}
	if a.Metadata != nil {
		out.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
