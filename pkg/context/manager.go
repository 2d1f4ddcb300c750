// Package context assembles what an agent sees before each LLM call:
// conversation history rendered as chat messages, and the system context
// describing available tools, the host environment, and the project
// layout.
package context

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/batonlabs/baton/pkg/llm"
	"github.com/batonlabs/baton/pkg/memory"
	"github.com/batonlabs/baton/pkg/tools"
	"github.com/batonlabs/baton/pkg/utils"
)

// Manager turns stored conversation history into LLM message lists and
// builds the per-agent system context.
type Manager struct {
	memory   *memory.Manager
	registry *tools.Registry

	workingDir  string
	safeEnvVars []string

	counter     *utils.TokenCounter
	tokenBudget int
}

// Option configures a Manager.
type Option func(*Manager)

// WithWorkingDir sets the directory used for the environment and project
// structure blocks.
func WithWorkingDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.workingDir = dir
		}
	}
}

// WithSafeEnvVars lists environment variables shown in the environment
// block. Values are truncated, never omitted, so agents can rely on
// their presence.
func WithSafeEnvVars(vars []string) Option {
	return func(m *Manager) {
		m.safeEnvVars = vars
	}
}

// WithTokenBudget arms the over-budget warning: assembled message lists
// exceeding budget tokens are logged. A nil counter disables the check.
func WithTokenBudget(counter *utils.TokenCounter, budget int) Option {
	return func(m *Manager) {
		m.counter = counter
		m.tokenBudget = budget
	}
}

// NewManager creates a context manager over the memory manager and tool
// registry.
func NewManager(mem *memory.Manager, registry *tools.Registry, opts ...Option) *Manager {
	m := &Manager{
		memory:     mem,
		registry:   registry,
		workingDir: ".",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Memory exposes the underlying conversation store so collaborators can
// persist the turns they generate.
func (m *Manager) Memory() *memory.Manager { return m.memory }

// BuildMessages returns the message list for one LLM call: an optional
// system message followed by the agent's history, oldest first. Turn
// content passes through unchanged.
func (m *Manager) BuildMessages(agentID, systemPrompt string, maxTurns int) ([]llm.Message, error) {
	var messages []llm.Message
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: memory.RoleSystem, Content: systemPrompt})
	}

	snapshot, err := m.memory.Context(agentID, maxTurns)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", agentID, err)
	}
	for _, turn := range snapshot.Turns {
		role := turn.Role
		// Tool turns were produced by the JSON protocol, not native tool
		// calling; OpenAI-compatible endpoints reject bare role:tool
		// messages, so they travel as user observations. The content
		// already names the tool.
		if role == memory.RoleTool {
			role = memory.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}

	m.warnIfOverBudget(agentID, messages)
	return messages, nil
}

// FormatContextAsString renders an agent's history as timestamped lines,
// one "[HH:MM:SS] role: content" per turn.
func (m *Manager) FormatContextAsString(agentID string, maxTurns int) (string, error) {
	snapshot, err := m.memory.Context(agentID, maxTurns)
	if err != nil {
		return "", fmt.Errorf("failed to load history for %s: %w", agentID, err)
	}

	lines := make([]string, 0, len(snapshot.Turns))
	for _, turn := range snapshot.Turns {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			turn.Timestamp.Format("15:04:05"), turn.Role, turn.Content))
	}
	return strings.Join(lines, "\n"), nil
}

// RelatedContext surfaces long-term recall hits for the query as a
// system-context section. It returns "" when recall is disabled, finds
// nothing, or fails; recall never blocks a request.
func (m *Manager) RelatedContext(ctx context.Context, agentID, query string) string {
	results, err := m.memory.Recall(ctx, agentID, query, 0)
	if err != nil {
		slog.Warn("Long-term recall failed", "agent_id", agentID, "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("RELATED CONTEXT (recalled from earlier conversations):\n")
	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		b.WriteString("- " + content + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Manager) warnIfOverBudget(agentID string, messages []llm.Message) {
	if m.counter == nil || m.tokenBudget <= 0 {
		return
	}
	counted := make([]utils.Message, len(messages))
	for i, msg := range messages {
		counted[i] = utils.Message{Role: msg.Role, Content: msg.Content}
	}
	total := m.counter.CountMessages(counted)
	if total > m.tokenBudget {
		slog.Warn("Context exceeds model budget",
			"agent_id", agentID,
			"tokens", total,
			"budget", m.tokenBudget,
			"model", m.counter.Model())
	}
}
