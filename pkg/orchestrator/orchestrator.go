// Package orchestrator is the request entry point. It persists the
// top-level conversation under its own memory scope, dispatches each
// request to the configured workflow mode, and exposes the inspection
// surface the CLI and server build on.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/batonlabs/baton/pkg/agent"
	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/memory"
	"github.com/batonlabs/baton/pkg/observability"
	"github.com/batonlabs/baton/pkg/reasoning"
	"github.com/batonlabs/baton/pkg/workflow"
)

// AgentID is the memory scope holding the user-facing conversation.
const AgentID = "orchestrator"

// MemoryContent scopes.
const (
	ScopeConversation = "conversation"
	ScopeAgents       = "agents"
)

// Deps wires the orchestrator to its collaborators.
type Deps struct {
	Memory  *memory.Manager
	Agents  agent.Repository
	Factory *agent.Factory
	Config  config.WorkflowConfig
}

// Orchestrator coordinates one conversation: request in, consolidated
// workflow result out, everything remembered.
type Orchestrator struct {
	memory *memory.Manager
	agents agent.Repository
	mode   string
	tasks  *workflow.TasksManager
	todos  *workflow.ExecutionManager
}

// New builds an orchestrator with both workflow managers ready; the
// configured mode picks which one serves each request.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Memory == nil {
		return nil, fmt.Errorf("memory manager is required")
	}

	cfg := deps.Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("workflow config: %w", err)
	}

	wfDeps := workflow.Deps{Agents: deps.Agents, Factory: deps.Factory, Config: cfg}
	tasks, err := workflow.NewTasksManager(wfDeps)
	if err != nil {
		return nil, err
	}
	todos, err := workflow.NewExecutionManager(wfDeps)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		memory: deps.Memory,
		agents: deps.Agents,
		mode:   cfg.Mode,
		tasks:  tasks,
		todos:  todos,
	}, nil
}

// HandleRequest runs one request end to end: the user turn is stored
// first, the workflow runs, and the consolidated response is stored as
// the assistant turn. A request that cannot be recorded does not run.
func (o *Orchestrator) HandleRequest(ctx context.Context, input string) workflow.Result {
	tracer := observability.GetTracer("baton.orchestrator")
	ctx, span := tracer.Start(ctx, observability.SpanWorkflowRun)
	defer span.End()

	start := time.Now()

	if err := o.memory.SaveTurn(ctx, AgentID, memory.RoleUser, input, nil); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return workflow.Result{
			Error:    reasoning.ErrMemoryFailure,
			Response: fmt.Sprintf("Could not record the request: %v", err),
		}
	}

	var res workflow.Result
	switch o.mode {
	case "todolist":
		res = o.todos.Run(ctx, input)
	default:
		res = o.tasks.Run(ctx, input)
	}

	meta := map[string]any{"success": res.Success}
	if res.Error != "" {
		meta["error"] = res.Error
	}
	if err := o.memory.SaveTurn(ctx, AgentID, memory.RoleAssistant, res.Response, meta); err != nil {
		slog.Warn("Could not persist the final turn", "error", err)
	}

	if res.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, res.Error)
	}
	slog.Info("Request finished",
		"mode", o.mode,
		"success", res.Success,
		"error", res.Error,
		"agents", len(res.CalledAgents),
		"duration", time.Since(start))
	return res
}

// RecordInterrupt notes an interrupt in the conversation and returns
// the failed result the caller should report. Prior memory survives.
func (o *Orchestrator) RecordInterrupt(ctx context.Context) workflow.Result {
	const note = "Request interrupted by user."
	meta := map[string]any{"success": false, "error": reasoning.ErrUserInterrupted}
	if err := o.memory.SaveTurn(ctx, AgentID, memory.RoleAssistant, note, meta); err != nil {
		slog.Warn("Could not persist the interrupt turn", "error", err)
	}
	return workflow.Result{
		Error:    reasoning.ErrUserInterrupted,
		Response: note,
	}
}

// MemoryStats summarizes the conversation store.
func (o *Orchestrator) MemoryStats() (memory.Stats, error) {
	return o.memory.Stats()
}

// MemoryContent renders a memory scope for inspection: the
// conversation (default), every agent's history, or one agent by id.
func (o *Orchestrator) MemoryContent(scope string) (string, error) {
	switch scope {
	case "", ScopeConversation:
		return o.renderAgent(AgentID)
	case ScopeAgents:
		ids, err := o.memory.AllAgentIDs()
		if err != nil {
			return "", err
		}
		sort.Strings(ids)

		var b strings.Builder
		for _, id := range ids {
			if id == AgentID {
				continue
			}
			section, err := o.renderAgent(id)
			if err != nil {
				return "", err
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(section)
		}
		if b.Len() == 0 {
			return "No agent memory recorded.\n", nil
		}
		return b.String(), nil
	default:
		return o.renderAgent(scope)
	}
}

func (o *Orchestrator) renderAgent(agentID string) (string, error) {
	turns, err := o.memory.History(agentID, 0)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### %s (%d turns)\n", agentID, len(turns))
	for _, turn := range turns {
		fmt.Fprintf(&b, "[%s] %s\n", turn.Role, turn.Content)
	}
	return b.String(), nil
}

// ResetConversation clears every memory scope, the orchestrator's own
// conversation included, for a fresh start.
func (o *Orchestrator) ResetConversation() error {
	return o.memory.ClearAll()
}
