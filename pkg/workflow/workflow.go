// Package workflow turns one user request into agent runs: the tasks
// mode plans a linear task list and executes it in order, the todolist
// mode maintains a mutable dependency-aware step list. Both modes
// consolidate agent outputs into a single Result.
package workflow

import (
	"fmt"
	"strings"

	"github.com/batonlabs/baton/pkg/agent"
	"github.com/batonlabs/baton/pkg/config"
	batoncontext "github.com/batonlabs/baton/pkg/context"
)

// Well-known agent names the runtime registers at startup. Workflow
// managers look collaborators up by these names.
const (
	PlannerAgentName = "tasks_planner"
	TodoAgentName    = "todo_planner"
	ExecAgentName    = "exec_agent"
	DefaultAgentName = "default_agent"
)

// ErrDependencyNotMet is reported when pending steps exist but none of
// them is runnable.
const ErrDependencyNotMet = "dependency_not_met"

// Deps wires a workflow manager to its collaborators.
type Deps struct {
	Agents  agent.Repository
	Factory *agent.Factory
	Config  config.WorkflowConfig
}

func (d Deps) validate() error {
	if d.Agents == nil {
		return fmt.Errorf("agent repository is required")
	}
	if d.Factory == nil {
		return fmt.Errorf("agent factory is required")
	}
	return nil
}

// AgentRef records which agent ran which task, for provenance.
type AgentRef struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Task      int    `json:"task"`
}

// Result is the consolidated outcome of one workflow run.
type Result struct {
	// Success reports whether every executed task ended well.
	Success bool `json:"success"`

	// Response is the final user-visible answer: the last task's
	// response, or a failure explanation naming the step.
	Response string `json:"response"`

	// Error is the machine-readable failure kind: the failing task's
	// own kind when it declared one, task_<N>_failed otherwise, or a
	// workflow-level kind such as dependency_not_met.
	Error string `json:"error,omitempty"`

	// FailedTask is the 1-based number of the aborting task, 0 when
	// none failed.
	FailedTask int `json:"failed_task,omitempty"`

	// Halted is set when an agent declared the whole request satisfied
	// before the plan ran out.
	Halted bool `json:"halted,omitempty"`

	// Analysis is the planner's reading of the request.
	Analysis string `json:"analysis,omitempty"`

	// PlannedTasks counts the tasks the planner produced.
	PlannedTasks int `json:"planned_tasks,omitempty"`

	// CalledAgents lists every agent run in order.
	CalledAgents []AgentRef `json:"called_agents,omitempty"`

	// History is the rolling execution record, one "### STEP N" block
	// per task.
	History string `json:"history,omitempty"`
}

// appendStep adds one task's record to the rolling history.
func appendStep(b *strings.Builder, n int, response string) {
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	fmt.Fprintf(b, "### STEP %d\n%s", n, response)
}

// taskFailedCode is the fallback error kind for a task that failed
// without declaring its own kind, and for context-poisoning aborts.
func taskFailedCode(n int) string {
	return fmt.Sprintf("task_%d_failed", n)
}

// composeSystemPrompt attaches the shared system context (tool catalog,
// environment, project tree) to the agent's registered prompt.
func composeSystemPrompt(reg *agent.RegisteredAgent, contexts *batoncontext.Manager) string {
	base := reg.EffectiveSystemPrompt()
	if contexts == nil {
		return base
	}
	sysCtx := contexts.SystemContext(reg.Capabilities.AuthorizedTools)
	switch {
	case sysCtx == "":
		return base
	case base == "":
		return sysCtx
	default:
		return base + "\n\n" + sysCtx
	}
}
