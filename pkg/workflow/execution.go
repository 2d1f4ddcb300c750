package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/batonlabs/baton/pkg/agent"
	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/observability"
	"github.com/batonlabs/baton/pkg/reasoning"
)

// ExecutionManager drives the todolist mode: the todo planner produces
// a dependency-aware step list, then the next eligible step runs until
// the list completes, a dependency blocks, or the iteration cap trips.
type ExecutionManager struct {
	agents  agent.Repository
	factory *agent.Factory
	cfg     config.WorkflowConfig
}

// NewExecutionManager creates a todolist-mode workflow manager.
func NewExecutionManager(deps Deps) (*ExecutionManager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config
	cfg.SetDefaults()
	return &ExecutionManager{
		agents:  deps.Agents,
		factory: deps.Factory,
		cfg:     cfg,
	}, nil
}

// Run handles one request end to end: plan, then execute. An unusable
// plan falls back to a single default-agent invocation, mirroring the
// tasks mode.
func (m *ExecutionManager) Run(ctx context.Context, input string) Result {
	state, err := m.plan(ctx, input)
	if err != nil {
		slog.Info("Falling back to the default agent", "reason", err)
		return m.runDefault(ctx, input)
	}
	return m.Execute(ctx, state)
}

func (m *ExecutionManager) plan(ctx context.Context, input string) (*StateManager, error) {
	reg, err := m.agents.FindByName(TodoAgentName)
	if err != nil {
		return nil, fmt.Errorf("todo planner: %w", err)
	}
	planner, err := m.factory.CreateAgent(reg, nil)
	if err != nil {
		return nil, fmt.Errorf("todo planner: %w", err)
	}

	out := planner.Run(ctx, input, "", "")
	if !out.Success {
		return nil, fmt.Errorf("todo planner failed: %s", out.Error)
	}

	state := NewStateManager(input)
	if err := state.InitializeFromResponse(out.Response); err != nil {
		return nil, err
	}
	return state, nil
}

func (m *ExecutionManager) runDefault(ctx context.Context, input string) Result {
	reg, err := m.agents.FindByName(DefaultAgentName)
	if err != nil {
		return Result{
			Success:  false,
			Error:    err.Error(),
			Response: fmt.Sprintf("No plan and no default agent: %v", err),
		}
	}
	fallback, err := m.factory.CreateAgent(reg, nil)
	if err != nil {
		return Result{
			Success:  false,
			Error:    err.Error(),
			Response: fmt.Sprintf("No plan and no default agent: %v", err),
		}
	}

	out := fallback.Run(ctx, input, composeSystemPrompt(reg, m.factory.Contexts()), "")
	return Result{
		Success:      out.Success,
		Response:     out.Response,
		Error:        out.Error,
		Halted:       out.HaltWorkflow,
		CalledAgents: []AgentRef{{AgentID: out.AgentID, AgentName: out.AgentName, Task: 1}},
		History:      out.Response,
	}
}

// Execute runs an already-initialized plan to completion. Completed
// steps never run again; a pending step with an unsatisfied dependency
// stops the run.
func (m *ExecutionManager) Execute(ctx context.Context, state *StateManager) Result {
	var res Result

	reg, err := m.agents.FindByName(ExecAgentName)
	if err != nil {
		res.Error = err.Error()
		res.Response = fmt.Sprintf("No exec agent registered: %v", err)
		return res
	}

	var history strings.Builder
	n := 0
	for !state.IsComplete() {
		if ctx.Err() != nil {
			res.Error = reasoning.ErrUserInterrupted
			res.Response = "Interrupted before the plan finished."
			res.History = history.String()
			return res
		}

		if state.Iteration() >= m.cfg.MaxIterations {
			res.Error = reasoning.ErrMaxIterationsReached
			res.Response = fmt.Sprintf("Plan did not converge within %d iterations.", m.cfg.MaxIterations)
			res.History = history.String()
			return res
		}

		step := state.NextStep()
		if step == nil {
			res.Error = ErrDependencyNotMet
			res.Response = "No runnable step: pending steps have unsatisfied dependencies."
			res.History = history.String()
			return res
		}

		n++
		out := m.runStep(ctx, reg, n, state.Query(), step, history.String())
		res.CalledAgents = append(res.CalledAgents, AgentRef{
			AgentID:   out.AgentID,
			AgentName: out.AgentName,
			Task:      n,
		})
		appendStep(&history, n, out.Response)

		if out.HaltWorkflow {
			res.Success = true
			res.Halted = true
			res.Response = out.Response
			res.History = history.String()
			return res
		}

		if !out.Success {
			res.Error = out.Error
			if res.Error == "" {
				res.Error = taskFailedCode(n)
			}
			res.FailedTask = n
			res.Response = fmt.Sprintf("Step %q failed: %s", step.StepID, out.Response)
			res.History = history.String()
			return res
		}

		if err := state.UpdateFromResult(step.StepID, out); err != nil {
			res.Error = taskFailedCode(n)
			res.FailedTask = n
			res.Response = fmt.Sprintf("Step %q could not be recorded: %v", step.StepID, err)
			res.History = history.String()
			return res
		}
		res.Response = out.Response
	}

	res.Success = true
	res.History = history.String()
	return res
}

// runStep executes one todolist step on the exec agent, instrumented as
// one task-run span.
func (m *ExecutionManager) runStep(ctx context.Context, reg *agent.RegisteredAgent, n int, query string, step *TodoStep, history string) reasoning.AgentOutput {
	tracer := observability.GetTracer("baton.workflow")
	ctx, span := tracer.Start(ctx, observability.SpanTaskRun)
	span.SetAttributes(attribute.Int(observability.AttrTaskStep, n))
	defer span.End()

	exec, err := m.factory.CreateAgent(reg, nil)
	if err != nil {
		return reasoning.AgentOutput{
			Success:  false,
			Error:    err.Error(),
			Response: fmt.Sprintf("Exec agent unavailable: %v", err),
		}
	}

	start := time.Now()
	out := exec.Run(ctx, buildStepPrompt(query, step), composeSystemPrompt(reg, m.factory.Contexts()), history)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		var errKind error
		if !out.Success {
			errKind = fmt.Errorf("%s", out.Error)
		}
		metrics.RecordTaskRun(ctx, n, time.Since(start), errKind)
	}
	if !out.Success {
		span.SetStatus(codes.Error, out.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	slog.Info("Step finished",
		"step_id", step.StepID,
		"agent", out.AgentName,
		"success", out.Success,
		"duration", time.Since(start))
	return out
}

// buildStepPrompt assembles the per-step prompt: the original request,
// then the step's objective.
func buildStepPrompt(query string, step *TodoStep) string {
	var b strings.Builder
	if strings.TrimSpace(query) != "" {
		b.WriteString("USER REQUEST:\n")
		b.WriteString(query)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "OBJECTIVE (step %s):\n%s", step.StepID, step.Description)
	b.WriteString("\n\nDEFINITION OF DONE:\nComplete the step and call task_success with a short report.")
	return b.String()
}
