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

// TasksManager runs the plan-then-execute pipeline: the planner agent
// decomposes the request, each task runs on the exec agent with the
// accumulated history as context, and failures abort the remainder.
type TasksManager struct {
	agents  agent.Repository
	factory *agent.Factory
	cfg     config.WorkflowConfig
}

// NewTasksManager creates a tasks-mode workflow manager.
func NewTasksManager(deps Deps) (*TasksManager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config
	cfg.SetDefaults()
	return &TasksManager{
		agents:  deps.Agents,
		factory: deps.Factory,
		cfg:     cfg,
	}, nil
}

// Run handles one request end to end. An unusable plan (parse failure
// or zero tasks) falls back to a single default-agent invocation.
func (m *TasksManager) Run(ctx context.Context, input string) Result {
	plan, err := m.plan(ctx, input)
	if err != nil || len(plan.Tasks) == 0 {
		if err != nil {
			slog.Info("Falling back to the default agent", "reason", err)
		} else {
			slog.Info("Falling back to the default agent", "reason", "planner produced no tasks")
		}
		return m.runDefault(ctx, input)
	}

	slog.Info("Plan ready",
		"tasks", len(plan.Tasks),
		"analysis_chars", len(plan.Analyse))
	return m.runTasks(ctx, plan)
}

// plan asks the planner agent to decompose the request.
func (m *TasksManager) plan(ctx context.Context, input string) (Plan, error) {
	reg, err := m.agents.FindByName(PlannerAgentName)
	if err != nil {
		return Plan{}, fmt.Errorf("planner agent: %w", err)
	}
	planner, err := m.factory.CreateAgent(reg, nil)
	if err != nil {
		return Plan{}, fmt.Errorf("planner agent: %w", err)
	}

	out := planner.Run(ctx, input, "", "")
	if !out.Success {
		return Plan{}, fmt.Errorf("planner failed: %s", out.Error)
	}
	return ParsePlan(out.Response)
}

// runDefault is the single-agent fallback path.
func (m *TasksManager) runDefault(ctx context.Context, input string) Result {
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

func (m *TasksManager) runTasks(ctx context.Context, plan Plan) Result {
	res := Result{
		Analysis:     plan.Analyse,
		PlannedTasks: len(plan.Tasks),
	}

	reg, err := m.agents.FindByName(ExecAgentName)
	if err != nil {
		res.Error = err.Error()
		res.Response = fmt.Sprintf("No exec agent registered: %v", err)
		return res
	}

	var history strings.Builder
	for i, task := range plan.Tasks {
		n := i + 1

		if ctx.Err() != nil {
			res.Error = reasoning.ErrUserInterrupted
			res.FailedTask = n
			res.Response = fmt.Sprintf("Interrupted before task %d.", n)
			res.History = history.String()
			return res
		}

		out := m.runTask(ctx, reg, n, plan.Analyse, task, history.String())
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
			res.Response = fmt.Sprintf("Task %d failed: %s", n, out.Response)
			res.History = history.String()
			return res
		}

		if len(out.Response) > m.cfg.MaxResponseChars {
			// A response this large poisons the context of every task
			// after it.
			res.Error = taskFailedCode(n)
			res.FailedTask = n
			res.Response = fmt.Sprintf("Task %d failed: response exceeded %d chars (%d)",
				n, m.cfg.MaxResponseChars, len(out.Response))
			res.History = history.String()
			return res
		}

		res.Response = out.Response
	}

	res.Success = true
	res.History = history.String()
	return res
}

// runTask executes one planned task on the exec agent, instrumented as
// one task-run span.
func (m *TasksManager) runTask(ctx context.Context, reg *agent.RegisteredAgent, n int, analysis string, task PlannedTask, history string) reasoning.AgentOutput {
	tracer := observability.GetTracer("baton.workflow")
	ctx, span := tracer.Start(ctx, observability.SpanTaskRun)
	span.SetAttributes(attribute.Int(observability.AttrTaskStep, n))
	defer span.End()

	start := time.Now()
	out := m.execute(ctx, reg, buildTaskPrompt(analysis, task.Step, task.ExpectedOutcome), history)

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

	slog.Info("Task finished",
		"step", n,
		"agent", out.AgentName,
		"success", out.Success,
		"cmd", out.Cmd,
		"duration", time.Since(start))
	return out
}

func (m *TasksManager) execute(ctx context.Context, reg *agent.RegisteredAgent, taskPrompt, history string) reasoning.AgentOutput {
	exec, err := m.factory.CreateAgent(reg, nil)
	if err != nil {
		return reasoning.AgentOutput{
			Success:  false,
			Error:    err.Error(),
			Response: fmt.Sprintf("Exec agent unavailable: %v", err),
		}
	}
	return exec.Run(ctx, taskPrompt, composeSystemPrompt(reg, m.factory.Contexts()), history)
}

// buildTaskPrompt assembles the per-task prompt: global analysis, then
// the objective, then its definition of done.
func buildTaskPrompt(analysis, objective, expectedOutcome string) string {
	var b strings.Builder
	if strings.TrimSpace(analysis) != "" {
		b.WriteString(analysis)
		b.WriteString("\n\n")
	}
	b.WriteString("OBJECTIVE:\n")
	b.WriteString(objective)
	b.WriteString("\n\nDEFINITION OF DONE:\n")
	b.WriteString(expectedOutcome)
	return b.String()
}
