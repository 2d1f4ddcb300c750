// Package reasoning implements the per-agent think-act loop: one LLM
// call and at most one tool dispatch per turn, with JSON-recovery
// retries, a confirmation gate on dangerous calls, and control-tool
// short-circuits. The loop never panics and never returns a Go error;
// every outcome is an AgentOutput.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	batoncontext "github.com/batonlabs/baton/pkg/context"
	"github.com/batonlabs/baton/pkg/llm"
	"github.com/batonlabs/baton/pkg/memory"
	"github.com/batonlabs/baton/pkg/observability"
	"github.com/batonlabs/baton/pkg/tools"
)

const (
	// DefaultMaxRetries bounds JSON-recovery round trips per run.
	DefaultMaxRetries = 1

	// jsonCorrective is the synthetic user message sent after a
	// malformed command so the model re-emits clean JSON.
	jsonCorrective = "System Error: Invalid JSON format. Return ONLY raw JSON."
)

// Engine drives the reasoning loop for every agent. It is stateless
// across runs; all per-run state lives in the ExecutionSession and the
// conversation store.
type Engine struct {
	provider    llm.Provider
	scheduler   *tools.Scheduler
	registry    *tools.Registry
	contexts    *batoncontext.Manager
	interaction InteractionHandler
	maxRetries  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithInteractionHandler installs the confirmation gate for dangerous
// tool calls.
func WithInteractionHandler(h InteractionHandler) Option {
	return func(e *Engine) { e.interaction = h }
}

// WithMaxRetries overrides the JSON-recovery budget. Values below one
// keep the default.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// NewEngine creates an engine over the provider, tool scheduler, tool
// registry, and context manager.
func NewEngine(provider llm.Provider, scheduler *tools.Scheduler, registry *tools.Registry, contexts *batoncontext.Manager, opts ...Option) *Engine {
	e := &Engine{
		provider:   provider,
		scheduler:  scheduler,
		registry:   registry,
		contexts:   contexts,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutionSession carries everything one reasoning run needs. The
// agent layer fills it from the registered identity and capabilities.
type ExecutionSession struct {
	AgentID   string
	AgentName string

	// Task is the current objective. It follows UserPrompt in the
	// run's opening user message.
	Task string

	// SystemPrompt seeds the message list.
	SystemPrompt string

	// UserPrompt carries prior context such as accumulated workflow
	// history.
	UserPrompt string

	// AuthorizedTools whitelists dispatchable tools. Empty permits
	// all; control tools are always permitted.
	AuthorizedTools []string

	// MaxMemoryTurns bounds how much stored history enters the
	// context.
	MaxMemoryTurns int

	// MaxTurns caps tool dispatches in this run.
	MaxTurns int

	Temperature float64
	MaxTokens   int

	// Timeout bounds each LLM call in seconds. Zero uses the client
	// default.
	Timeout int

	// ResponseFormat is "json" to request a json_object completion.
	ResponseFormat string
}

// Execute runs the think-act loop until the agent signals completion
// through a control tool, answers conversationally, fails, or hits the
// turn cap. Malformed JSON commands are retried with a corrective
// message, at most maxRetries extra round trips per run.
func (e *Engine) Execute(ctx context.Context, session ExecutionSession) AgentOutput {
	tracer := observability.GetTracer("baton.reasoning")
	ctx, span := tracer.Start(ctx, observability.SpanAgentTurn)
	span.SetAttributes(attribute.String(observability.AttrAgentID, session.AgentID))
	defer span.End()

	start := time.Now()
	out := e.run(ctx, session)
	out.AgentID = session.AgentID
	out.AgentName = session.AgentName

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		var errKind error
		if !out.Success {
			errKind = fmt.Errorf("%s", out.Error)
		}
		metrics.RecordAgentCall(ctx, time.Since(start), 0, errKind)
	}
	if !out.Success {
		span.SetStatus(codes.Error, out.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	slog.Debug("Reasoning run finished",
		"agent", session.AgentName,
		"success", out.Success,
		"cmd", out.Cmd,
		"turns", out.Turns,
		"retries", out.Retries,
		"duration", time.Since(start))

	return out
}

func (e *Engine) run(ctx context.Context, session ExecutionSession) AgentOutput {
	maxTurns := session.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	messages, err := e.contexts.BuildMessages(session.AgentID, e.promptWithRecall(ctx, session), session.MaxMemoryTurns)
	if err != nil {
		return fail(AgentOutput{}, ErrMemoryFailure, "",
			fmt.Sprintf("Failed to load conversation context: %v", err))
	}

	if userMsg := composeUserMessage(session.UserPrompt, session.Task); userMsg != "" {
		messages = append(messages, llm.Message{Role: memory.RoleUser, Content: userMsg})
		e.saveTurn(ctx, session.AgentID, memory.RoleUser, userMsg, nil)
	}

	var (
		out      AgentOutput
		parts    []string
		last     tools.ToolResult
		haveLast bool
	)

	for out.Turns < maxTurns {
		if ctx.Err() != nil {
			return fail(out, ErrUserInterrupted, "", "Run cancelled before completion.")
		}

		resp, err := e.chat(ctx, session, messages, nil)
		if err != nil {
			return fail(out, ErrLLMFailure, "", fmt.Sprintf("LLM request failed: %v", err))
		}
		content := resp.Content()
		if strings.TrimSpace(content) == "" {
			return fail(out, ErrEmptyLLMResponse, "", "LLM returned an empty response.")
		}

		cmd, perr := ParseCommand(content)
		if perr != nil {
			if !AttemptedJSON(content) {
				// Plain prose is a conversational answer, not a
				// broken command.
				e.saveTurn(ctx, session.AgentID, memory.RoleAssistant, content, nil)
				out.Success = true
				out.Cmd = tools.ToolTaskSuccess
				out.Response = content
				return out
			}

			out.Retries++
			if metrics := observability.GetGlobalMetrics(); metrics != nil {
				metrics.RecordRetry(ctx, CmdJSONError)
			}
			e.saveTurn(ctx, session.AgentID, memory.RoleAssistant, content, nil)
			if out.Retries > e.maxRetries {
				return fail(out, ErrMaxRetriesExceeded, CmdJSONError,
					"LLM kept returning malformed JSON commands.")
			}
			messages = append(messages,
				llm.Message{Role: memory.RoleAssistant, Content: content},
				llm.Message{Role: memory.RoleUser, Content: jsonCorrective},
			)
			e.saveTurn(ctx, session.AgentID, memory.RoleUser, jsonCorrective, nil)
			continue
		}

		e.saveTurn(ctx, session.AgentID, memory.RoleAssistant, content, nil)

		if cmd.ToolName == "" {
			// Valid JSON that names no tool is treated as the
			// answer itself.
			out.Success = true
			out.Cmd = tools.ToolTaskSuccess
			out.Response = cmd.PrettyJSON()
			return out
		}

		if !e.authorized(session.AuthorizedTools, cmd.ToolName) {
			observation := fmt.Sprintf("Tool not authorized: %s", cmd.ToolName)
			parts = append(parts, observation)
			messages = append(messages, llm.Message{Role: memory.RoleUser, Content: observation})
			e.saveTurn(ctx, session.AgentID, memory.RoleTool, observation,
				map[string]any{"tool_name": cmd.ToolName, "success": false})
			last = tools.ToolResult{ToolName: cmd.ToolName, Error: observation, Result: tools.Text(observation)}
			haveLast = true
			out.Turns++
			continue
		}

		if e.requiresConfirmation(cmd.ToolName, cmd.Args) && !e.confirm(cmd.ToolName, cmd.Args) {
			if metrics := observability.GetGlobalMetrics(); metrics != nil {
				metrics.RecordDenial(ctx, cmd.ToolName)
			}
			msg := fmt.Sprintf("Tool execution denied by user: %s", cmd.ToolName)
			e.saveTurn(ctx, session.AgentID, memory.RoleTool, msg,
				map[string]any{"tool_name": cmd.ToolName, "success": false})
			return fail(out, ErrUserDenied, cmd.ToolName, msg)
		}

		call := tools.ToolCall{
			ID:   cmd.ToolName + "-" + session.AgentID,
			Name: cmd.ToolName,
			Args: cmd.Args,
		}
		result := e.scheduler.ExecuteTools(ctx, []tools.ToolCall{call})[0]
		out.Turns++

		resultText := result.Result.String()
		e.saveTurn(ctx, session.AgentID, memory.RoleTool, resultText, map[string]any{
			"tool_name":    result.ToolName,
			"tool_call_id": result.ToolCallID,
			"success":      result.Success,
		})

		switch cmd.ToolName {
		case tools.ToolTaskSuccess:
			parts = append(parts, controlMessage(result, "Task completed."))
			out.Success = true
			out.Cmd = tools.ToolTaskSuccess
			out.Response = strings.Join(parts, "\n")
			return out

		case tools.ToolTaskError:
			return fail(out, ErrAgentDeclaredError, tools.ToolTaskError,
				controlMessage(result, "Task failed."))

		case tools.ToolTasksCompleted:
			parts = append(parts, controlMessage(result, "All tasks completed."))
			out.Success = true
			out.Cmd = tools.ToolTasksCompleted
			out.HaltWorkflow = true
			out.Response = strings.Join(parts, "\n")
			return out
		}

		parts = append(parts, resultText)
		messages = append(messages, llm.Message{
			Role:    memory.RoleUser,
			Content: fmt.Sprintf("Tool result (%s): %s", result.ToolName, resultText),
		})
		last = result
		haveLast = true
	}

	// Turn cap reached without a terminal signal. The last tool result
	// decides the outcome.
	if haveLast {
		out.Success = last.Result.BusinessSuccess(last.Success)
		out.Cmd = last.ToolName
		out.Response = strings.Join(parts, "\n")
		if !out.Success {
			out.Error = last.Error
			if out.Error == "" {
				out.Error = ErrMaxIterationsReached
			}
		}
		return out
	}
	return fail(out, ErrMaxIterationsReached, "", "Turn limit reached before any progress.")
}

// ExecuteNative runs the loop over the provider's native tool-calling
// protocol instead of JSON commands in text: the model receives the
// tool catalog, its tool_calls execute in order, results return as
// role "tool" messages, and the loop repeats until a content-only
// reply or the turn cap.
func (e *Engine) ExecuteNative(ctx context.Context, session ExecutionSession) AgentOutput {
	tracer := observability.GetTracer("baton.reasoning")
	ctx, span := tracer.Start(ctx, observability.SpanAgentTurn)
	span.SetAttributes(attribute.String(observability.AttrAgentID, session.AgentID))
	defer span.End()

	out := e.runNative(ctx, session)
	out.AgentID = session.AgentID
	out.AgentName = session.AgentName
	if !out.Success {
		span.SetStatus(codes.Error, out.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return out
}

func (e *Engine) runNative(ctx context.Context, session ExecutionSession) AgentOutput {
	maxTurns := session.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	messages, err := e.contexts.BuildMessages(session.AgentID, e.promptWithRecall(ctx, session), session.MaxMemoryTurns)
	if err != nil {
		return fail(AgentOutput{}, ErrMemoryFailure, "",
			fmt.Sprintf("Failed to load conversation context: %v", err))
	}
	if userMsg := composeUserMessage(session.UserPrompt, session.Task); userMsg != "" {
		messages = append(messages, llm.Message{Role: memory.RoleUser, Content: userMsg})
		e.saveTurn(ctx, session.AgentID, memory.RoleUser, userMsg, nil)
	}

	catalog := e.nativeCatalog(session.AuthorizedTools)

	var out AgentOutput
	for turn := 0; turn < maxTurns; turn++ {
		if ctx.Err() != nil {
			return fail(out, ErrUserInterrupted, "", "Run cancelled before completion.")
		}

		resp, err := e.chat(ctx, session, messages, catalog)
		if err != nil {
			return fail(out, ErrLLMFailure, "", fmt.Sprintf("LLM request failed: %v", err))
		}

		content := resp.Content()
		calls := resp.ToolCalls()
		if len(calls) == 0 {
			if strings.TrimSpace(content) == "" {
				return fail(out, ErrEmptyLLMResponse, "", "LLM returned an empty response.")
			}
			e.saveTurn(ctx, session.AgentID, memory.RoleAssistant, content, nil)
			out.Success = true
			out.Cmd = tools.ToolTaskSuccess
			out.Response = content
			return out
		}

		messages = append(messages, llm.Message{Role: memory.RoleAssistant, Content: content, ToolCalls: calls})
		if content != "" {
			e.saveTurn(ctx, session.AgentID, memory.RoleAssistant, content, nil)
		}

		for _, c := range calls {
			args := decodeNativeArgs(c.Function.Arguments)

			var result tools.ToolResult
			switch {
			case !e.authorized(session.AuthorizedTools, c.Function.Name):
				msg := fmt.Sprintf("Tool not authorized: %s", c.Function.Name)
				result = tools.ToolResult{
					ToolCallID: c.ID,
					ToolName:   c.Function.Name,
					Result:     tools.Text(msg),
					Error:      msg,
				}
			case e.requiresConfirmation(c.Function.Name, args) && !e.confirm(c.Function.Name, args):
				if metrics := observability.GetGlobalMetrics(); metrics != nil {
					metrics.RecordDenial(ctx, c.Function.Name)
				}
				msg := fmt.Sprintf("Tool execution denied by user: %s", c.Function.Name)
				e.saveTurn(ctx, session.AgentID, memory.RoleTool, msg,
					map[string]any{"tool_name": c.Function.Name, "success": false})
				return fail(out, ErrUserDenied, c.Function.Name, msg)
			default:
				result = e.scheduler.ExecuteTools(ctx, []tools.ToolCall{{
					ID:   c.ID,
					Name: c.Function.Name,
					Args: args,
				}})[0]
			}
			out.Turns++

			resultText := result.Result.String()
			messages = append(messages, llm.Message{
				Role:       memory.RoleTool,
				Content:    resultText,
				ToolCallID: c.ID,
			})
			e.saveTurn(ctx, session.AgentID, memory.RoleTool, resultText, map[string]any{
				"tool_name":    result.ToolName,
				"tool_call_id": result.ToolCallID,
				"success":      result.Success,
			})

			switch c.Function.Name {
			case tools.ToolTaskSuccess:
				out.Success = true
				out.Cmd = tools.ToolTaskSuccess
				out.Response = controlMessage(result, "Task completed.")
				return out
			case tools.ToolTaskError:
				return fail(out, ErrAgentDeclaredError, tools.ToolTaskError,
					controlMessage(result, "Task failed."))
			case tools.ToolTasksCompleted:
				out.Success = true
				out.Cmd = tools.ToolTasksCompleted
				out.HaltWorkflow = true
				out.Response = controlMessage(result, "All tasks completed.")
				return out
			}
		}
	}

	return fail(out, ErrMaxIterationsReached, "", "Turn limit reached before the model finished.")
}

// chat makes one LLM call with the session's sampling settings. A
// non-empty catalog switches the provider to native tool calling.
func (e *Engine) chat(ctx context.Context, session ExecutionSession, messages []llm.Message, catalog []llm.Tool) (*llm.ChatResponse, error) {
	if session.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(session.Timeout)*time.Second)
		defer cancel()
	}

	temperature := session.Temperature
	opts := &llm.ChatOptions{
		Temperature: &temperature,
		MaxTokens:   session.MaxTokens,
		Tools:       catalog,
	}
	if session.ResponseFormat == "json" {
		opts.ResponseFormat = "json"
	}
	return e.provider.Chat(ctx, messages, opts)
}

// confirm runs the interaction handler. A missing handler denies.
func (e *Engine) confirm(toolName string, args map[string]any) bool {
	if e.interaction == nil {
		return false
	}
	return e.interaction(toolName, args)
}

func (e *Engine) authorized(whitelist []string, name string) bool {
	if len(whitelist) == 0 || tools.IsControlTool(name) {
		return true
	}
	for _, w := range whitelist {
		if w == name {
			return true
		}
	}
	return false
}

// nativeCatalog converts registered tool metadata into the provider's
// tool declarations, filtered to the whitelist.
func (e *Engine) nativeCatalog(whitelist []string) []llm.Tool {
	infos := e.registry.AllToolsInfo()
	catalog := make([]llm.Tool, 0, len(infos))
	for _, info := range infos {
		if !e.authorized(whitelist, info.Name) {
			continue
		}
		catalog = append(catalog, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        info.Name,
				Description: info.Description,
				Parameters:  schemaForParameters(info.Parameters),
			},
		})
	}
	return catalog
}

func schemaForParameters(params []tools.Parameter) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		prop := map[string]any{}
		if jt := jsonSchemaType(p.Type); jt != "" {
			prop["type"] = jt
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonSchemaType(t string) string {
	switch t {
	case tools.TypeInt:
		return "integer"
	case tools.TypeBool:
		return "boolean"
	case tools.TypeList:
		return "array"
	case tools.TypeDict:
		return "object"
	case tools.TypeAny:
		return ""
	default:
		return "string"
	}
}

// promptWithRecall extends the system prompt with snippets recalled
// from earlier conversations, keyed on the current task. When no
// long-term store is configured the prompt passes through unchanged.
func (e *Engine) promptWithRecall(ctx context.Context, session ExecutionSession) string {
	if strings.TrimSpace(session.Task) == "" {
		return session.SystemPrompt
	}
	related := e.contexts.RelatedContext(ctx, session.AgentID, session.Task)
	if related == "" {
		return session.SystemPrompt
	}
	if session.SystemPrompt == "" {
		return related
	}
	return session.SystemPrompt + "\n\n" + related
}

// saveTurn records a turn without failing the run: the in-flight
// message list is authoritative for the current run, the store is the
// durable log.
func (e *Engine) saveTurn(ctx context.Context, agentID, role, content string, metadata map[string]any) {
	if err := e.contexts.Memory().SaveTurn(ctx, agentID, role, content, metadata); err != nil {
		slog.Warn("Failed to persist conversation turn",
			"agent", agentID,
			"role", role,
			"error", err)
	}
}

func decodeNativeArgs(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		slog.Warn("Native tool call carried undecodable arguments", "error", err)
		return map[string]any{}
	}
	return args
}

func composeUserMessage(userPrompt, task string) string {
	parts := make([]string, 0, 2)
	if strings.TrimSpace(userPrompt) != "" {
		parts = append(parts, userPrompt)
	}
	if strings.TrimSpace(task) != "" {
		parts = append(parts, task)
	}
	return strings.Join(parts, "\n\n")
}

// controlMessage pulls the declared message out of a control tool's
// structured result.
func controlMessage(result tools.ToolResult, fallback string) string {
	if m := result.Result.Map(); m != nil {
		if s, ok := m["message"].(string); ok && s != "" {
			return s
		}
		if s, ok := m["error_message"].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func fail(out AgentOutput, kind, cmd, response string) AgentOutput {
	out.Success = false
	out.Error = kind
	out.Cmd = cmd
	out.Response = response
	return out
}
