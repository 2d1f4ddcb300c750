package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/batonlabs/baton/pkg/observability"
)

const (
	// MaxOutputChars caps string tool output before truncation.
	MaxOutputChars = 4000

	// DefaultToolTimeout bounds a single tool execution.
	DefaultToolTimeout = 300 * time.Second

	// ErrToolException marks a result produced from a panicking tool.
	ErrToolException = "tool_exception"
)

// Scheduler owns the execution contract between the LLM and the tools:
// one result per call, in order, with coerced arguments, truncated
// output, and panics contained.
type Scheduler struct {
	registry *Registry
	timeout  time.Duration
}

// NewScheduler creates a scheduler over the registry. timeout <= 0
// falls back to DefaultToolTimeout.
func NewScheduler(registry *Registry, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Scheduler{
		registry: registry,
		timeout:  timeout,
	}
}

// ExecuteTools runs every call and returns an equal-length result list
// in the same order. It never panics and never aborts the batch: a
// missing tool, validation failure, or crash becomes a failed result.
func (s *Scheduler) ExecuteTools(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	for i, call := range calls {
		results[i] = s.executeOne(ctx, call)
	}
	return results
}

func (s *Scheduler) executeOne(ctx context.Context, call ToolCall) ToolResult {
	tracer := observability.GetTracer("baton.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution)
	span.SetAttributes(attribute.String(observability.AttrToolName, call.Name))
	defer span.End()

	start := time.Now()
	result := s.run(ctx, call)
	result.ExecutionTime = time.Since(start).Seconds()

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		var errKind error
		if !result.Success {
			errKind = fmt.Errorf("%s", result.Error)
		}
		metrics.RecordToolExecution(ctx, call.Name, time.Since(start), errKind)
	}
	if !result.Success {
		span.SetStatus(codes.Error, result.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	slog.Debug("Tool executed",
		"tool", call.Name,
		"success", result.Success,
		"duration", time.Since(start))

	return result
}

func (s *Scheduler) run(ctx context.Context, call ToolCall) (result ToolResult) {
	result = ToolResult{
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}

	// A crashing tool must never take the loop down with it.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", call.Name, "panic", r)
			result.Success = false
			result.Error = ErrToolException
			result.Result = Text(fmt.Sprintf("Tool execution failed: %v", r))
		}
	}()

	tool, ok := s.registry.Get(call.Name)
	if !ok {
		result.Error = fmt.Sprintf("Tool not found: %s", call.Name)
		result.Result = Text(result.Error)
		return result
	}

	args, err := CoerceArgs(tool.Metadata().Parameters, call.Args)
	if err != nil {
		result.Error = err.Error()
		result.Result = Text(fmt.Sprintf("Invalid arguments: %v", err))
		return result
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome, err := tool.Execute(execCtx, args)
	if err != nil {
		result.Error = err.Error()
		result.Result = Text(fmt.Sprintf("Tool execution failed: %v", err))
		return result
	}

	result.Success = true
	var truncated bool
	result.Result, truncated = truncateOutcome(outcome)
	if truncated {
		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordTruncation(ctx, call.Name)
		}
	}
	return result
}

// CoerceArgs validates raw arguments against the declared parameters:
// undeclared arguments are dropped, friendly casts are applied, missing
// optional parameters get their defaults, and anything else fails.
func CoerceArgs(params []Parameter, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))

	for _, p := range params {
		value, present := raw[p.Name]
		if !present {
			if p.Required && p.Default == nil {
				return nil, fmt.Errorf("missing required argument %q", p.Name)
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerceValue(p, value)
		if err != nil {
			return nil, err
		}
		out[p.Name] = coerced
	}

	return out, nil
}

func coerceValue(p Parameter, value any) (any, error) {
	switch p.Type {
	case TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}

	case TypeInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			// JSON numbers decode as float64.
			if v == float64(int(v)) {
				return int(v), nil
			}
		case string:
			if isDigits(v) {
				n, err := strconv.Atoi(v)
				if err == nil {
					return n, nil
				}
			}
		}

	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(v) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}

	case TypeList:
		if l, ok := value.([]any); ok {
			return l, nil
		}

	case TypeDict:
		if m, ok := value.(map[string]any); ok {
			return m, nil
		}

	case TypeAny, "":
		return value, nil
	}

	return nil, fmt.Errorf("argument %q: expected %s, got %T", p.Name, p.Type, value)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// truncateOutcome caps text outcomes at MaxOutputChars with a marker
// naming the original length. Structured outcomes pass verbatim.
func truncateOutcome(o Outcome) (Outcome, bool) {
	if o.IsStructured() {
		return o, false
	}
	s := o.String()
	if len(s) <= MaxOutputChars {
		return o, false
	}
	return Text(TruncateOutput(s)), true
}

// TruncateOutput applies the output cap to a plain string.
func TruncateOutput(s string) string {
	if len(s) <= MaxOutputChars {
		return s
	}
	return s[:MaxOutputChars] + fmt.Sprintf("... [Output truncated. Total length: %d chars]", len(s))
}
