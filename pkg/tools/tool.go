// Package tools defines the tool surface agents act through: typed
// parameter declarations, a registry, and a scheduler that stands
// between the probabilistic LLM and deterministic code (argument
// coercion, output truncation, panic containment).
package tools

import (
	"context"
	"encoding/json"
	"sort"
)

// Parameter types drive the scheduler's argument coercion. TypeAny
// passes values through unconverted, for externally-defined schemas
// that use types outside this set.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeList   = "list"
	TypeDict   = "dict"
	TypeAny    = "any"
)

// Tool categories.
const (
	CategoryFile     = "file"
	CategorySystem   = "system"
	CategoryWeb      = "web"
	CategoryGit      = "git"
	CategoryControl  = "control"
	CategoryExternal = "external"
)

// Control tool names. These signal loop and workflow state rather than
// doing work, and are always available to every agent.
const (
	ToolTaskSuccess    = "task_success"
	ToolTaskError      = "task_error"
	ToolTasksCompleted = "tasks_completed"
)

// DangerousTools is the advisory set of tool names that require
// caller-side confirmation before execution. Tools may also declare
// Dangerous in their metadata.
var DangerousTools = map[string]bool{
	"write_file":      true,
	"execute_command": true,
	"bash":            true,
	"git_commit":      true,
	"git_push":        true,
}

// Parameter declares one tool argument.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// Metadata describes a tool to the registry, the scheduler, and the
// prompt layer.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Category    string      `json:"category"`
	Dangerous   bool        `json:"dangerous"`
}

// Tool is one callable capability.
type Tool interface {
	Metadata() Metadata

	// Execute runs the tool with already-coerced arguments. Errors are
	// reported through the returned error; the scheduler converts them
	// into failed results.
	Execute(ctx context.Context, args map[string]any) (Outcome, error)
}

// Outcome is a tool's result payload: either text or a structured map.
// Structured outcomes pass through the scheduler untruncated so
// downstream logic can inspect them; a "success" bool key overrides
// scheduler-level success.
type Outcome struct {
	text       string
	structured map[string]any
}

// Text wraps a plain-text outcome.
func Text(s string) Outcome {
	return Outcome{text: s}
}

// Structured wraps a map outcome.
func Structured(m map[string]any) Outcome {
	return Outcome{structured: m}
}

// IsStructured reports whether the outcome carries a map.
func (o Outcome) IsStructured() bool {
	return o.structured != nil
}

// Map returns the structured payload, nil for text outcomes.
func (o Outcome) Map() map[string]any {
	return o.structured
}

// String renders the outcome for history and prompts: the text itself,
// or pretty-printed JSON for structured payloads.
func (o Outcome) String() string {
	if o.structured == nil {
		return o.text
	}
	raw, err := json.MarshalIndent(o.structured, "", "  ")
	if err != nil {
		return ""
	}
	return string(raw)
}

// BusinessSuccess reports the tool's declared outcome: a structured
// result with a "success" bool overrides scheduler-level success.
func (o Outcome) BusinessSuccess(schedulerSuccess bool) bool {
	if o.structured != nil {
		if declared, ok := o.structured["success"].(bool); ok {
			return declared
		}
	}
	return schedulerSuccess
}

// ToolCall is one requested invocation.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult is the outcome of exactly one ToolCall, sharing its ID.
type ToolResult struct {
	ToolCallID    string  `json:"tool_call_id"`
	ToolName      string  `json:"tool_name"`
	Result        Outcome `json:"-"`
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"execution_time_s"`
}

// sortedParams returns parameters ordered by name for stable prompt
// rendering.
func sortedParams(params []Parameter) []Parameter {
	out := make([]Parameter, len(params))
	copy(out, params)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
