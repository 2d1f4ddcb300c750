package tools

import (
	"context"
	"fmt"
)

// Control tools are pure signals: they never touch the environment. The
// reasoning loop short-circuits on their names before results propagate,
// so the bodies only echo the declared arguments back as structured maps.

// TaskSuccessTool signals that the current task finished.
type TaskSuccessTool struct{}

// NewTaskSuccessTool creates the task_success control tool.
func NewTaskSuccessTool() *TaskSuccessTool { return &TaskSuccessTool{} }

func (t *TaskSuccessTool) Metadata() Metadata {
	return Metadata{
		Name:        ToolTaskSuccess,
		Description: "Declare the current task complete. Call this with a summary message when the objective is met.",
		Category:    CategoryControl,
		Parameters: []Parameter{
			{Name: "message", Type: TypeString, Description: "Summary of what was accomplished", Required: true},
		},
	}
}

func (t *TaskSuccessTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	message, _ := args["message"].(string)
	return Structured(map[string]any{
		"success": true,
		"message": message,
	}), nil
}

// TaskErrorTool signals that the current task cannot be completed.
type TaskErrorTool struct{}

// NewTaskErrorTool creates the task_error control tool.
func NewTaskErrorTool() *TaskErrorTool { return &TaskErrorTool{} }

func (t *TaskErrorTool) Metadata() Metadata {
	return Metadata{
		Name:        ToolTaskError,
		Description: "Declare the current task failed. Call this with the reason when the objective cannot be met.",
		Category:    CategoryControl,
		Parameters: []Parameter{
			{Name: "error_message", Type: TypeString, Description: "Why the task failed", Required: true},
		},
	}
}

func (t *TaskErrorTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	errMsg, _ := args["error_message"].(string)
	if errMsg == "" {
		errMsg = "unspecified error"
	}
	return Structured(map[string]any{
		"success":       false,
		"error_message": errMsg,
	}), nil
}

// TasksCompletedTool signals that the whole workflow is done and no
// further tasks should run.
type TasksCompletedTool struct{}

// NewTasksCompletedTool creates the tasks_completed control tool.
func NewTasksCompletedTool() *TasksCompletedTool { return &TasksCompletedTool{} }

func (t *TasksCompletedTool) Metadata() Metadata {
	return Metadata{
		Name:        ToolTasksCompleted,
		Description: "Declare the entire request satisfied. Remaining planned tasks are skipped.",
		Category:    CategoryControl,
		Parameters: []Parameter{
			{Name: "message", Type: TypeString, Description: "Final answer for the user", Required: false, Default: ""},
		},
	}
}

func (t *TasksCompletedTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	message, _ := args["message"].(string)
	if message == "" {
		message = "All tasks completed."
	}
	return Structured(map[string]any{
		"success": true,
		"message": message,
		"halt":    true,
	}), nil
}

// ControlToolNames returns the names of the always-available control tools.
func ControlToolNames() []string {
	return []string{ToolTaskSuccess, ToolTaskError, ToolTasksCompleted}
}

// IsControlTool reports whether name belongs to a control tool.
func IsControlTool(name string) bool {
	switch name {
	case ToolTaskSuccess, ToolTaskError, ToolTasksCompleted:
		return true
	}
	return false
}

// RegisterControlTools adds the three control tools to a registry.
func RegisterControlTools(registry *Registry) error {
	for _, tool := range []Tool{NewTaskSuccessTool(), NewTaskErrorTool(), NewTasksCompletedTool()} {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register %s: %w", tool.Metadata().Name, err)
		}
	}
	return nil
}
