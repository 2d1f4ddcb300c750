package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecuteCommandTool(t *testing.T) {
	workDir := t.TempDir()
	tool := NewExecuteCommandTool(CommandToolConfig{WorkingDir: workDir})
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		out, err := tool.Execute(ctx, map[string]any{"command": "echo hello"})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		m := out.Map()
		if m == nil {
			t.Fatal("want structured result")
		}
		if ok, _ := m["success"].(bool); !ok {
			t.Error("success = false")
		}
		if got, _ := m["output"].(string); got != "hello" {
			t.Errorf("output = %q", got)
		}
		if code, _ := m["exit_code"].(int); code != 0 {
			t.Errorf("exit_code = %v", m["exit_code"])
		}
	})

	t.Run("nonzero_exit", func(t *testing.T) {
		out, err := tool.Execute(ctx, map[string]any{"command": "exit 3"})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		m := out.Map()
		if ok, _ := m["success"].(bool); ok {
			t.Error("success = true for failing command")
		}
		if code, _ := m["exit_code"].(int); code != 3 {
			t.Errorf("exit_code = %v", m["exit_code"])
		}
	})

	t.Run("no_output_placeholder", func(t *testing.T) {
		out, err := tool.Execute(ctx, map[string]any{"command": "true"})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		if got, _ := out.Map()["output"].(string); got != "(no output)" {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("empty_command", func(t *testing.T) {
		_, err := tool.Execute(ctx, map[string]any{"command": "  "})
		if err == nil {
			t.Error("want error for empty command")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		fast := NewExecuteCommandTool(CommandToolConfig{
			WorkingDir:     workDir,
			DefaultTimeout: 100 * time.Millisecond,
		})
		_, err := fast.Execute(ctx, map[string]any{"command": "sleep 5"})
		if err == nil || !strings.Contains(err.Error(), "timed out") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("per_call_timeout_capped", func(t *testing.T) {
		capped := NewExecuteCommandTool(CommandToolConfig{
			WorkingDir: workDir,
			MaxTimeout: 100 * time.Millisecond,
		})
		start := time.Now()
		_, err := capped.Execute(ctx, map[string]any{"command": "sleep 5", "timeout": 60})
		if err == nil || !strings.Contains(err.Error(), "timed out") {
			t.Fatalf("err = %v", err)
		}
		if time.Since(start) > 2*time.Second {
			t.Error("max timeout cap was not applied")
		}
	})

	t.Run("working_dir_escape_rejected", func(t *testing.T) {
		_, err := tool.Execute(ctx, map[string]any{"command": "pwd", "working_dir": "../.."})
		if err == nil {
			t.Error("want traversal error")
		}
	})

	t.Run("records_duration", func(t *testing.T) {
		out, err := tool.Execute(ctx, map[string]any{"command": "echo timing"})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		if _, ok := out.Map()["duration_ms"].(int64); !ok {
			t.Errorf("duration_ms = %T", out.Map()["duration_ms"])
		}
	})

	t.Run("restricted_env", func(t *testing.T) {
		t.Setenv("BATON_TEST_SECRET", "hush")
		t.Setenv("BATON_TEST_ALLOWED", "visible")

		restricted := NewExecuteCommandTool(CommandToolConfig{
			WorkingDir:  workDir,
			SafeEnvVars: []string{"BATON_TEST_ALLOWED"},
		})
		out, err := restricted.Execute(ctx, map[string]any{"command": "env"})
		if err != nil {
			t.Fatalf("Execute error: %v", err)
		}
		text, _ := out.Map()["output"].(string)
		if strings.Contains(text, "BATON_TEST_SECRET") {
			t.Error("secret leaked into restricted environment")
		}
		if !strings.Contains(text, "BATON_TEST_ALLOWED=visible") {
			t.Error("allowed variable missing from environment")
		}
	})
}
