package runtime

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/memory"
	"github.com/batonlabs/baton/pkg/workflow"
)

func quietConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	cfg.Logging.Level = "error"
	return cfg
}

func newRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	rt, err := New(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := rt.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return rt
}

func TestNew_AssemblesDefaults(t *testing.T) {
	rt := newRuntime(t, quietConfig(t))

	if rt.Orchestrator() == nil {
		t.Fatal("Orchestrator() = nil")
	}
	if rt.Memory() == nil || rt.Tools() == nil {
		t.Fatal("runtime is missing collaborators")
	}
	if got := rt.LLM().Model(); got != "deepseek-chat" {
		t.Errorf("Model() = %q, want config default", got)
	}

	for _, name := range []string{"read_file", "write_file", "execute_command", "task_success", "tasks_completed"} {
		if !rt.Tools().Has(name) {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestNew_RegistersBuiltinAgents(t *testing.T) {
	rt := newRuntime(t, quietConfig(t))

	builtins := map[string]string{
		workflow.PlannerAgentName: "json",
		workflow.TodoAgentName:    "json",
		workflow.ExecAgentName:    "json",
		workflow.DefaultAgentName: "default",
	}
	for name, format := range builtins {
		reg, err := rt.Agents().FindByName(name)
		if err != nil {
			t.Fatalf("FindByName(%s): %v", name, err)
		}
		if reg.Capabilities.ResponseFormat != format {
			t.Errorf("%s format = %q, want %q", name, reg.Capabilities.ResponseFormat, format)
		}
		if reg.Capabilities.SystemPrompt == "" {
			t.Errorf("%s has no system prompt", name)
		}
		if reg.Capabilities.MaxReasoningTurns != 10 {
			t.Errorf("%s reasoning turns = %d, want config default", name, reg.Capabilities.MaxReasoningTurns)
		}
	}

	exec, err := rt.Agents().FindByName(workflow.ExecAgentName)
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	for _, control := range []string{"task_success", "task_error", "tasks_completed"} {
		if !strings.Contains(exec.Capabilities.SystemPrompt, control) {
			t.Errorf("exec prompt does not mention %s", control)
		}
	}
}

func TestNew_RegistersConfigDefinitions(t *testing.T) {
	cfg := quietConfig(t)
	cfg.Agents.Definitions = map[string]*config.AgentDefinition{
		"research_agent": {
			Description:  "Looks up background material before execution.",
			SystemPrompt: "You are a research specialist.",
			Tags:         []string{"research"},
		},
	}

	rt := newRuntime(t, cfg)

	reg, err := rt.Agents().FindByName("research_agent")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	caps := reg.Capabilities
	if caps.MaxReasoningTurns != 10 || caps.MaxMemoryTurns != 50 {
		t.Errorf("defaults not applied: turns=%d memory=%d", caps.MaxReasoningTurns, caps.MaxMemoryTurns)
	}
	if caps.MaxTokens != 4000 {
		t.Errorf("MaxTokens = %d, want LLM default", caps.MaxTokens)
	}
	if caps.ResponseFormat != "default" {
		t.Errorf("ResponseFormat = %q, want default", caps.ResponseFormat)
	}
}

func TestNew_RejectsBadDefinition(t *testing.T) {
	cfg := quietConfig(t)
	cfg.Agents.Definitions = map[string]*config.AgentDefinition{
		"bad": {Description: "too short"},
	}

	if _, err := New(context.Background(), cfg, Options{}); err == nil {
		t.Fatal("New should reject a definition with an invalid description")
	}
}

func TestNew_SQLiteMemoryBackend(t *testing.T) {
	cfg := quietConfig(t)
	cfg.Memory.Backend = config.MemoryBackendSQL
	cfg.Memory.Database = &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "turns.db"),
	}

	rt := newRuntime(t, cfg)

	ctx := context.Background()
	if err := rt.Memory().SaveTurn(ctx, "orchestrator", memory.RoleUser, "hello", nil); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	count, err := rt.Memory().TurnCount("orchestrator")
	if err != nil {
		t.Fatalf("TurnCount: %v", err)
	}
	if count != 1 {
		t.Errorf("TurnCount = %d, want 1", count)
	}
}

func TestNew_InvalidConfigFails(t *testing.T) {
	cfg := quietConfig(t)
	cfg.Workflow.Mode = "bogus"

	if _, err := New(context.Background(), cfg, Options{}); err == nil {
		t.Fatal("New should fail config validation")
	}
}

func TestCapsFromDefinition_Overrides(t *testing.T) {
	cfg := quietConfig(t)
	temp := 1.5
	def := &config.AgentDefinition{
		Description:       "Writes code with a hot temperature.",
		MaxReasoningTurns: 3,
		Temperature:       &temp,
		MaxTokens:         256,
		ResponseFormat:    "json",
	}

	caps := capsFromDefinition(def, cfg)

	if caps.MaxReasoningTurns != 3 {
		t.Errorf("MaxReasoningTurns = %d, want override", caps.MaxReasoningTurns)
	}
	if caps.Temperature != 1.5 {
		t.Errorf("Temperature = %g, want override", caps.Temperature)
	}
	if caps.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d, want override", caps.MaxTokens)
	}
	if caps.ResponseFormat != "json" {
		t.Errorf("ResponseFormat = %q, want override", caps.ResponseFormat)
	}
	if caps.MaxMemoryTurns != 50 {
		t.Errorf("MaxMemoryTurns = %d, want config default", caps.MaxMemoryTurns)
	}
}
