package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultCommandTimeout = 30 * time.Second
	maxCommandTimeout     = 300 * time.Second
)

// CommandToolConfig bounds execute_command.
type CommandToolConfig struct {
	WorkingDir     string
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration

	// SafeEnvVars are forwarded to commands beyond PATH and HOME. Empty
	// means the full process environment is inherited.
	SafeEnvVars []string
}

func (c *CommandToolConfig) setDefaults() {
	if c.WorkingDir == "" {
		c.WorkingDir = "."
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultCommandTimeout
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = maxCommandTimeout
	}
}

// ExecuteCommandTool runs shell commands through sh -c. It is registered
// as dangerous: destructive invocations are gated upstream before the
// scheduler ever sees them.
type ExecuteCommandTool struct {
	cfg CommandToolConfig
}

// NewExecuteCommandTool creates the execute_command tool.
func NewExecuteCommandTool(cfg CommandToolConfig) *ExecuteCommandTool {
	cfg.setDefaults()
	return &ExecuteCommandTool{cfg: cfg}
}

func (t *ExecuteCommandTool) Metadata() Metadata {
	return Metadata{
		Name:        "execute_command",
		Description: "Execute a shell command and return its combined output with the exit code.",
		Category:    CategorySystem,
		Dangerous:   true,
		Parameters: []Parameter{
			{Name: "command", Type: TypeString, Description: "Shell command to execute", Required: true},
			{Name: "working_dir", Type: TypeString, Description: "Directory to run in, relative to the working directory", Required: false},
			{Name: "timeout", Type: TypeInt, Description: "Timeout in seconds", Required: false},
		},
	}
}

func (t *ExecuteCommandTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return Outcome{}, fmt.Errorf("command cannot be empty")
	}

	dir := t.cfg.WorkingDir
	if v, ok := args["working_dir"].(string); ok && v != "" {
		resolved, err := validatePath(t.cfg.WorkingDir, v)
		if err != nil {
			return Outcome{}, err
		}
		dir = resolved
	}

	timeout := t.cfg.DefaultTimeout
	if v, ok := args["timeout"].(int); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
		if timeout > t.cfg.MaxTimeout {
			timeout = t.cfg.MaxTimeout
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = t.commandEnv()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if execCtx.Err() == context.DeadlineExceeded {
		return Outcome{}, fmt.Errorf("command timed out after %s", timeout)
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Outcome{}, fmt.Errorf("failed to run command: %w", err)
		}
	}

	text := strings.TrimRight(string(output), "\n")
	if text == "" {
		text = "(no output)"
	}

	return Structured(map[string]any{
		"success":     exitCode == 0,
		"output":      text,
		"exit_code":   exitCode,
		"duration_ms": elapsed.Milliseconds(),
	}), nil
}

// commandEnv builds the subprocess environment. With SafeEnvVars set only
// PATH, HOME and the listed variables are forwarded; otherwise the full
// process environment is inherited (nil means inherit for exec.Cmd).
func (t *ExecuteCommandTool) commandEnv() []string {
	if len(t.cfg.SafeEnvVars) == 0 {
		return nil
	}
	names := append([]string{"PATH", "HOME"}, t.cfg.SafeEnvVars...)
	env := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if value, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+value)
		}
	}
	return env
}
