package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const gitTimeout = 30 * time.Second

// runGit executes a git subcommand in the working directory.
func runGit(ctx context.Context, workingDir string, args ...string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "git", args...)
	cmd.Dir = workingDir
	output, err := cmd.CombinedOutput()
	if execCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("git %s timed out after %s", args[0], gitTimeout)
	}
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s failed: %s", args[0], msg)
	}
	return strings.TrimRight(string(output), "\n"), nil
}

// GitStatusTool reports the working tree status.
type GitStatusTool struct {
	workingDir string
}

// NewGitStatusTool creates the git_status tool.
func NewGitStatusTool(workingDir string) *GitStatusTool {
	if workingDir == "" {
		workingDir = "."
	}
	return &GitStatusTool{workingDir: workingDir}
}

func (t *GitStatusTool) Metadata() Metadata {
	return Metadata{
		Name:        "git_status",
		Description: "Show the git working tree status (short format with branch).",
		Category:    CategoryGit,
		Parameters:  []Parameter{},
	}
}

func (t *GitStatusTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	out, err := runGit(ctx, t.workingDir, "status", "--short", "--branch")
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(out) == "" {
		out = "(clean working tree)"
	}
	return Text(out), nil
}

// GitDiffTool shows uncommitted changes.
type GitDiffTool struct {
	workingDir string
}

// NewGitDiffTool creates the git_diff tool.
func NewGitDiffTool(workingDir string) *GitDiffTool {
	if workingDir == "" {
		workingDir = "."
	}
	return &GitDiffTool{workingDir: workingDir}
}

func (t *GitDiffTool) Metadata() Metadata {
	return Metadata{
		Name:        "git_diff",
		Description: "Show uncommitted changes as a unified diff. Pass staged=true for the index diff, or a path to narrow the diff.",
		Category:    CategoryGit,
		Parameters: []Parameter{
			{Name: "staged", Type: TypeBool, Description: "Diff the index instead of the working tree", Required: false, Default: false},
			{Name: "path", Type: TypeString, Description: "Limit the diff to a path", Required: false},
		},
	}
}

func (t *GitDiffTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	gitArgs := []string{"diff"}
	if staged, _ := args["staged"].(bool); staged {
		gitArgs = append(gitArgs, "--cached")
	}
	if path, _ := args["path"].(string); path != "" {
		gitArgs = append(gitArgs, "--", path)
	}

	out, err := runGit(ctx, t.workingDir, gitArgs...)
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(out) == "" {
		out = "(no changes)"
	}
	return Text(out), nil
}

// GitLogTool shows recent commit history.
type GitLogTool struct {
	workingDir string
}

// NewGitLogTool creates the git_log tool.
func NewGitLogTool(workingDir string) *GitLogTool {
	if workingDir == "" {
		workingDir = "."
	}
	return &GitLogTool{workingDir: workingDir}
}

func (t *GitLogTool) Metadata() Metadata {
	return Metadata{
		Name:        "git_log",
		Description: "Show recent commits, one line each.",
		Category:    CategoryGit,
		Parameters: []Parameter{
			{Name: "max_count", Type: TypeInt, Description: "Number of commits to show", Required: false, Default: 10},
			{Name: "path", Type: TypeString, Description: "Limit the log to a path", Required: false},
		},
	}
}

func (t *GitLogTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	maxCount := 10
	if v, ok := args["max_count"].(int); ok && v > 0 {
		maxCount = v
	}

	gitArgs := []string{"log", fmt.Sprintf("--max-count=%d", maxCount), "--pretty=format:%h %ad %an %s", "--date=short"}
	if path, _ := args["path"].(string); path != "" {
		gitArgs = append(gitArgs, "--", path)
	}

	out, err := runGit(ctx, t.workingDir, gitArgs...)
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(out) == "" {
		out = "(no commits)"
	}
	return Text(out), nil
}
