package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const checkTimeout = 60 * time.Second

// CodeCheckTool runs gofmt over a path and reports files that are not
// canonically formatted. It gives agents a cheap sanity signal after
// editing Go sources.
type CodeCheckTool struct {
	workingDir string
}

// NewCodeCheckTool creates the code_check tool.
func NewCodeCheckTool(workingDir string) *CodeCheckTool {
	if workingDir == "" {
		workingDir = "."
	}
	return &CodeCheckTool{workingDir: workingDir}
}

func (t *CodeCheckTool) Metadata() Metadata {
	return Metadata{
		Name:        "code_check",
		Description: "Check Go source formatting with gofmt. Lists files that need reformatting; an empty list means everything is clean.",
		Category:    CategorySystem,
		Parameters: []Parameter{
			{Name: "path", Type: TypeString, Description: "File or directory to check, relative to the working directory", Required: false, Default: "."},
		},
	}
}

func (t *CodeCheckTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}

	fullPath, err := validatePath(t.workingDir, path)
	if err != nil {
		return Outcome{}, err
	}

	execCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "gofmt", "-l", fullPath)
	output, err := cmd.CombinedOutput()
	if execCtx.Err() == context.DeadlineExceeded {
		return Outcome{}, fmt.Errorf("gofmt timed out after %s", checkTimeout)
	}
	if err != nil {
		// gofmt exits non-zero on parse errors and prints them to stderr.
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			msg = err.Error()
		}
		return Structured(map[string]any{
			"success": false,
			"clean":   false,
			"output":  msg,
		}), nil
	}

	files := strings.FieldsFunc(strings.TrimSpace(string(output)), func(r rune) bool { return r == '\n' })
	if len(files) == 0 {
		return Structured(map[string]any{
			"success": true,
			"clean":   true,
			"output":  "all files formatted",
		}), nil
	}

	return Structured(map[string]any{
		"success": true,
		"clean":   false,
		"output":  fmt.Sprintf("%d file(s) need gofmt:\n%s", len(files), strings.Join(files, "\n")),
	}), nil
}
