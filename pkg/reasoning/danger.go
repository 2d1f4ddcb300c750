package reasoning

import (
	"regexp"

	"github.com/batonlabs/baton/pkg/tools"
)

// shellMutationRe catches destructive commands routed through a shell
// tool, including when hidden behind separators such as ";" or "&&".
var shellMutationRe = regexp.MustCompile(`(?i)(^|[;\s|&])(rm|del|rmdir|mv|rename)(\s+|$)`)

// shellTools take a "command" argument containing shell text.
var shellTools = map[string]bool{
	"bash":            true,
	"execute_command": true,
}

// requiresConfirmation reports whether a tool call must pass the user
// confirmation gate before dispatch. The gate triggers on the static
// dangerous set, on tools that declare themselves dangerous, and on
// shell commands that mutate the filesystem.
func (e *Engine) requiresConfirmation(name string, args map[string]any) bool {
	if tools.DangerousTools[name] {
		return true
	}
	if e.registry != nil {
		if t, ok := e.registry.Get(name); ok && t.Metadata().Dangerous {
			return true
		}
	}
	if shellTools[name] {
		if cmd, ok := args["command"].(string); ok && shellMutationRe.MatchString(cmd) {
			return true
		}
	}
	return false
}
