package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"

	"github.com/batonlabs/baton/pkg/reasoning"
)

// TerminalApprover returns an interaction handler that asks the user
// to confirm each dangerous tool call on the terminal. Anything but an
// explicit yes denies the call.
func TerminalApprover(in io.Reader, out io.Writer) reasoning.InteractionHandler {
	reader := bufio.NewReader(in)
	return func(toolName string, args map[string]any) bool {
		fmt.Fprintf(out, "\nApproval required: %s\n", toolName)
		for _, line := range renderArgs(args) {
			fmt.Fprintf(out, "  %s\n", line)
		}
		fmt.Fprint(out, "Allow? [y/N]: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

// StdinApprover wires TerminalApprover to the process terminal. When
// stdin is not a terminal there is nobody to ask, so it returns nil
// and the engine's deny-by-default takes over.
func StdinApprover() reasoning.InteractionHandler {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return TerminalApprover(os.Stdin, os.Stdout)
}

// renderArgs flattens tool arguments to sorted "key: value" lines,
// JSON-encoding non-string values.
func renderArgs(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := args[k].(type) {
		case string:
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				lines = append(lines, fmt.Sprintf("%s: %v", k, v))
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s", k, encoded))
		}
	}
	return lines
}
