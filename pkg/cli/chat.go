// Package cli implements the interactive surfaces of the baton binary:
// the chat REPL with its memory inspection commands, and the terminal
// approval prompt that gates dangerous tool calls.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/batonlabs/baton/pkg/memory"
	"github.com/batonlabs/baton/pkg/orchestrator"
	"github.com/batonlabs/baton/pkg/workflow"
)

// Session is the orchestrator surface the REPL drives. Satisfied by
// orchestrator.Orchestrator.
type Session interface {
	HandleRequest(ctx context.Context, input string) workflow.Result
	MemoryStats() (memory.Stats, error)
	MemoryContent(scope string) (string, error)
	ResetConversation() error
}

// Chat is the interactive REPL.
type Chat struct {
	session Session
	in      *bufio.Reader
	out     io.Writer
}

// NewChat builds a REPL reading user input from in and writing to out.
func NewChat(session Session, in io.Reader, out io.Writer) *Chat {
	return &Chat{
		session: session,
		in:      bufio.NewReader(in),
		out:     out,
	}
}

// Run loops until /quit, EOF, or context cancellation. Slash commands
// inspect state locally; everything else becomes a workflow request.
func (c *Chat) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "Interactive session. Type a request, or /help for commands.\n\n")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(c.out, "you> ")
		line, err := c.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(c.out, "\nGoodbye.")
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") || input == "exit" {
			if quit := c.dispatchCommand(input); quit {
				fmt.Fprintln(c.out, "Goodbye.")
				return nil
			}
			continue
		}

		result := c.session.HandleRequest(ctx, input)
		printResult(c.out, result)
	}
}

// dispatchCommand handles one slash command. Returns true to quit.
func (c *Chat) dispatchCommand(input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit", "exit":
		return true

	case "/help":
		c.printHelp()

	case "/reset":
		if err := c.session.ResetConversation(); err != nil {
			fmt.Fprintf(c.out, "Reset failed: %v\n", err)
		} else {
			fmt.Fprintln(c.out, "Conversation reset.")
		}

	case "/memory":
		c.runMemoryCommand(fields[1:])

	default:
		fmt.Fprintf(c.out, "Unknown command %s.\n", fields[0])
		c.printHelp()
	}
	return false
}

func (c *Chat) runMemoryCommand(args []string) {
	switch {
	case len(args) == 0:
		stats, err := c.session.MemoryStats()
		if err != nil {
			fmt.Fprintf(c.out, "Memory stats failed: %v\n", err)
			return
		}
		printStats(c.out, stats)

	case args[0] == "conversation":
		c.printScope(orchestrator.ScopeConversation)

	case args[0] == "agents" && len(args) == 1:
		c.printScope(orchestrator.ScopeAgents)

	case args[0] == "agents":
		c.printScope(args[1])

	default:
		fmt.Fprintf(c.out, "Unknown memory scope %q.\n", args[0])
		c.printHelp()
	}
}

func (c *Chat) printScope(scope string) {
	content, err := c.session.MemoryContent(scope)
	if err != nil {
		fmt.Fprintf(c.out, "Memory inspection failed: %v\n", err)
		return
	}
	fmt.Fprint(c.out, content)
	if !strings.HasSuffix(content, "\n") {
		fmt.Fprintln(c.out)
	}
}

func (c *Chat) printHelp() {
	fmt.Fprint(c.out, `Commands:
  /memory              memory statistics
  /memory conversation the user-facing conversation
  /memory agents       every agent's working memory
  /memory agents <id>  one agent's working memory
  /reset               clear all conversation state
  /quit                leave the session
`)
}

func printResult(out io.Writer, result workflow.Result) {
	if result.Response != "" {
		fmt.Fprintf(out, "\n%s\n\n", result.Response)
	}
	if !result.Success {
		fmt.Fprintf(out, "Request failed (%s).\n\n", result.Error)
	}
}

func printStats(out io.Writer, stats memory.Stats) {
	fmt.Fprintf(out, "Agents with memory: %d\n", stats.AgentCount)
	fmt.Fprintf(out, "Total turns: %d\n", stats.TotalTurns)

	ids := make([]string, 0, len(stats.TurnsByAgent))
	for id := range stats.TurnsByAgent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "  %s: %d\n", id, stats.TurnsByAgent[id])
	}
}
