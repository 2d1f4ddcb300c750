// Example programmatic builds a complete baton process without any
// YAML, using only Go code. It demonstrates:
//
//   - Constructing the configuration programmatically
//   - Assembling the stack through pkg/runtime
//   - Handling one request end to end
//   - Reading conversation memory afterwards
//
// Prerequisites:
//   - Set DEEPSEEK_API_KEY (or BATON_API_KEY) in the environment
//
// Run:
//
//	go run ./pkg/examples/programmatic
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/runtime"
)

func main() {
	_ = config.LoadEnvFiles()

	cfg, err := config.DefaultConfig()
	if err != nil {
		log.Fatal(err)
	}
	cfg.Workflow.Mode = "todolist"
	cfg.Agents.Definitions = map[string]*config.AgentDefinition{
		"summarizer": {
			Description:  "Summarizes files and directories on request.",
			SystemPrompt: "You produce terse, factual summaries.",
			Tags:         []string{"summaries"},
		},
	}

	ctx := context.Background()
	rt, err := runtime.New(ctx, cfg, runtime.Options{})
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	result := rt.Orchestrator().HandleRequest(ctx,
		"List the Go files in the current directory and summarize what each one does.")
	fmt.Println(result.Response)
	if !result.Success {
		log.Fatalf("request failed: %s", result.Error)
	}

	stats, err := rt.Orchestrator().MemoryStats()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nConversation turns recorded: %d\n", stats.TotalTurns)
	for agentID, turns := range stats.TurnsByAgent {
		fmt.Printf("  %s: %d\n", agentID, turns)
	}
}
