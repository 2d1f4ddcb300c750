package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/batonlabs/baton/pkg/cli"
	"github.com/batonlabs/baton/pkg/reasoning"
	"github.com/batonlabs/baton/pkg/runtime"
)

// RunCmd executes a single request and exits.
type RunCmd struct {
	Input string `arg:"" help:"Request to execute."`
	Yes   bool   `short:"y" help:"Approve gated tool calls without prompting."`
	JSON  bool   `help:"Print the full result as JSON."`
}

func (c *RunCmd) Run(root *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := loadRootConfig(ctx, root.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	rt, err := runtime.New(ctx, cfg, runtime.Options{Interaction: c.interaction()})
	if err != nil {
		return err
	}
	defer rt.Close()

	res := rt.Orchestrator().HandleRequest(ctx, c.Input)
	if ctx.Err() != nil {
		// A fresh context so the interrupt still reaches memory.
		res = rt.Orchestrator().RecordInterrupt(context.Background())
		fmt.Fprintln(os.Stderr, res.Response)
		return errInterrupted
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Println(res.Response)
	}

	if !res.Success {
		return fmt.Errorf("request failed (%s)", res.Error)
	}
	return nil
}

// interaction picks the approval strategy: --yes approves everything,
// a terminal prompts, anything else denies gated tools.
func (c *RunCmd) interaction() reasoning.InteractionHandler {
	if c.Yes {
		return func(string, map[string]any) bool { return true }
	}
	return cli.StdinApprover()
}
