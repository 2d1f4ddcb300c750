package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/batonlabs/baton/pkg/cli"
	"github.com/batonlabs/baton/pkg/runtime"
)

// ChatCmd runs an interactive terminal session against the orchestrator.
type ChatCmd struct {
	Yes bool `short:"y" help:"Approve gated tool calls without prompting."`
}

func (c *ChatCmd) Run(root *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := loadRootConfig(ctx, root.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	interaction := cli.StdinApprover()
	if c.Yes {
		interaction = func(string, map[string]any) bool { return true }
	}

	rt, err := runtime.New(ctx, cfg, runtime.Options{Interaction: interaction})
	if err != nil {
		return err
	}
	defer rt.Close()

	chat := cli.NewChat(rt.Orchestrator(), os.Stdin, os.Stdout)
	if err := chat.Run(ctx); err != nil {
		if ctx.Err() != nil {
			rt.Orchestrator().RecordInterrupt(context.Background())
			return errInterrupted
		}
		return err
	}
	return nil
}
