package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/batonlabs/baton/pkg/auth"
	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/runtime"
	"github.com/batonlabs/baton/pkg/server"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd starts the inspection HTTP server around the orchestrator.
type ServeCmd struct {
	Host  string `help:"Bind host (overrides config)."`
	Port  int    `help:"Bind port (overrides config)."`
	Watch bool   `help:"Rebuild and restart when the config file changes."`
}

func (c *ServeCmd) Run(root *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Watch && root.Config == "" {
		return fmt.Errorf("--watch requires --config")
	}

	// Rapid edits collapse into one pending reload.
	reloads := make(chan *config.Config, 1)
	onChange := config.WithOnChange(func(cfg *config.Config) {
		select {
		case reloads <- cfg:
		default:
		}
	})

	cfg, loader, err := loadRootConfig(ctx, root.Config, onChange)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	if c.Watch {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch stopped", "error", err)
			}
		}()
	}

	for {
		next, err := c.serveOnce(ctx, cfg, reloads)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		cfg = next
		slog.Info("Configuration changed, restarting server")
	}
}

// serveOnce builds a runtime and server from cfg and runs until the
// context is cancelled or a reload arrives. A non-nil return config
// means "restart with this".
func (c *ServeCmd) serveOnce(ctx context.Context, cfg *config.Config, reloads <-chan *config.Config) (*config.Config, error) {
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	rt, err := runtime.New(ctx, cfg, runtime.Options{})
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	validator, err := auth.FromConfig(ctx, cfg.Server.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	srv, err := server.New(cfg.Server, server.Deps{
		Runner:    rt.Orchestrator(),
		Agents:    rt.Agents(),
		Memory:    rt.Memory(),
		Validator: validator,
	})
	if err != nil {
		return nil, err
	}

	printServeInfo(srv.Address(), validator != nil)

	var next *config.Config
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case next = <-reloads:
		}
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return next, nil
}

func printServeInfo(addr string, authenticated bool) {
	fmt.Printf("\nbaton server listening on http://%s\n", addr)
	fmt.Printf("  Health:   http://%s/healthz\n", addr)
	fmt.Printf("  Agents:   http://%s/v1/agents\n", addr)
	fmt.Printf("  Requests: http://%s/v1/requests\n", addr)
	fmt.Printf("  Metrics:  http://%s/metrics\n", addr)
	if authenticated {
		fmt.Println("  Auth:     bearer token required under /v1")
	}
	fmt.Println("\nPress Ctrl+C to stop")
}
