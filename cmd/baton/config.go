package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/config/provider"
)

// loadRootConfig loads the configuration for a command. Without a path
// the fully defaulted config is used, which still needs an API key from
// the environment to reach the LLM. The returned loader is nil in that
// case; otherwise the caller owns closing it.
func loadRootConfig(ctx context.Context, path string, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	if path == "" {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return nil, nil, err
		}
		return cfg, nil, nil
	}

	p, err := provider.New(provider.Options{Type: provider.TypeFile, Path: path})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open config: %w", err)
	}

	loader := config.NewLoader(p, opts...)
	cfg, err := loader.Load(ctx)
	if err != nil {
		loader.Close()
		return nil, nil, err
	}

	slog.Info("Loaded configuration", "path", path)
	return cfg, loader, nil
}
