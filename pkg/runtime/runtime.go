// Package runtime assembles a working baton process from configuration:
// logger, observability, memory backend, tool surface, LLM client,
// agent catalog, and the orchestrator on top. The CLI and the server
// are thin layers over a Runtime.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/batonlabs/baton/pkg/agent"
	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/llm"
	"github.com/batonlabs/baton/pkg/logger"
	"github.com/batonlabs/baton/pkg/memory"
	"github.com/batonlabs/baton/pkg/observability"
	"github.com/batonlabs/baton/pkg/orchestrator"
	"github.com/batonlabs/baton/pkg/reasoning"
	"github.com/batonlabs/baton/pkg/tools"
	"github.com/batonlabs/baton/pkg/utils"
	"github.com/batonlabs/baton/pkg/vector"
)

// Options tune the assembly beyond what config expresses.
type Options struct {
	// Interaction approves dangerous tool calls. Nil denies them all,
	// the right default for unattended runs.
	Interaction reasoning.InteractionHandler

	// LLMOptions override config-file values, e.g. from CLI flags.
	LLMOptions []llm.Option
}

// Runtime holds one assembled process.
type Runtime struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	agents   agent.Repository
	memory   *memory.Manager
	client   *llm.Client
	registry *tools.Registry
	toolsets []*tools.MCPToolset
	obs      *observability.Manager
	logClose func()
}

// New builds a runtime from cfg. On error, everything already started
// is torn down again.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	cfg, err := config.ProcessConfigPipeline(cfg)
	if err != nil {
		return nil, err
	}

	logClose, err := initLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{cfg: cfg, logClose: logClose}

	obs := observability.NewManager(observability.Config{
		Tracing: observability.TracerConfig{
			Enabled:      cfg.Observability.Tracing.Enabled,
			ExporterType: cfg.Observability.Tracing.ExporterType,
			EndpointURL:  cfg.Observability.Tracing.EndpointURL,
			SamplingRate: cfg.Observability.Tracing.SamplingRate,
			ServiceName:  cfg.Observability.Tracing.ServiceName,
		},
		Metrics: observability.MetricsConfig{Enabled: cfg.Observability.Metrics.Enabled},
	})
	if err := obs.Initialize(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("observability: %w", err)
	}
	rt.obs = obs

	repo, err := buildMemoryRepository(&cfg.Memory)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("memory backend: %w", err)
	}
	mem, err := memory.NewManager(repo, cfg.Memory.CacheSize)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("memory: %w", err)
	}
	rt.memory = mem

	client := llm.New(&cfg.LLM, opts.LLMOptions...)
	rt.client = client

	if lt := cfg.Memory.LongTerm; lt != nil && lt.Enabled {
		store, err := vector.NewChromemStore(vector.Config{
			PersistPath: lt.PersistPath,
			Compress:    lt.Compress,
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("vector store: %w", err)
		}
		mem.EnableRecall(store, client, lt)
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, cfg.Tools); err != nil {
		rt.Close()
		return nil, fmt.Errorf("tools: %w", err)
	}
	rt.registry = registry

	toolsets, err := tools.AttachMCPServers(ctx, registry, cfg.Tools.MCP)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("mcp: %w", err)
	}
	rt.toolsets = toolsets

	factory, err := agent.NewFactory(agent.FactoryDeps{
		LLM:         client,
		Scheduler:   tools.NewScheduler(registry, 0),
		Registry:    registry,
		Memory:      mem,
		Interaction: opts.Interaction,
		MaxRetries:  cfg.Workflow.MaxRetries,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("factory: %w", err)
	}

	agents := agent.NewInMemoryRepository()
	if err := registerAgents(agents, cfg); err != nil {
		rt.Close()
		return nil, fmt.Errorf("agents: %w", err)
	}
	rt.agents = agents

	orch, err := orchestrator.New(orchestrator.Deps{
		Memory:  mem,
		Agents:  agents,
		Factory: factory,
		Config:  cfg.Workflow,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	rt.orch = orch

	agentCount, _ := agents.Count()
	slog.Info("Runtime ready",
		"mode", cfg.Workflow.Mode,
		"model", client.Model(),
		"memory_backend", cfg.Memory.Backend,
		"tools", registry.Count(),
		"agents", agentCount)

	return rt, nil
}

// Orchestrator returns the request entry point.
func (r *Runtime) Orchestrator() *orchestrator.Orchestrator {
	return r.orch
}

// Config returns the processed configuration.
func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Agents returns the agent catalog.
func (r *Runtime) Agents() agent.Repository {
	return r.agents
}

// Memory returns the conversation store.
func (r *Runtime) Memory() *memory.Manager {
	return r.memory
}

// LLM returns the model client.
func (r *Runtime) LLM() *llm.Client {
	return r.client
}

// Tools returns the tool registry.
func (r *Runtime) Tools() *tools.Registry {
	return r.registry
}

// Close tears the runtime down: MCP servers, memory backend and vector
// store, trace exporter, log file. Safe on a partially built runtime.
func (r *Runtime) Close() error {
	var firstErr error

	for _, ts := range r.toolsets {
		if err := ts.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mcp toolset: %w", err)
		}
	}
	if r.memory != nil {
		if err := r.memory.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("memory: %w", err)
		}
	}
	if r.obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.obs.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("observability: %w", err)
		}
	}
	if r.logClose != nil {
		r.logClose()
	}
	return firstErr
}

func initLogger(cfg config.LoggingConfig) (func(), error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	output := os.Stderr
	closer := func() {}
	if cfg.File != "" {
		file, cleanup, err := logger.OpenLogFile(cfg.File)
		if err != nil {
			return nil, err
		}
		output, closer = file, cleanup
	}

	logger.Init(level, output, cfg.Format)
	return closer, nil
}

func buildMemoryRepository(cfg *config.MemoryConfig) (memory.Repository, error) {
	if cfg.IsSQL() {
		if cfg.Database.DriverName() == "sqlite3" {
			if err := utils.EnsureParentDir(cfg.Database.DSN()); err != nil {
				return nil, err
			}
		}
		return memory.NewSQLRepositoryFromConfig(cfg.Database)
	}
	return memory.NewInMemoryRepository(), nil
}
