package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/batonlabs/baton/pkg/config"
)

// RegisterBuiltins loads every built-in tool plus the control tools into
// the registry, configured from cfg. MCP servers are attached separately
// via AttachMCPServers so a slow or broken server cannot block startup of
// the local surface.
func RegisterBuiltins(registry *Registry, cfg config.ToolsConfig) error {
	cfg.SetDefaults()

	fileCfg := FileToolConfig{WorkingDir: cfg.WorkingDir}
	builtins := []Tool{
		NewReadFileTool(fileCfg),
		NewWriteFileTool(fileCfg),
		NewListDirTool(fileCfg),
		NewGrepSearchTool(fileCfg),
		NewExecuteCommandTool(CommandToolConfig{
			WorkingDir:     cfg.WorkingDir,
			DefaultTimeout: time.Duration(cfg.CommandTimeout) * time.Second,
			MaxTimeout:     time.Duration(cfg.MaxCommandTimeout) * time.Second,
			SafeEnvVars:    cfg.SafeEnvVars,
		}),
		NewFetchURLTool(WebToolConfig{
			Timeout: time.Duration(cfg.FetchTimeout) * time.Second,
		}),
		NewGitStatusTool(cfg.WorkingDir),
		NewGitDiffTool(cfg.WorkingDir),
		NewGitLogTool(cfg.WorkingDir),
		NewCodeCheckTool(cfg.WorkingDir),
		NewTodoWriteTool(),
	}

	for _, tool := range builtins {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register %s: %w", tool.Metadata().Name, err)
		}
	}

	return RegisterControlTools(registry)
}

// AttachMCPServers connects each configured MCP server and registers its
// tools. Connection failures are returned per server; tools already
// registered stay registered. The returned toolsets own the connections
// and must be closed on shutdown.
func AttachMCPServers(ctx context.Context, registry *Registry, servers []config.MCPServerConfig) ([]*MCPToolset, error) {
	var toolsets []*MCPToolset
	for _, serverCfg := range servers {
		toolset, err := NewMCPToolset(serverCfg)
		if err != nil {
			return toolsets, fmt.Errorf("invalid MCP server %q: %w", serverCfg.Name, err)
		}

		remoteTools, err := toolset.Tools(ctx)
		if err != nil {
			return toolsets, err
		}
		for _, tool := range remoteTools {
			if err := registry.Register(tool); err != nil {
				return toolsets, fmt.Errorf("failed to register %s: %w", tool.Metadata().Name, err)
			}
		}
		toolsets = append(toolsets, toolset)
	}
	return toolsets, nil
}
