package config

import "fmt"

// ToolsConfig configures the built-in tool surface and optional MCP
// tool servers.
type ToolsConfig struct {
	// WorkingDir is the base directory for file and command tools.
	// Defaults to the process working directory.
	WorkingDir string `yaml:"working_dir,omitempty" json:"working_dir,omitempty" jsonschema:"title=Working Directory,description=Base directory for file and command tools"`

	// CommandTimeout is the default execute_command timeout in seconds.
	CommandTimeout int `yaml:"command_timeout,omitempty" json:"command_timeout,omitempty" jsonschema:"title=Command Timeout,description=Default command timeout in seconds,minimum=1,default=30"`

	// MaxCommandTimeout caps the per-call timeout override in seconds.
	MaxCommandTimeout int `yaml:"max_command_timeout,omitempty" json:"max_command_timeout,omitempty" jsonschema:"title=Max Command Timeout,description=Upper bound for per-call timeout,minimum=1,default=300"`

	// FetchTimeout is the fetch_url timeout in seconds.
	FetchTimeout int `yaml:"fetch_timeout,omitempty" json:"fetch_timeout,omitempty" jsonschema:"title=Fetch Timeout,description=HTTP fetch timeout in seconds,minimum=1,default=10"`

	// SafeEnvVars are the only environment variables forwarded to
	// executed commands beyond PATH and HOME.
	SafeEnvVars []string `yaml:"safe_env_vars,omitempty" json:"safe_env_vars,omitempty" jsonschema:"title=Safe Env Vars,description=Environment variables forwarded to commands"`

	// MCP lists external tool servers to attach at startup.
	MCP []MCPServerConfig `yaml:"mcp,omitempty" json:"mcp,omitempty" jsonschema:"title=MCP Servers,description=External MCP tool servers"`
}

// MCPServerConfig configures one MCP (Model Context Protocol) tool server.
type MCPServerConfig struct {
	// Name prefixes the server's tools in the registry.
	Name string `yaml:"name" json:"name"`

	// Command starts a stdio server, e.g. "npx".
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Args for the stdio command.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env for the stdio command.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// URL of a remote server. Mutually exclusive with Command.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Transport: stdio or streamable-http. Auto-detected when empty.
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty" jsonschema:"enum=stdio,enum=streamable-http"`

	// Filter limits which tools are exposed from the server.
	Filter []string `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// SetDefaults applies tool defaults.
func (c *ToolsConfig) SetDefaults() {
	if c.WorkingDir == "" {
		c.WorkingDir = "."
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 30
	}
	if c.MaxCommandTimeout == 0 {
		c.MaxCommandTimeout = 300
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 10
	}
	for i := range c.MCP {
		c.MCP[i].SetDefaults()
	}
}

// Validate checks the tool configuration.
func (c *ToolsConfig) Validate() error {
	if c.CommandTimeout < 1 {
		return fmt.Errorf("command_timeout must be positive, got %d", c.CommandTimeout)
	}
	if c.MaxCommandTimeout < c.CommandTimeout {
		return fmt.Errorf("max_command_timeout %d below command_timeout %d", c.MaxCommandTimeout, c.CommandTimeout)
	}
	if c.FetchTimeout < 1 {
		return fmt.Errorf("fetch_timeout must be positive, got %d", c.FetchTimeout)
	}
	seen := make(map[string]bool, len(c.MCP))
	for i := range c.MCP {
		if err := c.MCP[i].Validate(); err != nil {
			return fmt.Errorf("mcp[%d]: %w", i, err)
		}
		if seen[c.MCP[i].Name] {
			return fmt.Errorf("mcp[%d]: duplicate server name %q", i, c.MCP[i].Name)
		}
		seen[c.MCP[i].Name] = true
	}
	return nil
}

// SetDefaults auto-detects the transport from the populated fields.
func (c *MCPServerConfig) SetDefaults() {
	if c.Transport == "" {
		if c.URL != "" {
			c.Transport = "streamable-http"
		} else if c.Command != "" {
			c.Transport = "stdio"
		}
	}
}

// Validate checks one MCP server entry.
func (c *MCPServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Command == "" && c.URL == "" {
		return fmt.Errorf("server %q requires command or url", c.Name)
	}
	if c.Command != "" && c.URL != "" {
		return fmt.Errorf("server %q: command and url are mutually exclusive", c.Name)
	}
	switch c.Transport {
	case "", "stdio", "streamable-http":
	default:
		return fmt.Errorf("server %q: unknown transport %q", c.Name, c.Transport)
	}
	return nil
}
