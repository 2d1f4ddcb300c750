// Package config defines the baton configuration surface and its processing
// pipeline: decode, expand environment variables, apply defaults, validate.
package config

import (
	"fmt"
)

// Config is the root configuration.
type Config struct {
	// LLM configures the model endpoint and generation defaults.
	LLM LLMConfig `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=LLM endpoint and generation defaults"`

	// Agents configures capability defaults and extra agent definitions.
	Agents AgentsConfig `yaml:"agents,omitempty" json:"agents,omitempty" jsonschema:"title=Agents,description=Agent capability defaults and definitions"`

	// Tools configures the tool surface.
	Tools ToolsConfig `yaml:"tools,omitempty" json:"tools,omitempty" jsonschema:"title=Tools,description=Tool execution settings"`

	// Memory configures conversation storage.
	Memory MemoryConfig `yaml:"memory,omitempty" json:"memory,omitempty" jsonschema:"title=Memory,description=Conversation memory settings"`

	// Workflow configures planning and task execution limits.
	Workflow WorkflowConfig `yaml:"workflow,omitempty" json:"workflow,omitempty" jsonschema:"title=Workflow,description=Planning and execution limits"`

	// Server configures the inspection HTTP server.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server,description=Inspection HTTP server"`

	// Observability configures tracing and metrics.
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability,description=Tracing and metrics"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" jsonschema:"title=Logging,description=Logger level and format"`
}

// ProcessConfigPipeline applies defaults and validates the config.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: config cannot be nil")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: validation failed: %w", err)
	}

	return cfg, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Agents.SetDefaults()
	c.Tools.SetDefaults()
	c.Memory.SetDefaults()
	c.Workflow.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Agents.Validate(); err != nil {
		return fmt.Errorf("agents: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	if err := c.Workflow.Validate(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// AgentsConfig holds capability defaults plus extra agent definitions
// registered at startup alongside the built-in planner/exec/default agents.
type AgentsConfig struct {
	// MaxReasoningTurns default for agents that do not override it (1-100).
	MaxReasoningTurns int `yaml:"max_reasoning_turns,omitempty" json:"max_reasoning_turns,omitempty" jsonschema:"minimum=1,maximum=100,default=10"`

	// MaxMemoryTurns default for agents that do not override it (0-1000).
	MaxMemoryTurns int `yaml:"max_memory_turns,omitempty" json:"max_memory_turns,omitempty" jsonschema:"minimum=0,maximum=1000,default=50"`

	// Definitions adds named agents beyond the built-in set.
	Definitions map[string]*AgentDefinition `yaml:"definitions,omitempty" json:"definitions,omitempty"`
}

// AgentDefinition declares an agent in config. Specialization is data:
// a system prompt plus a tool whitelist, never a subtype.
type AgentDefinition struct {
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`

	// AuthorizedTools whitelist. Empty means all tools permitted.
	AuthorizedTools []string `yaml:"authorized_tools,omitempty" json:"authorized_tools,omitempty"`

	MaxReasoningTurns int `yaml:"max_reasoning_turns,omitempty" json:"max_reasoning_turns,omitempty"`

	MaxMemoryTurns int `yaml:"max_memory_turns,omitempty" json:"max_memory_turns,omitempty"`

	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	ResponseFormat string `yaml:"response_format,omitempty" json:"response_format,omitempty" jsonschema:"enum=json,enum=default"`
}

// SetDefaults applies capability defaults.
func (c *AgentsConfig) SetDefaults() {
	if c.MaxReasoningTurns == 0 {
		c.MaxReasoningTurns = 10
	}
	if c.MaxMemoryTurns == 0 {
		c.MaxMemoryTurns = 50
	}
	if c.Definitions == nil {
		c.Definitions = make(map[string]*AgentDefinition)
	}
}

// Validate checks capability bounds.
func (c *AgentsConfig) Validate() error {
	if c.MaxReasoningTurns < 1 || c.MaxReasoningTurns > 100 {
		return fmt.Errorf("max_reasoning_turns must be 1-100, got %d", c.MaxReasoningTurns)
	}
	if c.MaxMemoryTurns < 0 || c.MaxMemoryTurns > 1000 {
		return fmt.Errorf("max_memory_turns must be 0-1000, got %d", c.MaxMemoryTurns)
	}
	for name, def := range c.Definitions {
		if def == nil {
			return fmt.Errorf("definition %q is empty", name)
		}
		if def.ResponseFormat != "" && def.ResponseFormat != "json" && def.ResponseFormat != "default" {
			return fmt.Errorf("definition %q: response_format must be json or default", name)
		}
		if def.Temperature != nil && (*def.Temperature < 0 || *def.Temperature > 2) {
			return fmt.Errorf("definition %q: temperature must be 0-2", name)
		}
	}
	return nil
}

// WorkflowConfig bounds planning and execution.
type WorkflowConfig struct {
	// Mode selects the planning style: "tasks" (linear task list) or
	// "todolist" (mutable dependency-aware step list).
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty" jsonschema:"enum=tasks,enum=todolist,default=tasks"`

	// MaxRetries bounds JSON-recovery retries per reasoning turn.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"minimum=0,default=1"`

	// MaxResponseChars aborts a task whose response exceeds this length.
	MaxResponseChars int `yaml:"max_response_chars,omitempty" json:"max_response_chars,omitempty" jsonschema:"minimum=1,default=1000"`

	// MaxIterations caps the todolist executor loop.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty" jsonschema:"minimum=1,default=20"`
}

// SetDefaults applies workflow defaults.
func (c *WorkflowConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "tasks"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 1
	}
	if c.MaxResponseChars == 0 {
		c.MaxResponseChars = 1000
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 20
	}
}

// Validate checks workflow bounds.
func (c *WorkflowConfig) Validate() error {
	if c.Mode != "tasks" && c.Mode != "todolist" {
		return fmt.Errorf("mode must be tasks or todolist, got %q", c.Mode)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.MaxResponseChars < 1 {
		return fmt.Errorf("max_response_chars must be positive")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive")
	}
	return nil
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`

	// Format: simple, verbose, json.
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=simple,enum=verbose,enum=json,default=simple"`

	// File redirects logs to a file when set.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// SetDefaults applies logging defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks logging settings.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	switch c.Format {
	case "simple", "verbose", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}

// ObservabilityConfig configures tracing and metrics.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	ExporterType string  `yaml:"exporter_type,omitempty" json:"exporter_type,omitempty" jsonschema:"enum=otlp,enum=stdout,default=otlp"`
	EndpointURL  string  `yaml:"endpoint_url,omitempty" json:"endpoint_url,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"minimum=0,maximum=1,default=1"`
	ServiceName  string  `yaml:"service_name,omitempty" json:"service_name,omitempty" jsonschema:"default=baton"`
}

// MetricsConfig configures the Prometheus metrics exporter.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// SetDefaults applies observability defaults.
func (c *ObservabilityConfig) SetDefaults() {
	if c.Tracing.ExporterType == "" {
		c.Tracing.ExporterType = "otlp"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "baton"
	}
	if c.Tracing.EndpointURL == "" {
		c.Tracing.EndpointURL = "localhost:4317"
	}
}

// Validate checks observability settings.
func (c *ObservabilityConfig) Validate() error {
	if c.Tracing.ExporterType != "otlp" && c.Tracing.ExporterType != "stdout" {
		return fmt.Errorf("tracing exporter_type must be otlp or stdout, got %q", c.Tracing.ExporterType)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing sampling_rate must be 0-1, got %f", c.Tracing.SamplingRate)
	}
	return nil
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}
