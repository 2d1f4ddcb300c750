package runtime

import (
	"fmt"

	"github.com/batonlabs/baton/pkg/agent"
	"github.com/batonlabs/baton/pkg/config"
	"github.com/batonlabs/baton/pkg/prompt"
	"github.com/batonlabs/baton/pkg/workflow"
)

// registerAgents seeds the catalog with the built-in planner, executor
// and fallback agents, then adds every definition from config.
func registerAgents(repo agent.Repository, cfg *config.Config) error {
	builtins := []struct {
		name        string
		description string
		promptID    prompt.ID
		format      string
	}{
		{
			name:        workflow.PlannerAgentName,
			description: "Breaks a user request into an ordered list of executable tasks.",
			promptID:    prompt.PromptTasksPlanner,
			format:      "json",
		},
		{
			name:        workflow.TodoAgentName,
			description: "Plans and revises a dependency-aware todo list for a request.",
			promptID:    prompt.PromptTodoPlanner,
			format:      "json",
		},
		{
			name:        workflow.ExecAgentName,
			description: "Executes one task at a time using the registered tools.",
			promptID:    prompt.PromptExecAgent,
			format:      "json",
		},
		{
			name:        workflow.DefaultAgentName,
			description: "Answers requests directly when no plan can be made.",
			promptID:    prompt.PromptDefault,
			format:      "default",
		},
	}

	for _, b := range builtins {
		text, err := prompt.PromptByID(b.promptID)
		if err != nil {
			return err
		}
		reg, err := agent.NewRegisteredAgent(b.name, agent.Capabilities{
			Description:       b.description,
			SystemPrompt:      text,
			MaxReasoningTurns: cfg.Agents.MaxReasoningTurns,
			MaxMemoryTurns:    cfg.Agents.MaxMemoryTurns,
			Temperature:       *cfg.LLM.Temperature,
			MaxTokens:         cfg.LLM.MaxTokens,
			ResponseFormat:    b.format,
		})
		if err != nil {
			return fmt.Errorf("builtin agent %s: %w", b.name, err)
		}
		if err := repo.Save(reg); err != nil {
			return fmt.Errorf("builtin agent %s: %w", b.name, err)
		}
	}

	for name, def := range cfg.Agents.Definitions {
		reg, err := agent.NewRegisteredAgent(name, capsFromDefinition(def, cfg))
		if err != nil {
			return fmt.Errorf("agent %s: %w", name, err)
		}
		if err := repo.Save(reg); err != nil {
			return fmt.Errorf("agent %s: %w", name, err)
		}
	}
	return nil
}

// capsFromDefinition fills a definition's gaps from the config-wide
// defaults. A zero max_memory_turns in a definition means "default",
// not "no memory"; agents that want no memory lower the global default.
func capsFromDefinition(def *config.AgentDefinition, cfg *config.Config) agent.Capabilities {
	caps := agent.Capabilities{
		Description:        def.Description,
		SystemPrompt:       def.SystemPrompt,
		AuthorizedTools:    def.AuthorizedTools,
		MaxReasoningTurns:  def.MaxReasoningTurns,
		MaxMemoryTurns:     def.MaxMemoryTurns,
		SpecializationTags: def.Tags,
		Temperature:        *cfg.LLM.Temperature,
		MaxTokens:          def.MaxTokens,
		ResponseFormat:     def.ResponseFormat,
	}
	if caps.MaxReasoningTurns == 0 {
		caps.MaxReasoningTurns = cfg.Agents.MaxReasoningTurns
	}
	if caps.MaxMemoryTurns == 0 {
		caps.MaxMemoryTurns = cfg.Agents.MaxMemoryTurns
	}
	if def.Temperature != nil {
		caps.Temperature = *def.Temperature
	}
	if caps.MaxTokens == 0 {
		caps.MaxTokens = cfg.LLM.MaxTokens
	}
	if caps.ResponseFormat == "" {
		caps.ResponseFormat = "default"
	}
	return caps
}
