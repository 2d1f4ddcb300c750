package agent

import (
	"context"

	"github.com/batonlabs/baton/pkg/reasoning"
)

// Agent is a runnable instance produced by the Factory. The reasoning
// engine, and through it the LLM, scheduler, registry and memory, is
// shared across instances; what varies per agent is data.
type Agent struct {
	identity     Identity
	capabilities Capabilities
	systemPrompt string
	engine       *reasoning.Engine
}

// ID returns the agent's uuid.
func (a *Agent) ID() string { return a.identity.AgentID }

// Name returns the agent's registered name.
func (a *Agent) Name() string { return a.identity.AgentName }

// Capabilities returns the capability set the agent was created with.
func (a *Agent) Capabilities() Capabilities { return a.capabilities }

// Run executes one task through the reasoning loop. systemPrompt
// overrides the registered prompt when non-empty; userPrompt carries
// prior context (such as accumulated workflow history) and task is the
// current objective. Failures are reported in the output, not as Go
// errors.
func (a *Agent) Run(ctx context.Context, task, systemPrompt, userPrompt string) reasoning.AgentOutput {
	prompt := systemPrompt
	if prompt == "" {
		prompt = a.systemPrompt
	}

	return a.engine.Execute(ctx, reasoning.ExecutionSession{
		AgentID:         a.identity.AgentID,
		AgentName:       a.identity.AgentName,
		Task:            task,
		SystemPrompt:    prompt,
		UserPrompt:      userPrompt,
		AuthorizedTools: a.capabilities.AuthorizedTools,
		MaxMemoryTurns:  a.capabilities.MaxMemoryTurns,
		MaxTurns:        a.capabilities.MaxReasoningTurns,
		Temperature:     a.capabilities.Temperature,
		MaxTokens:       a.capabilities.MaxTokens,
		Timeout:         a.capabilities.Timeout,
		ResponseFormat:  a.capabilities.ResponseFormat,
	})
}
