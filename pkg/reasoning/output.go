package reasoning

// Machine-readable failure kinds reported in AgentOutput.Error. Callers
// branch on these; the human explanation goes in Response.
const (
	// ErrEmptyLLMResponse marks a chat completion with no content.
	ErrEmptyLLMResponse = "empty_llm_response"

	// ErrMaxRetriesExceeded marks a run whose JSON-recovery budget ran
	// out before the model produced a parseable command.
	ErrMaxRetriesExceeded = "max_retries_exceeded"

	// ErrUserDenied marks a dangerous tool call vetoed at the
	// confirmation gate.
	ErrUserDenied = "user_denied"

	// ErrAgentDeclaredError marks an agent that gave up via task_error.
	ErrAgentDeclaredError = "agent_declared_error"

	// ErrMaxIterationsReached marks a loop stopped by its turn cap
	// before any tool produced a result.
	ErrMaxIterationsReached = "max_iterations_reached"

	// ErrUserInterrupted marks a run cut short by the user (SIGINT or a
	// cancelled context).
	ErrUserInterrupted = "user_interrupted"

	// ErrLLMFailure marks a transport or API error from the provider.
	ErrLLMFailure = "llm_error"

	// ErrMemoryFailure marks a conversation store error that prevented
	// the run from assembling its context.
	ErrMemoryFailure = "memory_error"
)

// CmdJSONError is the Cmd value for runs that never yielded a parseable
// tool command.
const CmdJSONError = "json_error"

// InteractionHandler asks the user to confirm a dangerous tool call
// before it is dispatched. Returning false vetoes the call. A nil
// handler denies everything, which keeps unattended runs safe.
type InteractionHandler func(toolName string, args map[string]any) bool

// AgentOutput is the result of one reasoning run. Failures are carried
// here rather than as Go errors so workflow code can record them and
// move on.
type AgentOutput struct {
	AgentID   string `json:"agent_id,omitempty"`
	AgentName string `json:"agent_name,omitempty"`

	// Success reports whether the run ended well: a terminal
	// task_success or tasks_completed, a conversational answer, or a
	// turn-capped run whose last tool call succeeded.
	Success bool `json:"success"`

	// Response is the user-visible outcome: accumulated tool output, a
	// conversational answer, or a failure explanation.
	Response string `json:"response"`

	// Error is the machine-readable failure kind. Empty on success.
	Error string `json:"error,omitempty"`

	// Cmd names the tool command that produced the outcome, or
	// CmdJSONError when no command could be parsed at all.
	Cmd string `json:"cmd,omitempty"`

	// Retries counts JSON-recovery round trips spent during the run.
	Retries int `json:"retries,omitempty"`

	// Turns counts tool dispatches made during the run.
	Turns int `json:"turns,omitempty"`

	// HaltWorkflow is set when the agent declared the entire workflow
	// finished (tasks_completed), not just its own task.
	HaltWorkflow bool `json:"halt_workflow,omitempty"`
}
