package observability

const (
	AttrServiceName     = "service.name"
	AttrAgentID         = "agent.id"
	AttrAgentModel      = "agent.model"
	AttrToolName        = "tool.name"
	AttrTaskStep        = "task.step"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"

	SpanAgentTurn     = "agent.turn"
	SpanLLMRequest    = "agent.llm_request"
	SpanToolExecution = "agent.tool_execution"
	SpanTaskRun       = "workflow.task"
	SpanWorkflowRun   = "workflow.run"

	DefaultServiceName = "baton"
)
