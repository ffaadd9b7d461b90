package contract

// CapabilityID names one of the agents the supervisor can route a request to.
type CapabilityID string

const (
	CapabilitySQL        CapabilityID = "sql"
	CapabilityCompetitor CapabilityID = "competitor"
)

// AgentType selects a model configuration; the router is an agent too even
// though it is not a routable capability.
type AgentType string

const (
	AgentTypeRouter     AgentType = "router"
	AgentTypeSQL        AgentType = "sql"
	AgentTypeCompetitor AgentType = "competitor"
)

// Request is the immutable input record for one user question.
type Request struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ImagePath string `json:"image_path,omitempty"`
}

// Decision is the supervisor's routing verdict for a request.
type Decision struct {
	Capability CapabilityID `json:"capability"`
	Rationale  string       `json:"rationale,omitempty"`
}

// ToolCall is a proposal produced by a capability agent. It is executed by
// the orchestration loop through the tool gateway, never by the agent itself.
type ToolCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the outcome of exactly one ToolCall. A non-empty Error marks
// a recoverable failure that is fed back to the model for self-correction.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the call succeeded.
func (r ToolResult) OK() bool {
	return r.Error == ""
}

// FinalAnswer terminates a conversation.
type FinalAnswer struct {
	Text string `json:"text"`
}

// StepRequest carries everything a capability agent may consult on one turn.
// ToolResults accumulates across turns so the model sees prior outcomes.
type StepRequest struct {
	Request     Request      `json:"request"`
	Turn        int          `json:"turn"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// StepResponse is either one or more tool-call proposals or a final answer,
// never both.
type StepResponse struct {
	ToolCalls []ToolCall   `json:"tool_calls,omitempty"`
	Final     *FinalAnswer `json:"final,omitempty"`
}

// FailureReason classifies a terminal loop failure for the caller-facing
// layer, which renders an apology or retry prompt instead of a stack trace.
type FailureReason string

const (
	FailureTurnBudget     FailureReason = "turn_budget_exhausted"
	FailureInfrastructure FailureReason = "infrastructure"
)

// Failure is the structured terminal error returned by the orchestration
// loop. It wraps the underlying cause so errors.Is keeps working.
type Failure struct {
	Reason FailureReason
	Detail string
	Cause  error
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return string(f.Reason) + ": " + f.Detail
}

func (f *Failure) Unwrap() error {
	return f.Cause
}
