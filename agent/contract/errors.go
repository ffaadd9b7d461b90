package contract

import "errors"

var (
	// ErrUnknownTool marks a call to a tool name the registry does not know.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrToolExecution marks a recoverable tool failure; it is reported back
	// into the conversation as an error ToolResult, never raised to the caller.
	ErrToolExecution = errors.New("tool execution failed")
	// ErrRoutingAmbiguous marks a router verdict that names no known
	// capability; the loop defaults to the SQL agent instead of aborting.
	ErrRoutingAmbiguous = errors.New("routing decision is ambiguous")
	// ErrTurnBudgetExhausted is terminal: the loop gave up before a final answer.
	ErrTurnBudgetExhausted = errors.New("turn budget exhausted")
	// ErrOracleUnavailable is terminal: the model endpoint could not be reached.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
)
