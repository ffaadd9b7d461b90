package contract

import "context"

// Router picks the capability agent for a request. It consults the model
// once; the decision is fixed for the remainder of the request.
type Router interface {
	Route(ctx context.Context, req Request) (Decision, error)
}

// Capability is a bounded unit of behavior that proposes tool calls and can
// emit a final answer. It never executes tools itself.
type Capability interface {
	ID() CapabilityID
	Step(ctx context.Context, req StepRequest) (StepResponse, error)
}

// Registry exposes the router and the fixed set of capability agents.
type Registry interface {
	Router() Router
	SQL() Capability
	Competitor() Capability
}

// ToolGateway executes proposed calls on behalf of the orchestration loop.
// Per-call failures come back as error ToolResults; only infrastructure
// problems surface as Go errors.
type ToolGateway interface {
	Execute(ctx context.Context, capability CapabilityID, calls []ToolCall) ([]ToolResult, error)
}
