package orchestratornode

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/quickserve/menuwise/agent/contract"
)

// RunTurns drives the dispatch loop: consult the pinned capability agent,
// execute every proposed tool call through the gateway, feed the outcomes
// back, and stop on a final answer. The loop itself never interprets tool
// semantics.
func RunTurns(
	ctx context.Context,
	in *GraphState,
	models contractx.Registry,
	tools contractx.ToolGateway,
	maxTurns int,
	nowFn func() time.Time,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	capability, err := pickCapability(in.Decision, models)
	if err != nil {
		return nil, err
	}

	results := make([]contractx.ToolResult, 0, 8)

	for turn := 1; turn <= maxTurns; turn++ {
		in.Turns = turn

		resp, err := capability.Step(ctx, contractx.StepRequest{
			Request:     in.Request,
			Turn:        turn,
			ToolResults: results,
		})
		if err != nil {
			return nil, &contractx.Failure{
				Reason: contractx.FailureInfrastructure,
				Detail: fmt.Sprintf("capability=%s step failed on turn %d", capability.ID(), turn),
				Cause:  err,
			}
		}

		if resp.Final != nil {
			if err := in.Conversation.AppendFinalAnswer(*resp.Final, nowFn().UTC()); err != nil {
				return nil, fmt.Errorf("append final answer: %w", err)
			}
			in.Final = resp.Final
			return in, nil
		}

		for _, call := range resp.ToolCalls {
			if err := in.Conversation.AppendToolCall(call, nowFn().UTC()); err != nil {
				return nil, fmt.Errorf("append tool call %s: %w", call.Tool, err)
			}
		}

		batch, err := tools.Execute(ctx, capability.ID(), resp.ToolCalls)
		if err != nil {
			return nil, &contractx.Failure{
				Reason: contractx.FailureInfrastructure,
				Detail: fmt.Sprintf("tool execution failed on turn %d", turn),
				Cause:  err,
			}
		}

		for _, res := range batch {
			if err := in.Conversation.AppendToolResult(res, nowFn().UTC()); err != nil {
				return nil, fmt.Errorf("append tool result %s: %w", res.Tool, err)
			}
		}
		results = append(results, batch...)
	}

	return nil, &contractx.Failure{
		Reason: contractx.FailureTurnBudget,
		Detail: fmt.Sprintf("no final answer after %d turns", maxTurns),
		Cause:  contractx.ErrTurnBudgetExhausted,
	}
}

func pickCapability(decision contractx.Decision, models contractx.Registry) (contractx.Capability, error) {
	switch decision.Capability {
	case contractx.CapabilitySQL:
		return models.SQL(), nil
	case contractx.CapabilityCompetitor:
		return models.Competitor(), nil
	default:
		return nil, ErrNoDecision
	}
}
