package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/quickserve/menuwise/agent/contract"
)

// RouteRequest consults the router once and pins the capability for the rest
// of the request. An ambiguous verdict falls back to the SQL agent so the
// request still gets a deterministic owner.
func RouteRequest(
	ctx context.Context,
	in *GraphState,
	router contractx.Router,
	nowFn func() time.Time,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	decision, err := router.Route(ctx, in.Request)
	switch {
	case err == nil:
	case errors.Is(err, contractx.ErrRoutingAmbiguous):
		log.Warn().
			Str("request_id", in.Request.ID).
			Err(err).
			Msg("router verdict ambiguous, falling back to sql capability")
		decision = contractx.Decision{
			Capability: contractx.CapabilitySQL,
			Rationale:  "fallback after ambiguous routing verdict",
		}
	default:
		return nil, &contractx.Failure{
			Reason: contractx.FailureInfrastructure,
			Detail: "routing failed",
			Cause:  err,
		}
	}

	if err := in.Conversation.AppendDecision(decision, nowFn().UTC()); err != nil {
		return nil, fmt.Errorf("append routing decision: %w", err)
	}

	in.Decision = decision
	return in, nil
}
