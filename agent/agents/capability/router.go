package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	contractx "github.com/quickserve/menuwise/agent/contract"
)

type routerImpl struct {
	runner compose.Runnable[map[string]any, routerLLMOutput]
}

type routerLLMOutput struct {
	Capability string `json:"capability"`
	Rationale  string `json:"rationale,omitempty"`
}

func newRouter(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*routerImpl, error) {
	runner, err := compileStructuredLLMGraph[routerLLMOutput](ctx, chatModel, systemPrompt, "router.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile router graph: %v", contractx.ErrOracleUnavailable, err)
	}
	return &routerImpl{runner: runner}, nil
}

// Route consults the model once. An answer that names no known capability
// comes back as ErrRoutingAmbiguous; the orchestrator decides the fallback.
func (r *routerImpl) Route(ctx context.Context, req contractx.Request) (contractx.Decision, error) {
	if strings.TrimSpace(req.Text) == "" {
		return contractx.Decision{}, fmt.Errorf("%w: request text is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"question":  req.Text,
		"has_image": req.ImagePath != "",
	}
	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: marshal router payload: %v", contractx.ErrValidation, err)
	}

	out, err := r.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: router invoke: %v", contractx.ErrOracleUnavailable, err)
	}

	capability := strings.ToLower(strings.TrimSpace(out.Capability))
	switch contractx.CapabilityID(capability) {
	case contractx.CapabilitySQL, contractx.CapabilityCompetitor:
		return contractx.Decision{
			Capability: contractx.CapabilityID(capability),
			Rationale:  strings.TrimSpace(out.Rationale),
		}, nil
	default:
		return contractx.Decision{}, fmt.Errorf("%w: capability=%q", contractx.ErrRoutingAmbiguous, out.Capability)
	}
}
