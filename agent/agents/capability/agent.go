package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/quickserve/menuwise/agent/contract"
)

// agentImpl is a capability agent: it proposes tool calls or emits the final
// answer, and never touches the tool registry itself.
type agentImpl struct {
	id           contractx.CapabilityID
	toolRunner   compose.Runnable[map[string]any, *schema.Message]
	allowedTools map[string]struct{}
}

func newAgent(
	ctx context.Context,
	id contractx.CapabilityID,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools []*schema.ToolInfo,
) (*agentImpl, error) {
	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for capability=%s: %v", contractx.ErrOracleUnavailable, id, err)
	}

	toolRunner, err := compileToolPlanningGraph(ctx, toolModel, systemPrompt, string(id)+".turn_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile turn graph for capability=%s: %v", contractx.ErrOracleUnavailable, id, err)
	}

	allowedTools := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			continue
		}
		allowedTools[t.Name] = struct{}{}
	}

	return &agentImpl{
		id:           id,
		toolRunner:   toolRunner,
		allowedTools: allowedTools,
	}, nil
}

func (a *agentImpl) ID() contractx.CapabilityID {
	return a.id
}

func (a *agentImpl) Step(ctx context.Context, req contractx.StepRequest) (contractx.StepResponse, error) {
	payload := map[string]any{
		"question":     req.Request.Text,
		"turn":         req.Turn,
		"tool_results": req.ToolResults,
	}
	if req.Request.ImagePath != "" {
		payload["image_path"] = req.Request.ImagePath
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.StepResponse{}, fmt.Errorf("%w: marshal step payload: %v", contractx.ErrValidation, err)
	}

	msg, err := a.toolRunner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.StepResponse{}, fmt.Errorf("%w: capability=%s invoke: %v", contractx.ErrOracleUnavailable, a.id, err)
	}
	if msg == nil {
		return contractx.StepResponse{}, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}

	calls, err := toToolCalls(msg.ToolCalls)
	if err != nil {
		return contractx.StepResponse{}, err
	}

	if len(calls) > 0 {
		for _, call := range calls {
			if _, ok := a.allowedTools[call.Tool]; !ok {
				return contractx.StepResponse{}, fmt.Errorf("%w: tool=%s is not allowed for capability=%s",
					contractx.ErrSchemaViolation, call.Tool, a.id)
			}
		}
		return contractx.StepResponse{ToolCalls: calls}, nil
	}

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return contractx.StepResponse{}, fmt.Errorf("%w: model returned neither tool calls nor an answer", contractx.ErrSchemaViolation)
	}
	return contractx.StepResponse{Final: &contractx.FinalAnswer{Text: content}}, nil
}

func toToolCalls(calls []schema.ToolCall) ([]contractx.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]contractx.ToolCall, 0, len(calls))
	for _, call := range calls {
		tool := strings.TrimSpace(call.Function.Name)
		if tool == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, tool, err)
			}
		}

		out = append(out, contractx.ToolCall{
			Tool: tool,
			Args: args,
		})
	}
	return out, nil
}
