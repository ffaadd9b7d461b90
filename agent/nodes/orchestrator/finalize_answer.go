package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/quickserve/menuwise/agent/contract"
)

func FinalizeAnswer(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Final == nil {
		return GraphOutput{}, fmt.Errorf("%w: loop finished without a final answer", contractx.ErrSchemaViolation)
	}

	answer := strings.TrimSpace(in.Final.Text)
	if answer == "" {
		return GraphOutput{}, fmt.Errorf("%w: final answer is empty", contractx.ErrSchemaViolation)
	}

	return GraphOutput{
		RequestID:  in.Request.ID,
		Capability: in.Decision.Capability,
		Answer:     answer,
		Turns:      in.Turns,
	}, nil
}
