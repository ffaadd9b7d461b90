package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/quickserve/menuwise/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileAskGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now, o.newID)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("route_request",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RouteRequest(ctx, in, o.models.Router(), o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node route_request: %w", err)
	}

	if err := graph.AddLambdaNode("run_turns",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunTurns(ctx, in, o.models, o.tools, o.maxTurns, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_turns: %w", err)
	}

	if err := graph.AddLambdaNode("archive_transcript",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ArchiveTranscript(ctx, in, o.transcripts, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node archive_transcript: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_answer",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeAnswer(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_answer: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "route_request"},
		{"route_request", "run_turns"},
		{"run_turns", "archive_transcript"},
		{"archive_transcript", "finalize_answer"},
		{"finalize_answer", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.ask"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
