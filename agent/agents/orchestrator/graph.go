package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	actionx "github.com/tanpawarit/chative-guildbot/agent/action"
	nodex "github.com/tanpawarit/chative-guildbot/agent/nodes"
)

func (o *Orchestrator) compileConversationGraph(
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

	if err := graph.AddLambdaNode("load_settings",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSettings(ctx, in, o.settings)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_settings: %w", err)
	}

	turnCfg := nodex.TurnConfig{
		Model:          o.model,
		Actions:        o.actions,
		SystemPrompt:   o.systemPrompt,
		ResponseAction: actionx.ResponseAction,
		MaxCalls:       o.cfg.MaxCalls,
		MaxTurns:       o.cfg.MaxTurns,
	}
	if o.recorder != nil {
		turnCfg.Recorder = o.recorder
	}
	if err := graph.AddLambdaNode("run_turns",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunTurns(ctx, in, turnCfg)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_turns: %w", err)
	}

	if err := graph.AddLambdaNode("format_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FormatReply(in, actionx.ResponseAction)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node format_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_settings"},
		{"load_settings", "run_turns"},
		{"run_turns", "format_reply"},
		{"format_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.run_conversation"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
