package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/merrysway/coffeebot/agent/contract"
)

// turnState carries a turn through the graph: history in, guard verdict,
// route, and finally the reply.
type turnState struct {
	History []contractx.Message
	Guard   contractx.Message
	Route   contractx.AgentType
}

func (o *Orchestrator) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[[]contractx.Message, contractx.Message], error) {
	graph := compose.NewGraph[[]contractx.Message, contractx.Message]()

	if err := graph.AddLambdaNode("guard_stage",
		compose.InvokableLambda(func(ctx context.Context, history []contractx.Message) (*turnState, error) {
			verdict, err := o.guard.Respond(ctx, history)
			if err != nil {
				return nil, err
			}
			return &turnState{History: history, Guard: verdict}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node guard_stage: %w", err)
	}

	if err := graph.AddLambdaNode("refusal_reply",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (contractx.Message, error) {
			if st == nil {
				return contractx.Message{}, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			return st.Guard, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node refusal_reply: %w", err)
	}

	if err := graph.AddLambdaNode("classification_stage",
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			if st == nil {
				return nil, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			routing, err := o.classifier.Respond(ctx, st.History)
			if err != nil {
				return nil, err
			}
			st.Route = contractx.AgentTypeDetails
			if routing.Memory != nil {
				st.Route = routing.Memory.ClassificationDecision
			}
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classification_stage: %w", err)
	}

	specialists := map[string]contractx.Agent{
		"details_stage":        o.details,
		"order_taking_stage":   o.orderTaking,
		"recommendation_stage": o.recommender,
	}
	for name, agent := range specialists {
		agent := agent
		if err := graph.AddLambdaNode(name,
			compose.InvokableLambda(func(ctx context.Context, st *turnState) (contractx.Message, error) {
				if st == nil {
					return contractx.Message{}, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
				}
				return agent.Respond(ctx, st.History)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
	}

	guardBranch := compose.NewGraphBranch(
		func(ctx context.Context, st *turnState) (string, error) {
			if st == nil {
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			if st.Guard.Memory != nil && st.Guard.Memory.GuardDecision == contractx.GuardNotAllowed {
				return "refusal_reply", nil
			}
			return "classification_stage", nil
		},
		map[string]bool{
			"refusal_reply":        true,
			"classification_stage": true,
		},
	)
	if err := graph.AddBranch("guard_stage", guardBranch); err != nil {
		return nil, fmt.Errorf("add guard branch: %w", err)
	}

	routeBranch := compose.NewGraphBranch(
		func(ctx context.Context, st *turnState) (string, error) {
			if st == nil {
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			switch st.Route {
			case contractx.AgentTypeOrderTaking:
				return "order_taking_stage", nil
			case contractx.AgentTypeRecommendation:
				return "recommendation_stage", nil
			default:
				return "details_stage", nil
			}
		},
		map[string]bool{
			"details_stage":        true,
			"order_taking_stage":   true,
			"recommendation_stage": true,
		},
	)
	if err := graph.AddBranch("classification_stage", routeBranch); err != nil {
		return nil, fmt.Errorf("add route branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "guard_stage"},
		{"refusal_reply", compose.END},
		{"details_stage", compose.END},
		{"order_taking_stage", compose.END},
		{"recommendation_stage", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("coffeebot.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
