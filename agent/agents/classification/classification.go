// Package classification routes an allowed turn to one of the three
// downstream specialists. It never addresses the user; only the routing
// memory matters.
package classification

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/merrysway/coffeebot/agent/contract"
	promptx "github.com/merrysway/coffeebot/agent/prompt"
	structuredx "github.com/merrysway/coffeebot/agent/structured"
)

const contextWindow = 3

var _ contractx.Agent = (*Agent)(nil)

type Agent struct {
	gw           contractx.Gateway
	model        string
	systemPrompt string
}

func New(gw contractx.Gateway, model string) *Agent {
	return &Agent{
		gw:           gw,
		model:        model,
		systemPrompt: promptx.LoadPromptSet().Classification,
	}
}

type decisionOutput struct {
	ChainOfThought string `json:"chain of thought"`
	Decision       string `json:"decision"`
	Message        string `json:"message"`
}

// Respond picks a specialist from the last few turns. The model's message
// field is discarded; unparsable output defaults to the details agent.
func (a *Agent) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	input := append(
		[]contractx.Message{{Role: contractx.RoleSystem, Content: a.systemPrompt}},
		contractx.Tail(contractx.CloneMessages(history), contextWindow)...,
	)

	raw, err := a.gw.Complete(ctx, a.model, 0, input)
	if err != nil {
		return contractx.Message{}, err
	}

	out, err := structuredx.ParseWithRepair[decisionOutput](ctx, a.gw, a.model, raw)
	if err != nil {
		log.Warn().Err(err).Str("raw", raw).Msg("classification output unparsable, defaulting to details agent")
		out = decisionOutput{Decision: string(contractx.AgentTypeDetails)}
	}

	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: "",
		Memory: &contractx.Memory{
			Agent:                  contractx.AgentTypeClassification,
			ClassificationDecision: contractx.ParseRoutingDecision(out.Decision),
		},
	}, nil
}
