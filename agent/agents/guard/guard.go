// Package guard classifies a user turn as on-topic for the coffee shop or
// not, and supplies the canned refusal when it is not.
package guard

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/merrysway/coffeebot/agent/contract"
	promptx "github.com/merrysway/coffeebot/agent/prompt"
	structuredx "github.com/merrysway/coffeebot/agent/structured"
)

// RefusalMessage is returned verbatim on a "not allowed" decision, no matter
// what the model wrote in its message field.
const RefusalMessage = "Sorry, I can't help with that. Can I help you with your order?"

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
		systemPrompt: promptx.LoadPromptSet().Guard,
	}
}

type decisionOutput struct {
	ChainOfThought string `json:"chain of thought"`
	Decision       string `json:"decision"`
	Message        string `json:"message"`
}

// Respond evaluates the last few turns against the shop's topic policy.
// Unparsable output fails open to allowed: the guard prefers availability
// over blocking on ambiguity. Transport failures propagate.
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
		log.Warn().Err(err).Str("raw", raw).Msg("guard output unparsable, defaulting to allowed")
		out = decisionOutput{Decision: string(contractx.GuardAllowed)}
	}

	decision := contractx.ParseGuardDecision(out.Decision)
	content := ""
	if decision == contractx.GuardNotAllowed {
		content = RefusalMessage
	}

	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: content,
		Memory: &contractx.Memory{
			Agent:         contractx.AgentTypeGuard,
			GuardDecision: decision,
		},
	}, nil
}
