// Package ordertaking drives the multi-turn order dialogue. Cart state lives
// only in message history: each turn recovers the latest order memory by
// scanning backward, renders it into the prompt for the stateless model, and
// appends a fresh memory record for the next turn.
package ordertaking

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/merrysway/coffeebot/agent/contract"
	menux "github.com/merrysway/coffeebot/agent/menu"
	promptx "github.com/merrysway/coffeebot/agent/prompt"
	structuredx "github.com/merrysway/coffeebot/agent/structured"
)

// ApologyMessage is the user-visible fallback when the model's output cannot
// be parsed even after repair.
const ApologyMessage = "I apologize, but I'm having trouble processing your request. Could you please try again?"

const initialStep = "1"

var _ contractx.Agent = (*Agent)(nil)

type Agent struct {
	gw           contractx.Gateway
	model        string
	systemPrompt string
	recommender  contractx.Recommender
}

// New builds the order-taking stage. recommender may be nil; the upsell hook
// is best-effort either way.
func New(gw contractx.Gateway, model string, recommender contractx.Recommender) *Agent {
	return &Agent{
		gw:           gw,
		model:        model,
		systemPrompt: strings.Replace(promptx.LoadPromptSet().OrderTaking, "{{menu}}", menux.PromptLines(), 1),
		recommender:  recommender,
	}
}

// orderState is the cross-turn state recovered from history.
type orderState struct {
	StepNumber string
	Order      []contractx.LineItem
	Asked      bool
	found      bool
}

// looseString tolerates the model emitting a bare number where the prompt
// asked for a string.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(data)
	return nil
}

type orderOutput struct {
	ChainOfThought string          `json:"chain of thought"`
	StepNumber     looseString     `json:"step number"`
	Order          json.RawMessage `json:"order"`
	Response       string          `json:"response"`
}

// Respond reconstructs the cart from history, runs the order dialogue, and
// fires the one-shot recommendation hook on the first non-empty cart.
func (a *Agent) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	working := contractx.CloneMessages(history)
	prior := recoverState(working)

	if len(working) > 0 {
		last := &working[len(working)-1]
		last.Content = renderStatus(prior) + " \n " + last.Content
	}

	input := append([]contractx.Message{{Role: contractx.RoleSystem, Content: a.systemPrompt}}, working...)

	raw, err := a.gw.Complete(ctx, a.model, 0, input)
	if err != nil {
		return contractx.Message{}, err
	}

	out, perr := structuredx.ParseWithRepair[orderOutput](ctx, a.gw, a.model, raw)
	if perr != nil {
		log.Warn().Err(perr).Str("raw", raw).Msg("order output unparsable, falling back to apology")
		out = orderOutput{StepNumber: initialStep, Response: ApologyMessage}
	}

	order := decodeOrder(out.Order)
	response := out.Response
	asked := prior.Asked

	if !asked && len(order) > 0 && a.recommender != nil {
		recMsg, rerr := a.recommender.RecommendForOrder(ctx, working, order)
		if rerr != nil {
			// Best-effort: a recommendation failure never blocks the order.
			log.Warn().Err(rerr).Msg("recommendation hook failed, keeping order response")
		} else {
			if content := strings.TrimSpace(recMsg.Content); content != "" {
				response = recMsg.Content
			}
			asked = true
		}
	}

	step := strings.TrimSpace(string(out.StepNumber))
	if step == "" {
		step = initialStep
	}

	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: response,
		Memory: &contractx.Memory{
			Agent:                     contractx.AgentTypeOrderTaking,
			StepNumber:                step,
			Order:                     order,
			AskedRecommendationBefore: asked,
		},
	}, nil
}

// recoverState scans history backward for the most recent order-taking
// memory. Absence means the initial state: step 1, empty cart, no
// recommendation offered yet.
func recoverState(history []contractx.Message) orderState {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != contractx.RoleAssistant || msg.Memory == nil {
			continue
		}
		if msg.Memory.Agent != contractx.AgentTypeOrderTaking {
			continue
		}
		return orderState{
			StepNumber: msg.Memory.StepNumber,
			Order:      msg.Memory.Order,
			Asked:      msg.Memory.AskedRecommendationBefore,
			found:      true,
		}
	}
	return orderState{StepNumber: initialStep}
}

// renderStatus writes the recovered state in the python-dict style the
// prompt contract was tuned on. Without prior state the prefix stays empty.
func renderStatus(st orderState) string {
	if !st.found {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nstep number: ")
	b.WriteString(st.StepNumber)
	b.WriteString("\norder: ")
	b.WriteString(renderOrderRepr(st.Order))
	b.WriteString("\n")
	return b.String()
}

func renderOrderRepr(order []contractx.LineItem) string {
	var b strings.Builder
	b.WriteString("[")
	for i, item := range order {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("{'item': '")
		b.WriteString(strings.ReplaceAll(item.Item, "'", `\'`))
		b.WriteString("', 'quantity': ")
		b.WriteString(item.Quantity.String())
		b.WriteString(", 'price': ")
		b.WriteString(item.Price.String())
		b.WriteString("}")
	}
	b.WriteString("]")
	return b.String()
}

// decodeOrder tolerates the model double-encoding the order list as a JSON
// string. A field that fails both decodes degrades to an empty cart; the
// secondary error is never propagated.
func decodeOrder(raw json.RawMessage) []contractx.LineItem {
	if len(raw) == 0 {
		return nil
	}

	var items []contractx.LineItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if err := json.Unmarshal([]byte(encoded), &items); err == nil {
			return items
		}
		log.Warn().Str("order", encoded).Msg("double-encoded order field unparsable, treating as empty")
	}
	return nil
}
