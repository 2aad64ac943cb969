// Package orchestrator sequences one conversational turn: guard, then
// classification, then the chosen specialist. History is append-only; the
// caller owns persisting it between turns.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/merrysway/coffeebot/agent/contract"
	orderstorex "github.com/merrysway/coffeebot/agent/orderstore"
)

// Archiver records completed orders. Archiving is best-effort; failures are
// logged and never surfaced to the turn.
type Archiver interface {
	SaveCompleted(ctx context.Context, sessionID string, items []contractx.LineItem, total float64) error
}

type Deps struct {
	Guard       contractx.Agent
	Classifier  contractx.Agent
	Details     contractx.Agent
	OrderTaking contractx.Agent
	Recommender contractx.Recommender

	// Archive is optional.
	Archive Archiver
}

type Orchestrator struct {
	guard       contractx.Agent
	classifier  contractx.Agent
	details     contractx.Agent
	orderTaking contractx.Agent
	recommender contractx.Recommender
	archive     Archiver

	runner compose.Runnable[[]contractx.Message, contractx.Message]
}

func New(deps Deps) (*Orchestrator, error) {
	if deps.Guard == nil || deps.Classifier == nil {
		return nil, errors.New("guard and classifier agents are required")
	}
	if deps.Details == nil || deps.OrderTaking == nil || deps.Recommender == nil {
		return nil, errors.New("all three specialist agents are required")
	}

	o := &Orchestrator{
		guard:       deps.Guard,
		classifier:  deps.Classifier,
		details:     deps.Details,
		orderTaking: deps.OrderTaking,
		recommender: deps.Recommender,
		archive:     deps.Archive,
	}

	runner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.runner = runner

	return o, nil
}

// HandleTurn appends the user's message to a copy of history, runs the turn
// graph, and returns the history extended with both the user message and the
// assistant reply. Gateway transport failures propagate; stage parse
// failures never do.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID string, history []contractx.Message, text string) ([]contractx.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: user message is empty", contractx.ErrValidation)
	}

	working := contractx.CloneMessages(history)
	working = append(working, contractx.Message{Role: contractx.RoleUser, Content: text})

	reply, err := o.runner.Invoke(ctx, working)
	if err != nil {
		return nil, err
	}

	o.maybeArchive(ctx, sessionID, reply)

	return append(working, reply), nil
}

func (o *Orchestrator) maybeArchive(ctx context.Context, sessionID string, reply contractx.Message) {
	if o.archive == nil || reply.Memory == nil {
		return
	}
	mem := reply.Memory
	if mem.Agent != contractx.AgentTypeOrderTaking || len(mem.Order) == 0 {
		return
	}
	if !orderstorex.LooksComplete(reply.Content) {
		return
	}

	total := orderstorex.Total(mem.Order)
	if err := o.archive.SaveCompleted(ctx, sessionID, mem.Order, total); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("order archive failed")
		return
	}
	log.Info().Str("session_id", sessionID).Float64("total", total).Msg("order archived")
}
