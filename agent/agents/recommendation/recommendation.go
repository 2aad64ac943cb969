// Package recommendation suggests menu items by embedding similarity and
// lets the model phrase the suggestion. It serves both the direct
// classification route and the order-taking upsell hook.
package recommendation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	contractx "github.com/merrysway/coffeebot/agent/contract"
	embeddingx "github.com/merrysway/coffeebot/agent/embedding"
	menux "github.com/merrysway/coffeebot/agent/menu"
	promptx "github.com/merrysway/coffeebot/agent/prompt"
)

const (
	directCandidates = 3
	upsellCandidates = 2
)

var _ contractx.Recommender = (*Agent)(nil)

type Agent struct {
	gw           contractx.Gateway
	model        string
	embedModel   string
	systemPrompt string
	catalog      []string

	mu          sync.Mutex
	catalogVecs [][]float64
}

func New(gw contractx.Gateway, model, embedModel string) *Agent {
	return &Agent{
		gw:           gw,
		model:        model,
		embedModel:   embedModel,
		systemPrompt: promptx.LoadPromptSet().Recommendation,
		catalog:      menux.Names(),
	}
}

// Respond recommends items keyed on the latest user message.
func (a *Agent) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	query := lastUserContent(history)
	if query == "" {
		query = "popular coffee and pastries"
	}

	candidates, err := a.rank(ctx, query, nil, directCandidates)
	if err != nil {
		return contractx.Message{}, err
	}
	return a.phrase(ctx, query, candidates)
}

// RecommendForOrder recommends items that pair with the cart, excluding
// anything already in it.
func (a *Agent) RecommendForOrder(ctx context.Context, history []contractx.Message, order []contractx.LineItem) (contractx.Message, error) {
	if len(order) == 0 {
		return contractx.Message{}, fmt.Errorf("%w: order is empty", contractx.ErrValidation)
	}

	ordered := make([]string, 0, len(order))
	skip := make(map[string]bool, len(order))
	for _, item := range order {
		name := strings.TrimSpace(item.Item)
		ordered = append(ordered, name)
		skip[strings.ToLower(name)] = true
	}

	candidates, err := a.rank(ctx, strings.Join(ordered, ", "), skip, upsellCandidates)
	if err != nil {
		return contractx.Message{}, err
	}
	return a.phrase(ctx, "The customer just ordered: "+strings.Join(ordered, ", "), candidates)
}

func (a *Agent) rank(ctx context.Context, query string, skipNames map[string]bool, k int) ([]string, error) {
	catalogVecs, err := a.catalogVectors(ctx)
	if err != nil {
		return nil, err
	}

	queryVecs, err := a.gw.Embed(ctx, a.embedModel, []string{query})
	if err != nil {
		return nil, err
	}

	skip := make(map[int]bool, len(skipNames))
	for i, name := range a.catalog {
		if skipNames[strings.ToLower(name)] {
			skip[i] = true
		}
	}

	indices := embeddingx.TopK(queryVecs[0], catalogVecs, k, skip)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: no recommendation candidates left", contractx.ErrValidation)
	}

	names := make([]string, 0, len(indices))
	for _, idx := range indices {
		names = append(names, a.catalog[idx])
	}
	return names, nil
}

// catalogVectors embeds the menu once and caches the result for the process
// lifetime; the catalog is fixed.
func (a *Agent) catalogVectors(ctx context.Context) ([][]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.catalogVecs != nil {
		return a.catalogVecs, nil
	}

	vecs, err := a.gw.Embed(ctx, a.embedModel, a.catalog)
	if err != nil {
		return nil, err
	}
	a.catalogVecs = vecs
	return vecs, nil
}

func (a *Agent) phrase(ctx context.Context, lead string, candidates []string) (contractx.Message, error) {
	input := []contractx.Message{
		{Role: contractx.RoleSystem, Content: a.systemPrompt},
		{Role: contractx.RoleUser, Content: fmt.Sprintf("%s\nCandidate items: %s", lead, strings.Join(candidates, ", "))},
	}

	text, err := a.gw.Complete(ctx, a.model, 0, input)
	if err != nil {
		return contractx.Message{}, err
	}

	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: strings.TrimSpace(text),
		Memory:  &contractx.Memory{Agent: contractx.AgentTypeRecommendation},
	}, nil
}

func lastUserContent(history []contractx.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == contractx.RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}
