// Package details answers questions about the shop itself: hours, location,
// delivery, what's on the menu. Answers are grounded on a small built-in
// fact base retrieved by embedding similarity.
package details

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

const retrievedSnippets = 3

var _ contractx.Agent = (*Agent)(nil)

type Agent struct {
	gw           contractx.Gateway
	model        string
	embedModel   string
	systemPrompt string
	facts        []string

	mu       sync.Mutex
	factVecs [][]float64
}

func New(gw contractx.Gateway, model, embedModel string) *Agent {
	return &Agent{
		gw:           gw,
		model:        model,
		embedModel:   embedModel,
		systemPrompt: promptx.LoadPromptSet().Details,
		facts:        shopFacts(),
	}
}

func shopFacts() []string {
	return []string{
		"Merry's Way is open every day from 7am to 8pm, and from 8am to 6pm on Sundays.",
		"Merry's Way is located at 123 Bakers Lane, and delivers within a 3 mile radius through the usual delivery apps.",
		"Orders placed in the chat are picked up at the shop; delivery partners handle doorstep delivery.",
		"Merry's Way serves coffee drinks, drinking chocolate, scones, croissants, biscotti, and flavored syrups.",
		"Full menu with prices:\n" + menux.PromptLines(),
		"All pastries are baked in house every morning; the croissants use a classic butter laminated dough.",
	}
}

// Respond retrieves the facts closest to the user's question and lets the
// model answer from them.
func (a *Agent) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	question := lastUserContent(history)
	if question == "" {
		return contractx.Message{}, fmt.Errorf("%w: no user message to answer", contractx.ErrValidation)
	}

	snippets, err := a.retrieve(ctx, question)
	if err != nil {
		return contractx.Message{}, err
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	for _, s := range snippets {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)

	input := []contractx.Message{
		{Role: contractx.RoleSystem, Content: a.systemPrompt},
		{Role: contractx.RoleUser, Content: b.String()},
	}

	text, err := a.gw.Complete(ctx, a.model, 0, input)
	if err != nil {
		return contractx.Message{}, err
	}

	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: strings.TrimSpace(text),
		Memory:  &contractx.Memory{Agent: contractx.AgentTypeDetails},
	}, nil
}

func (a *Agent) retrieve(ctx context.Context, question string) ([]string, error) {
	factVecs, err := a.factVectors(ctx)
	if err != nil {
		return nil, err
	}

	queryVecs, err := a.gw.Embed(ctx, a.embedModel, []string{question})
	if err != nil {
		return nil, err
	}

	indices := embeddingx.TopK(queryVecs[0], factVecs, retrievedSnippets, nil)
	snippets := make([]string, 0, len(indices))
	for _, idx := range indices {
		snippets = append(snippets, a.facts[idx])
	}
	return snippets, nil
}

func (a *Agent) factVectors(ctx context.Context) ([][]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.factVecs != nil {
		return a.factVecs, nil
	}

	vecs, err := a.gw.Embed(ctx, a.embedModel, a.facts)
	if err != nil {
		return nil, err
	}
	a.factVecs = vecs
	return vecs, nil
}

func lastUserContent(history []contractx.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == contractx.RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}
