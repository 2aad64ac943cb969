package ordertaking

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/merrysway/coffeebot/agent/contract"
)

type stubGateway struct {
	completeText string
	completeErr  error
	repairText   string
	repairErr    error

	lastInput []contractx.Message
}

func (s *stubGateway) Complete(ctx context.Context, model string, temperature float64, messages []contractx.Message) (string, error) {
	s.lastInput = messages
	return s.completeText, s.completeErr
}

func (s *stubGateway) Embed(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	return nil, errors.New("embed not expected")
}

func (s *stubGateway) Repair(ctx context.Context, model string, raw string) (string, error) {
	return s.repairText, s.repairErr
}

type stubRecommender struct {
	content string
	err     error
	calls   int
}

func (s *stubRecommender) Respond(ctx context.Context, history []contractx.Message) (contractx.Message, error) {
	return contractx.Message{}, errors.New("direct respond not expected")
}

func (s *stubRecommender) RecommendForOrder(ctx context.Context, history []contractx.Message, order []contractx.LineItem) (contractx.Message, error) {
	s.calls++
	if s.err != nil {
		return contractx.Message{}, s.err
	}
	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: s.content,
		Memory:  &contractx.Memory{Agent: contractx.AgentTypeRecommendation},
	}, nil
}

func userTurn(text string) contractx.Message {
	return contractx.Message{Role: contractx.RoleUser, Content: text}
}

func orderTurn(step string, order []contractx.LineItem, asked bool) contractx.Message {
	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: "Anything else?",
		Memory: &contractx.Memory{
			Agent:                     contractx.AgentTypeOrderTaking,
			StepNumber:                step,
			Order:                     order,
			AskedRecommendationBefore: asked,
		},
	}
}

func TestRespondPrependsRecoveredStateToLastMessage(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{
		completeText: `{"chain of thought":"","step number":"4","order":[{"item":"Latte","quantity":1,"price":4.75}],"response":"Got it."}`,
	}
	agent := New(gw, "m", nil)

	history := []contractx.Message{
		userTurn("I'd like a latte"),
		orderTurn("3", []contractx.LineItem{{Item: "Latte", Quantity: 1, Price: 4.75}}, true),
		userTurn("make it to go"),
	}

	msg, err := agent.Respond(context.Background(), history)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	last := gw.lastInput[len(gw.lastInput)-1]
	if !strings.Contains(last.Content, "step number: 3") {
		t.Fatalf("state prefix missing step number: %q", last.Content)
	}
	if !strings.Contains(last.Content, "order: [{'item': 'Latte', 'quantity': 1, 'price': 4.75}]") {
		t.Fatalf("state prefix not in python-dict form: %q", last.Content)
	}
	if !strings.HasSuffix(last.Content, " \n make it to go") {
		t.Fatalf("user text not preserved after prefix: %q", last.Content)
	}

	// Original history untouched.
	if history[2].Content != "make it to go" {
		t.Fatalf("caller history mutated: %q", history[2].Content)
	}

	if msg.Memory.StepNumber != "4" {
		t.Fatalf("step = %q, want 4", msg.Memory.StepNumber)
	}
	if msg.Memory.AskedRecommendationBefore != true {
		t.Fatal("asked flag lost across turns")
	}
}

func TestRespondFirstTurnHasNoStatePrefix(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{
		completeText: `{"step number":"1","order":[],"response":"What can I get you?"}`,
	}
	agent := New(gw, "m", nil)

	_, err := agent.Respond(context.Background(), []contractx.Message{userTurn("hello")})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	last := gw.lastInput[len(gw.lastInput)-1]
	if strings.Contains(last.Content, "step number") {
		t.Fatalf("fresh conversation got a state prefix: %q", last.Content)
	}
	if !strings.HasSuffix(last.Content, "hello") {
		t.Fatalf("user text lost: %q", last.Content)
	}
}

func TestRespondMenuInSystemPrompt(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{completeText: `{"step number":"1","order":[],"response":"ok"}`}
	agent := New(gw, "m", nil)

	if _, err := agent.Respond(context.Background(), []contractx.Message{userTurn("hi")}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	sys := gw.lastInput[0]
	if sys.Role != contractx.RoleSystem {
		t.Fatalf("first message role = %q", sys.Role)
	}
	if strings.Contains(sys.Content, "{{menu}}") {
		t.Fatal("menu placeholder not substituted")
	}
	if !strings.Contains(sys.Content, "Cappuccino - $4.50") {
		t.Fatal("menu lines missing from system prompt")
	}
}

func TestRecommendationHookFiresOnceAcrossTurns(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{
		completeText: `{"step number":"2","order":[{"item":"Latte","quantity":1,"price":4.75}],"response":"One latte."}`,
	}
	rec := &stubRecommender{content: "A chocolate croissant pairs well with that!"}
	agent := New(gw, "m", rec)

	msg, err := agent.Respond(context.Background(), []contractx.Message{userTurn("a latte please")})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("recommender calls = %d, want 1", rec.calls)
	}
	if msg.Content != "A chocolate croissant pairs well with that!" {
		t.Fatalf("content = %q, want recommendation text", msg.Content)
	}
	if !msg.Memory.AskedRecommendationBefore {
		t.Fatal("asked flag not set after successful hook")
	}

	// Second turn: prior memory carries asked=true, hook must stay quiet.
	history := []contractx.Message{userTurn("a latte please"), msg, userTurn("add a cappuccino")}
	gw.completeText = `{"step number":"2","order":[{"item":"Latte","quantity":1,"price":4.75},{"item":"Cappuccino","quantity":1,"price":4.5}],"response":"Added."}`

	msg2, err := agent.Respond(context.Background(), history)
	if err != nil {
		t.Fatalf("Respond() second turn error = %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("recommender calls = %d after second turn, want 1", rec.calls)
	}
	if msg2.Content != "Added." {
		t.Fatalf("second turn content = %q", msg2.Content)
	}
}

func TestRecommendationHookSkipsEmptyCart(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{completeText: `{"step number":"1","order":[],"response":"What would you like?"}`}
	rec := &stubRecommender{content: "try a mocha"}
	agent := New(gw, "m", rec)

	msg, err := agent.Respond(context.Background(), []contractx.Message{userTurn("hi")})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if rec.calls != 0 {
		t.Fatalf("recommender calls = %d, want 0 for empty cart", rec.calls)
	}
	if msg.Memory.AskedRecommendationBefore {
		t.Fatal("asked flag set without a hook run")
	}
}

func TestRecommendationFailureKeepsOrderResponse(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{
		completeText: `{"step number":"2","order":[{"item":"Latte","quantity":1,"price":4.75}],"response":"One latte coming up."}`,
	}
	rec := &stubRecommender{err: contractx.ErrModelInvoke}
	agent := New(gw, "m", rec)

	msg, err := agent.Respond(context.Background(), []contractx.Message{userTurn("a latte")})
	if err != nil {
		t.Fatalf("Respond() error = %v, hook failures must not escape", err)
	}
	if msg.Content != "One latte coming up." {
		t.Fatalf("content = %q, want original response", msg.Content)
	}
	if msg.Memory.AskedRecommendationBefore {
		t.Fatal("failed hook must leave asked flag unset for a retry")
	}
}

func TestDoubleEncodedOrderIsNormalized(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{
		completeText: `{"step number":"2","order":"[{\"item\":\"Latte\",\"quantity\":1,\"price\":4.75}]","response":"One latte."}`,
	}
	agent := New(gw, "m", nil)

	msg, err := agent.Respond(context.Background(), []contractx.Message{userTurn("a latte")})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if len(msg.Memory.Order) != 1 || msg.Memory.Order[0].Item != "Latte" {
		t.Fatalf("order = %#v, want single latte", msg.Memory.Order)
	}
	if msg.Memory.Order[0].Price != 4.75 {
		t.Fatalf("price = %v", msg.Memory.Order[0].Price)
	}
}

func TestUnparsableOutputFallsBackToApology(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{
		completeText: "the model rambled with no json",
		repairText:   "still rambling",
	}
	agent := New(gw, "m", nil)

	msg, err := agent.Respond(context.Background(), []contractx.Message{userTurn("a latte")})
	if err != nil {
		t.Fatalf("Respond() error = %v, parse failures must not escape", err)
	}
	if msg.Content != ApologyMessage {
		t.Fatalf("content = %q, want apology", msg.Content)
	}
	if msg.Memory.StepNumber != "1" {
		t.Fatalf("step = %q, want reset to 1", msg.Memory.StepNumber)
	}
	if len(msg.Memory.Order) != 0 {
		t.Fatalf("order = %#v, want empty", msg.Memory.Order)
	}
}

func TestNumericStepNumberTolerated(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{
		completeText: `{"step number":3,"order":[],"response":"ok"}`,
	}
	agent := New(gw, "m", nil)

	msg, err := agent.Respond(context.Background(), []contractx.Message{userTurn("hi")})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if msg.Memory.StepNumber != "3" {
		t.Fatalf("step = %q, want 3", msg.Memory.StepNumber)
	}
}

func TestRecoverStateUsesMostRecentOrderMemory(t *testing.T) {
	t.Parallel()

	history := []contractx.Message{
		orderTurn("2", []contractx.LineItem{{Item: "Mocha", Quantity: 1, Price: 5.5}}, false),
		{Role: contractx.RoleAssistant, Content: "", Memory: &contractx.Memory{Agent: contractx.AgentTypeGuard, GuardDecision: contractx.GuardAllowed}},
		orderTurn("4", []contractx.LineItem{{Item: "Latte", Quantity: 2, Price: 9.5}}, true),
		userTurn("anything"),
	}

	st := recoverState(history)
	if !st.found {
		t.Fatal("state not found")
	}
	if st.StepNumber != "4" || len(st.Order) != 1 || st.Order[0].Item != "Latte" || !st.Asked {
		t.Fatalf("recovered state = %#v", st)
	}
}
