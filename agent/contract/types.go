package contract

import (
	"fmt"
	"strconv"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AgentType identifies which stage produced a message's memory record and
// doubles as the classification routing decision domain.
type AgentType string

const (
	AgentTypeGuard          AgentType = "guard_agent"
	AgentTypeClassification AgentType = "classification_agent"
	AgentTypeDetails        AgentType = "details_agent"
	AgentTypeOrderTaking    AgentType = "order_taking_agent"
	AgentTypeRecommendation AgentType = "recommendation_agent"
)

type GuardDecision string

const (
	GuardAllowed    GuardDecision = "allowed"
	GuardNotAllowed GuardDecision = "not allowed"
)

// ParseGuardDecision validates a model-written decision. Anything outside the
// closed domain falls back to allowed: the guard favors availability over
// blocking on ambiguous output.
func ParseGuardDecision(raw string) GuardDecision {
	switch GuardDecision(strings.TrimSpace(strings.ToLower(raw))) {
	case GuardNotAllowed:
		return GuardNotAllowed
	default:
		return GuardAllowed
	}
}

// ParseRoutingDecision validates a classification decision, defaulting to the
// details agent when the model wrote something outside the domain.
func ParseRoutingDecision(raw string) AgentType {
	switch AgentType(strings.TrimSpace(strings.ToLower(raw))) {
	case AgentTypeOrderTaking:
		return AgentTypeOrderTaking
	case AgentTypeRecommendation:
		return AgentTypeRecommendation
	default:
		return AgentTypeDetails
	}
}

// Message is one turn in the conversation. The full ordered sequence is the
// conversation's durable state, owned by the caller and passed in whole on
// every turn. Memory is set only on assistant messages produced by a stage.
type Message struct {
	Role    Role    `json:"role"`
	Content string  `json:"content"`
	Memory  *Memory `json:"memory,omitempty"`
}

// Memory is the stage-tagged record attached to assistant messages. Agent
// discriminates which of the optional fields are meaningful.
type Memory struct {
	Agent                     AgentType     `json:"agent"`
	GuardDecision             GuardDecision `json:"guard_decision,omitempty"`
	ClassificationDecision    AgentType     `json:"classification_decision,omitempty"`
	StepNumber                string        `json:"step_number,omitempty"`
	Order                     []LineItem    `json:"order,omitempty"`
	AskedRecommendationBefore bool          `json:"asked_recommendation_before,omitempty"`
}

// LineItem is one cart entry. Price is the line total (unit price times
// quantity), not the unit price; order totals are the plain sum of Price.
type LineItem struct {
	Item     string `json:"item"`
	Quantity Number `json:"quantity"`
	Price    Number `json:"price"`
}

// Number is a float64 that also accepts quoted numerics, since the model is
// told every JSON value is a string and sometimes complies.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*n = Number(f)
	return nil
}

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// CloneMessages deep-copies a history so no stage can observe another
// stage's in-progress mutation.
func CloneMessages(history []Message) []Message {
	if history == nil {
		return nil
	}
	out := make([]Message, len(history))
	for i, msg := range history {
		out[i] = msg
		if msg.Memory != nil {
			mem := *msg.Memory
			if mem.Order != nil {
				mem.Order = append([]LineItem(nil), mem.Order...)
			}
			out[i].Memory = &mem
		}
	}
	return out
}

// Tail returns the last n messages of a history.
func Tail(history []Message, n int) []Message {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
