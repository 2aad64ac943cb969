package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/guard.txt
	guardRaw string

	//go:embed template/classification.txt
	classificationRaw string

	//go:embed template/order_taking.txt
	orderTakingRaw string

	//go:embed template/recommendation.txt
	recommendationRaw string

	//go:embed template/details.txt
	detailsRaw string
)

// PromptSet holds the system instructions for every stage.
type PromptSet struct {
	Guard          string
	Classification string
	OrderTaking    string
	Recommendation string
	Details        string
}

// LoadPromptSet returns trimmed prompt strings. The embed is compile-time,
// so this is safe to call anywhere.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Guard:          strings.TrimSpace(guardRaw),
		Classification: strings.TrimSpace(classificationRaw),
		OrderTaking:    strings.TrimSpace(orderTakingRaw),
		Recommendation: strings.TrimSpace(recommendationRaw),
		Details:        strings.TrimSpace(detailsRaw),
	}
}
