package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/merrysway/coffeebot/agent/contract"
)

// Config points the gateway at an OpenAI-compatible endpoint. Per-stage model
// overrides fall back to the default model.
type Config struct {
	BaseURL        string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey         string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model          string        `envconfig:"MODEL" split_words:"true" required:"true"`
	EmbeddingModel string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`
	Timeout        time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`

	GuardModel          string `envconfig:"GUARD_MODEL" split_words:"true"`
	ClassificationModel string `envconfig:"CLASSIFICATION_MODEL" split_words:"true"`
	DetailsModel        string `envconfig:"DETAILS_MODEL" split_words:"true"`
	OrderTakingModel    string `envconfig:"ORDER_TAKING_MODEL" split_words:"true"`
	RecommendationModel string `envconfig:"RECOMMENDATION_MODEL" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// ModelFor resolves the model name for a stage.
func (c Config) ModelFor(agentType contractx.AgentType) string {
	override := ""
	switch agentType {
	case contractx.AgentTypeGuard:
		override = c.GuardModel
	case contractx.AgentTypeClassification:
		override = c.ClassificationModel
	case contractx.AgentTypeDetails:
		override = c.DetailsModel
	case contractx.AgentTypeOrderTaking:
		override = c.OrderTakingModel
	case contractx.AgentTypeRecommendation:
		override = c.RecommendationModel
	}
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	return strings.TrimSpace(c.Model)
}
