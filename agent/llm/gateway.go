// Package llm wraps the remote chat-completion and embedding endpoints. The
// wrapper is deliberately thin: no retries, no caching, blocking calls. A
// failure is classified for diagnostics and re-raised to the caller.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	contractx "github.com/merrysway/coffeebot/agent/contract"
)

// Fixed request parameters from the prompt contract the models were tuned on.
const (
	completionTopP      = 0.8
	completionMaxTokens = 2000
)

const repairPromptTemplate = `You will check this json string and correct any mistakes that will make it invalid. Then you will return the corrected json string. Nothing else.
If the Json is correct just return it.

Do NOT return a single letter outside of the json string.

%s`

var _ contractx.Gateway = (*Client)(nil)

type Client struct {
	api openaisdk.Client
}

func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		// The repair round-trip in agent/structured is the only recovery
		// mechanism; transport-level retries would hide it.
		option.WithMaxRetries(0),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{api: openaisdk.NewClient(opts...)}
}

// Complete sends a role-tagged message sequence and returns the generated
// text. Messages are stripped to role and content; memory never leaves the
// process.
func (c *Client) Complete(ctx context.Context, model string, temperature float64, messages []contractx.Message) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(model),
		Messages:    toParamMessages(messages),
		Temperature: openaisdk.Float(temperature),
		TopP:        openaisdk.Float(completionTopP),
		MaxTokens:   openaisdk.Int(completionMaxTokens),
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", contractx.ErrModelInvoke)
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	resp, err := c.api.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: embedding count %d does not match input count %d",
			contractx.ErrModelInvoke, len(resp.Data), len(inputs))
	}

	vectors := make([][]float64, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", contractx.ErrModelInvoke, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Repair asks the model to fix a malformed structured-data string. The reply
// is returned as-is; validity is the caller's problem.
func (c *Client) Repair(ctx context.Context, model string, raw string) (string, error) {
	return c.Complete(ctx, model, 0, []contractx.Message{
		{Role: contractx.RoleUser, Content: fmt.Sprintf(repairPromptTemplate, raw)},
	})
}

func toParamMessages(messages []contractx.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case contractx.RoleSystem:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		case contractx.RoleAssistant:
			out = append(out, openaisdk.AssistantMessage(msg.Content))
		default:
			out = append(out, openaisdk.UserMessage(msg.Content))
		}
	}
	return out
}

func classifyAPIError(err error) error {
	var apiErr *openaisdk.Error
	if !errors.As(err, &apiErr) {
		log.Warn().Err(err).Msg("completion transport failure")
		return fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	switch {
	case apiErr.StatusCode == http.StatusUnauthorized:
		log.Warn().Int("status", apiErr.StatusCode).Msg("completion auth failure: check api key")
		return fmt.Errorf("%w: %v", contractx.ErrUnauthorized, err)
	case apiErr.StatusCode == http.StatusNotFound:
		log.Warn().Int("status", apiErr.StatusCode).Msg("completion endpoint not found: check base url and model name")
		return fmt.Errorf("%w: %v", contractx.ErrEndpointNotFound, err)
	case apiErr.StatusCode >= http.StatusInternalServerError:
		log.Warn().Int("status", apiErr.StatusCode).Msg("completion service internal error")
		return fmt.Errorf("%w: %v", contractx.ErrServiceInternal, err)
	default:
		log.Warn().Int("status", apiErr.StatusCode).Err(err).Msg("completion request failed")
		return fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
}
