// Package openai implements the prompt-processor capability against an
// OpenAI-compatible chat-completions backend.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Config carries backend credentials and routing.
type Config struct {
	// APIKey authenticates against the backend.
	APIKey string
	// BaseURL overrides the default API endpoint, e.g. for a proxy or a
	// local OpenAI-compatible server. Empty means the hosted default.
	BaseURL string
}

// Client generates step outputs through one model of an OpenAI-compatible
// backend. It satisfies the genai.Processor interface.
type Client struct {
	client sdk.Client
	model  string
}

// New builds a Client for the given model name.
func New(cfg Config, model string) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("new openai client: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("new openai client: model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		client: sdk.NewClient(opts...),
		model:  model,
	}, nil
}

// GenerateJSON requests a completion constrained to the given output shape
// and returns the raw JSON body.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, shape map[string]any) (json.RawMessage, error) {
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(system),
			sdk.UserMessage(prompt),
		},
		ResponseFormat: sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "step_output",
					Schema: shape,
					Strict: sdk.Bool(true),
				},
			},
		},
	}

	content, err := c.complete(ctx, params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(content), nil
}

// GenerateText requests a free-text completion.
func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(system),
			sdk.UserMessage(prompt),
		},
	}
	return c.complete(ctx, params)
}

func (c *Client) complete(ctx context.Context, params sdk.ChatCompletionNewParams) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion: response has no choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion: response content is empty")
	}
	return content, nil
}
