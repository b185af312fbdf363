package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"askgraph/internal/contextutil"
)

// Client generates completions through an OpenAI-compatible chat completions API.
type Client struct {
	Host        string
	Model       string
	Temperature float32
	client      *openai.Client
}

// NewClient creates a new LLM client.
func NewClient(host, apiKey, model string) *Client {
	return &Client{
		Host:        host,
		Model:       model,
		Temperature: DefaultTemperature,
		client:      newOpenAIClient(host, apiKey),
	}
}

// Generate sends prompt as a single user message and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: c.Temperature,
	})
	if err != nil {
		logger.ErrorContext(ctx, "chat completion failed", "model", c.Model, "error", err)
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	logger.DebugContext(ctx, "chat completion received",
		"model", c.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// CheckModel verifies that the backend is reachable and serves model.
func CheckModel(ctx context.Context, client *openai.Client, model string) error {
	list, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == model {
			return nil
		}
	}
	return fmt.Errorf("model %q is not available", model)
}

// Ping checks that the completion model is available.
func (c *Client) Ping(ctx context.Context) error {
	return CheckModel(ctx, c.client, c.Model)
}
