// Package advisors implements the staged advisory chain: provider-backed
// advisors that ask a language model for a structured verdict, and the
// deterministic fallbacks substituted when a provider call fails.
package advisors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"fxpilot/internal/ports"
)

// ChatClient is the minimal completion surface the real advisors need.
// Tests substitute a canned implementation.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIClient implements ChatClient on the OpenAI chat completion API with
// JSON-object output forced on.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger ports.Logger
}

// NewOpenAIClient creates a chat client for the given model.
func NewOpenAIClient(apiKey, model string, logger ports.Logger) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// Complete runs one chat completion and returns the raw assistant message.
// Transport failures are mapped to tagged ports errors so the orchestrator
// can distinguish retryable conditions.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", c.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response: %w", ports.ErrSchemaViolation)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("completion: %v: %w", err, ports.ErrRateLimited)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return fmt.Errorf("completion: %v: %w", err, ports.ErrAuthenticationFailed)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("completion: %v: %w", err, ports.ErrProviderUnavailable)
		}
	}
	return fmt.Errorf("completion: %v: %w", err, ports.ErrConnectionFailed)
}

// decodeStageOutput parses a model response into the stage's schema struct.
// Markdown code fences are tolerated; anything that fails to parse is a
// schema violation, never a transport error.
func decodeStageOutput(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("advisory output is not valid JSON: %w", ports.ErrSchemaViolation)
	}
	return nil
}
