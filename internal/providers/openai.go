package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nextlevelbuilder/shopclaw/internal/retry"
)

// OpenAIProvider implements Provider for OpenAI-compatible APIs
// (OpenAI, Groq, OpenRouter, DeepSeek, VLLM, etc.)
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	retryConfig retry.Config
}

// NewOpenAIProvider builds a client for an OpenAI-compatible endpoint.
// baseURL may be empty for the official API.
func NewOpenAIProvider(apiKey, baseURL, model string, maxTokens int, temperature float64, rc retry.Config) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		retryConfig: rc,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Chat runs one completion under the retry policy. API errors carry
// their HTTP status so transient faults get retried and client faults
// fail fast.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	return retry.Do(ctx, p.retryConfig, func(ctx context.Context) (string, error) {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    msgs,
			MaxTokens:   p.maxTokens,
			Temperature: p.temperature,
		})
		if err != nil {
			return "", classify(err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("openai: empty response")
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// classify maps go-openai errors onto the retry package's HTTP error
// so status-based retry classification applies.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &retry.HTTPError{
			Status:      apiErr.HTTPStatusCode,
			Description: apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &retry.HTTPError{
			Status:      reqErr.HTTPStatusCode,
			Description: reqErr.Error(),
		}
	}
	return fmt.Errorf("openai: %w", err)
}
