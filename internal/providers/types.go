// Package providers holds the AI model clients used to turn merged
// customer messages into consultant replies.
package providers

import "context"

// Provider is the interface every model backend implements.
type Provider interface {
	// Chat sends the conversation to the model and returns the raw
	// assistant text. Marker parsing happens downstream.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Name returns the provider identifier, e.g. "openai".
	Name() string
}

// Message is one conversation turn sent to the model.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}
