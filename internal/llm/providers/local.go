// File path: internal/llm/providers/local.go
package providers

import (
	"context"
)

// OfflinePlaceholder is returned for every chat call when no credential is
// configured.
const OfflinePlaceholder = "[MOCK OUTPUT]\nSet OPENAI_KEY in .env to enable generation."

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions carries the sampling parameters of a single completion.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// DefaultChatOptions mirrors the gateway defaults: temperature 0.2 and a
// 1200 token completion budget.
func DefaultChatOptions() ChatOptions {
	return ChatOptions{Temperature: 0.2, MaxTokens: 1200}
}

// WithDefaults returns DefaultChatOptions for the zero value. Otherwise the
// caller's temperature is kept as given (0 is a valid, deterministic setting)
// and only a missing token budget is filled in.
func (o ChatOptions) WithDefaults() ChatOptions {
	defaults := DefaultChatOptions()
	if o == (ChatOptions{}) {
		return defaults
	}
	if o.Temperature < 0 {
		o.Temperature = 0
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaults.MaxTokens
	}
	return o
}

type Provider interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
	Name() string
}

// LocalProvider is the uncredentialed gateway. It never touches the network.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// Chat returns OfflinePlaceholder whatever the messages contain.
func (l *LocalProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	return OfflinePlaceholder, nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
