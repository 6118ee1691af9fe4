// File path: internal/data/orchestrator/options.go
package orchestrator

import (
	"github.com/nicodishanthj/rfpassist/internal/llm"
	"github.com/nicodishanthj/rfpassist/internal/sharepoint"
)

type Option func(*options)

type options struct {
	provider llm.Provider
	remote   *sharepoint.Client
}

// WithProvider injects a language model provider instead of the one
// configured from OPENAI_* variables. Primarily used in tests.
func WithProvider(provider llm.Provider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithRemote injects a remote repository client.
func WithRemote(client *sharepoint.Client) Option {
	return func(o *options) {
		o.remote = client
	}
}
