// File path: internal/llm/llm.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/nicodishanthj/rfpassist/internal/common"
	"github.com/nicodishanthj/rfpassist/internal/common/telemetry"
	"github.com/nicodishanthj/rfpassist/internal/llm/providers"
)

type Message = providers.Message

type ChatOptions = providers.ChatOptions

type Provider = providers.Provider

const (
	defaultModel   = "gpt-4o"
	defaultTimeout = 60 * time.Second
)

// Config selects and parameterises the gateway. An empty APIKey selects the
// offline provider.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// LoadConfig reads gateway settings from the environment.
func LoadConfig() Config {
	logger := common.Logger()
	cfg := Config{
		APIKey:   firstEnv("OPENAI_KEY", "OPENAI_API_KEY"),
		Model:    firstEnv("OPENAI_MODEL", "MODEL_NAME"),
		Endpoint: strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")),
	}
	if timeoutStr := strings.TrimSpace(os.Getenv("OPENAI_HTTP_TIMEOUT")); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			logger.Warn("llm: invalid OPENAI_HTTP_TIMEOUT, using default", "value", timeoutStr, "error", err)
		} else {
			cfg.Timeout = timeout
		}
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if strings.TrimSpace(c.Model) == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// NewProvider returns the credentialed OpenAI gateway when an API key is
// configured and the offline placeholder provider otherwise. Either way the
// result records call telemetry.
func NewProvider(cfg Config) Provider {
	logger := common.Logger()
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		logger.Warn("llm: OPENAI_KEY not set; falling back to offline placeholder provider")
		return instrument(providers.NewLocalProvider())
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.Endpoint != "" {
		logger.Info("llm: configuring OpenAI client with custom endpoint", "endpoint", cfg.Endpoint)
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	} else {
		logger.Debug("llm: using default OpenAI endpoint")
	}
	client := openai.NewClient(opts...)
	logger.Info("llm: OpenAI provider selected", "model", cfg.Model, "timeout", cfg.Timeout)
	return instrument(providers.NewOpenAIProvider(client, cfg.Model))
}

// NormalizeMessages validates a prompt and lower-cases its roles in place.
func NormalizeMessages(messages []Message) ([]Message, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}
	for i := range messages {
		role := strings.ToLower(strings.TrimSpace(messages[i].Role))
		switch role {
		case "system", "user", "assistant":
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, messages[i].Role)
		}
		messages[i].Role = role
	}
	return messages, nil
}

type instrumentedProvider struct {
	inner Provider
}

func instrument(p Provider) Provider {
	if _, ok := p.(*instrumentedProvider); ok {
		return p
	}
	return &instrumentedProvider{inner: p}
}

func (p *instrumentedProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	start := time.Now()
	if _, offline := p.inner.(*providers.LocalProvider); offline {
		// The offline gateway answers any prompt, malformed or not.
		out, err := p.inner.Chat(ctx, messages, opts.WithDefaults())
		telemetry.RecordLLMCall("offline", time.Since(start))
		return out, err
	}
	messages, err := NormalizeMessages(append([]Message(nil), messages...))
	if err != nil {
		return "", err
	}
	out, err := p.inner.Chat(ctx, messages, opts.WithDefaults())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.RecordLLMCall(outcome, time.Since(start))
	return out, err
}

func (p *instrumentedProvider) Name() string {
	return p.inner.Name()
}
