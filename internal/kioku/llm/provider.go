// Package llm defines the completion provider interface used by the Kioku
// bridge, together with its OpenAI, Anthropic and Gemini backends.
//
// Every backend makes exactly one outbound call per Complete and never
// retries; rate limiting by the remote API is reported as ErrRateLimit.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a single LLM inference call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens int
	// Temperature is omitted from the request when nil; zero is sent as zero.
	Temperature *float64
}

// Float returns a pointer to v, for CompletionRequest.Temperature.
func Float(v float64) *float64 { return &v }

// CompletionResponse is the output from the LLM.
type CompletionResponse struct {
	// Message is the assistant message produced.
	Message Message
	// FinishReason explains why the model stopped.
	FinishReason string
	// Usage holds token count information.
	Usage TokenUsage
}

// TokenUsage reports token consumption.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is the interface that all LLM backends must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ErrRateLimit is returned when the remote API rejects a call with HTTP 429.
var ErrRateLimit = errors.New("llm: rate limited")

// Kind names a supported backend.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGemini    Kind = "gemini"
)

// ParseKind validates a provider name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindOpenAI, KindAnthropic, KindGemini:
		return k, nil
	case "":
		return KindOpenAI, nil
	default:
		return "", fmt.Errorf("unknown llm provider %q (want openai, anthropic or gemini)", s)
	}
}

// DisplayName is the human-facing provider name used in user replies.
func (k Kind) DisplayName() string {
	switch k {
	case KindAnthropic:
		return "Anthropic"
	case KindGemini:
		return "Gemini"
	default:
		return "OpenAI"
	}
}

// DefaultModel returns the model used when none is configured.
func (k Kind) DefaultModel() string {
	switch k {
	case KindAnthropic:
		return "claude-3-5-haiku-latest"
	case KindGemini:
		return "gemini-2.0-flash"
	default:
		return "gpt-4"
	}
}

// Options configure every backend built by a Factory.
type Options struct {
	// BaseURL overrides the API endpoint.
	BaseURL string
	// Model is used when CompletionRequest.Model is empty.
	Model string
	// Timeout bounds each HTTP request. Defaults to 60s.
	Timeout time.Duration
}

// DefaultTimeout bounds a completion call when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Factory builds a Provider for one API key. The key is passed per call so
// that it can be read fresh from the store every time.
type Factory func(apiKey string) (Provider, error)

// NewFactory returns a Factory for kind. An unknown kind is an error.
func NewFactory(kind Kind, opts Options) (Factory, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Model == "" {
		opts.Model = kind.DefaultModel()
	}

	switch kind {
	case KindOpenAI:
		return func(apiKey string) (Provider, error) {
			return NewOpenAI(OpenAIConfig{
				APIKey:  apiKey,
				BaseURL: opts.BaseURL,
				Model:   opts.Model,
				Timeout: opts.Timeout,
			}), nil
		}, nil
	case KindAnthropic:
		return func(apiKey string) (Provider, error) {
			return NewAnthropic(AnthropicConfig{
				APIKey:  apiKey,
				BaseURL: opts.BaseURL,
				Model:   opts.Model,
				Timeout: opts.Timeout,
			}), nil
		}, nil
	case KindGemini:
		return func(apiKey string) (Provider, error) {
			return NewGemini(GeminiConfig{
				APIKey:  apiKey,
				BaseURL: opts.BaseURL,
				Model:   opts.Model,
				Timeout: opts.Timeout,
			})
		}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", kind)
	}
}

// splitSystem separates system messages (joined by blank lines) from the
// conversational ones, for APIs that take the system prompt out of band.
func splitSystem(msgs []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
