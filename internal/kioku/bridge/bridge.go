// Package bridge turns an ordinary chat message into a completion request,
// using the sender's stored memories as context, and relays the answer.
package bridge

import (
	"context"
	"errors"

	"github.com/bdobrica/Kioku/internal/kioku/commands"
	"github.com/bdobrica/Kioku/internal/kioku/llm"
	"github.com/bdobrica/Kioku/internal/kioku/observability"
	"github.com/bdobrica/Kioku/internal/kioku/store"
)

// Defaults applied when Options leaves a field at its zero value.
const (
	DefaultMaxTokens   = 200
	DefaultTemperature = 0.7
)

// ContextPrefix introduces the memory block in the system message.
const ContextPrefix = "Here are your memories: "

// User-facing replies for completion failures.
const (
	ReplyUnavailable = "❌ The assistant is unavailable right now. Please try again later."
	ReplyRateLimited = "⏳ The assistant is rate-limited right now. Please try again in a moment."
)

// Store is the read side of persistence the bridge needs.
type Store interface {
	GetAPIKey(ctx context.Context, service string) (string, error)
	ListMemories(ctx context.Context, username string) ([]store.Memory, error)
}

// HistoryLogger records conversation entries on a best-effort basis.
type HistoryLogger interface {
	Log(ctx context.Context, username string, role store.Role, message string)
}

// Options tune the completion call.
type Options struct {
	// Kind selects the display name used in configuration errors.
	Kind llm.Kind
	// Service is the api_keys row to read. Defaults to the provider kind.
	Service     string
	Model       string
	MaxTokens int
	// Temperature nil means DefaultTemperature. Zero is a valid setting.
	Temperature *float64
}

// Bridge answers non-command messages.
type Bridge struct {
	store   Store
	history HistoryLogger
	factory llm.Factory
	opts    Options
}

// New creates a Bridge.
func New(s Store, history HistoryLogger, factory llm.Factory, opts Options) *Bridge {
	if opts.Kind == "" {
		opts.Kind = llm.KindOpenAI
	}
	if opts.Service == "" {
		opts.Service = string(opts.Kind)
	}
	if opts.Model == "" {
		opts.Model = opts.Kind.DefaultModel()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature == nil {
		opts.Temperature = llm.Float(DefaultTemperature)
	}
	return &Bridge{store: s, history: history, factory: factory, opts: opts}
}

// MissingKeyReply is the reply when no usable API key is stored.
func (b *Bridge) MissingKeyReply() string {
	return "❌ Error: " + b.opts.Kind.DisplayName() + " API key not found."
}

// Reply produces the assistant's answer to input for username. It always
// returns user-facing text; failures are logged and mapped to fixed replies.
func (b *Bridge) Reply(ctx context.Context, username, input string) string {
	log := observability.WithTrace(ctx)

	apiKey, err := b.store.GetAPIKey(ctx, b.opts.Service)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Warn("no api key configured", "service", b.opts.Service)
		return b.MissingKeyReply()
	case err != nil:
		log.Error("failed to read api key", "service", b.opts.Service, "err", err)
		return b.MissingKeyReply()
	case apiKey == "" || apiKey == store.PlaceholderAPIKey:
		log.Warn("api key is still the placeholder", "service", b.opts.Service)
		return b.MissingKeyReply()
	}

	system := ContextPrefix + commands.FormatMemories(ctx, b.store, username)

	provider, err := b.factory(apiKey)
	if err != nil {
		log.Error("failed to build llm provider", "err", observability.RedactSecrets(err.Error(), apiKey))
		return ReplyUnavailable
	}

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Model: b.opts.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: input},
		},
		MaxTokens:   b.opts.MaxTokens,
		Temperature: b.opts.Temperature,
	})
	if err != nil {
		log.Error("completion failed",
			"provider", string(b.opts.Kind),
			"model", b.opts.Model,
			"err", observability.RedactSecrets(err.Error(), apiKey),
		)
		if errors.Is(err, llm.ErrRateLimit) {
			return ReplyRateLimited
		}
		return ReplyUnavailable
	}

	reply := resp.Message.Content
	log.Info("completion ok",
		"provider", string(b.opts.Kind),
		"model", b.opts.Model,
		"total_tokens", resp.Usage.TotalTokens,
	)
	if b.history != nil {
		b.history.Log(ctx, username, store.RoleAssistant, reply)
	}
	return reply
}
