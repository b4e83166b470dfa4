// Package webhook implements the Slack Events API endpoint.
//
// Deliveries arrive at Kioku's HTTP server:
//
//	POST /slack/events
//
// The handler verifies the Slack request signature, validates the payload
// against an embedded JSON Schema, answers url_verification challenges and
// turns plain user messages into envelope.Message values for the
// application. The reply is posted back to the channel when a Poster is
// configured, and is always returned in the response body as {"reply": ...}.
package webhook

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/bdobrica/Kioku/common/envelope"
	"github.com/bdobrica/Kioku/common/trace"
	"github.com/bdobrica/Kioku/internal/kioku/observability"
)

// Path is the fixed route of the events endpoint.
const Path = "/slack/events"

// DefaultRateLimit is the default number of messages accepted per user per
// minute.
const DefaultRateLimit = 30

// maxBodyBytes caps inbound request bodies to prevent memory exhaustion from
// oversized payloads.
const maxBodyBytes = 1 * 1024 * 1024 // 1 MiB

//go:embed slack_event.schema.json
var eventSchemaJSON string

const eventSchemaURL = "slack_event.schema.json"

// ErrNoSigningSecret is returned by New when verification is on but no
// signing secret is configured.
var ErrNoSigningSecret = errors.New("slack signing secret is required")

// MessageHandler produces the reply for one normalised message.
type MessageHandler func(ctx context.Context, msg envelope.Message) string

// Config holds options for creating a Handler.
type Config struct {
	// SigningSecret verifies X-Slack-Signature. Required unless SkipVerify.
	SigningSecret string
	// SkipVerify accepts unsigned requests. Local development only.
	SkipVerify bool
	// RateLimit is the number of messages per user per minute. Zero or
	// negative disables limiting.
	RateLimit int
	// Poster, when set, receives every non-empty reply.
	Poster Poster
}

// Handler serves POST /slack/events.
type Handler struct {
	secret  string
	limiter *rateLimiter
	poster  Poster
	handle  MessageHandler
	schema  *jsonschema.Schema
	now     func() time.Time
}

// New creates a Handler that dispatches messages to handle.
func New(handle MessageHandler, cfg Config) (*Handler, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(eventSchemaURL, strings.NewReader(eventSchemaJSON)); err != nil {
		return nil, fmt.Errorf("load event schema: %w", err)
	}
	schema, err := compiler.Compile(eventSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}

	secret := cfg.SigningSecret
	switch {
	case cfg.SkipVerify:
		slog.Warn("slack signature verification disabled; events endpoint accepts unsigned requests")
		secret = ""
	case secret == "":
		return nil, ErrNoSigningSecret
	}

	h := &Handler{
		secret: secret,
		poster: cfg.Poster,
		handle: handle,
		schema: schema,
		now:    time.Now,
	}
	if cfg.RateLimit > 0 {
		h.limiter = newRateLimiter(cfg.RateLimit, time.Minute)
	}
	return h, nil
}

// RouteRegistrar is satisfied by *http.ServeMux and by the app server.
type RouteRegistrar interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterRoutes mounts the events handler on the given registrar.
func (h *Handler) RegisterRoutes(r RouteRegistrar) {
	r.Handle(Path, h)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		slog.Warn("events: failed to read request body", "err", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodyBytes {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if h.secret != "" {
		if err := verifySignature(r, body, h.secret, h.now()); err != nil {
			slog.Info("events: signature check failed", "err", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	// Slack redelivers when the first attempt was slow. The original delivery
	// is already being handled, so acknowledge without reprocessing.
	if retry := r.Header.Get(HeaderRetryNum); retry != "" {
		slog.Debug("events: acknowledging retry", "retry_num", retry,
			"reason", r.Header.Get("X-Slack-Retry-Reason"))
		w.WriteHeader(http.StatusOK)
		return
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.schema.Validate(doc); err != nil {
		slog.Info("events: payload failed schema validation", "err", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch gjson.GetBytes(body, "type").String() {
	case "url_verification":
		writeJSON(w, http.StatusOK, map[string]string{
			"challenge": gjson.GetBytes(body, "challenge").String(),
		})
	case "event_callback":
		h.handleEvent(w, r, body)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request, body []byte) {
	event := gjson.GetBytes(body, "event")
	if event.Get("type").String() != "message" ||
		event.Get("subtype").Exists() ||
		event.Get("bot_id").Exists() {
		w.WriteHeader(http.StatusOK)
		return
	}

	msg := envelope.Message{
		Source:  "slack",
		UserKey: event.Get("user").String(),
		Channel: event.Get("channel").String(),
		Text:    event.Get("text").String(),
		TS:      parseSlackTS(event.Get("ts").String(), h.now()),
	}
	if err := msg.Validate(); err != nil {
		slog.Debug("events: ignoring message", "err", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if !h.limiter.Allow(msg.UserKey) {
		slog.Info("events: rate limit exceeded", "user", msg.UserKey)
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	ctx, traceID := trace.Ensure(r.Context())
	log := observability.WithTrace(ctx)
	log.Info("events: message received", "user", msg.UserKey, "channel", msg.Channel)

	reply := h.handle(ctx, msg)

	if h.poster != nil && reply != "" && msg.Channel != "" {
		if err := h.poster.PostMessage(ctx, msg.Channel, reply); err != nil {
			log.Error("events: failed to post reply", "channel", msg.Channel, "err", err)
		}
	}

	w.Header().Set("X-Trace-Id", traceID)
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// parseSlackTS converts a Slack "seconds.micros" timestamp. fallback is used
// when ts is absent or malformed.
func parseSlackTS(ts string, fallback time.Time) time.Time {
	if ts == "" {
		return fallback
	}
	secStr, fracStr, _ := strings.Cut(ts, ".")
	secs, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return fallback
	}
	var nanos int64
	if fracStr != "" {
		if len(fracStr) > 9 {
			fracStr = fracStr[:9]
		}
		frac, err := strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return fallback
		}
		for i := len(fracStr); i < 9; i++ {
			frac *= 10
		}
		nanos = frac
	}
	return time.Unix(secs, nanos).UTC()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
