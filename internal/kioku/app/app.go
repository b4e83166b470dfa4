// Package app wires Kioku together: the store, the command router, the
// completion bridge and the chat transports.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/bdobrica/Kioku/common/envelope"
	"github.com/bdobrica/Kioku/common/trace"
	"github.com/bdobrica/Kioku/internal/kioku/bridge"
	"github.com/bdobrica/Kioku/internal/kioku/commands"
	"github.com/bdobrica/Kioku/internal/kioku/config"
	"github.com/bdobrica/Kioku/internal/kioku/convlog"
	"github.com/bdobrica/Kioku/internal/kioku/llm"
	"github.com/bdobrica/Kioku/internal/kioku/matrix"
	"github.com/bdobrica/Kioku/internal/kioku/observability"
	"github.com/bdobrica/Kioku/internal/kioku/store"
	"github.com/bdobrica/Kioku/internal/kioku/webhook"
)

// App is the main Kioku application
type App struct {
	config config.Config

	store   *store.Store
	history *convlog.Logger
	router  *commands.Router
	bridge  *bridge.Bridge

	server *Server
	events *webhook.Handler
	matrix *matrix.Client
}

// Option customises New.
type Option func(*options)

type options struct {
	factory llm.Factory
	poster  webhook.Poster
}

// WithProviderFactory replaces the completion provider factory derived from
// the configuration.
func WithProviderFactory(f llm.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithPoster replaces the Slack reply poster derived from the configuration.
func WithPoster(p webhook.Poster) Option {
	return func(o *options) { o.poster = p }
}

// New creates a new Kioku application. It opens (and sets up) the database
// but does not start any listener.
func New(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind := cfg.Kind()

	if o.factory == nil {
		f, err := llm.NewFactory(kind, llm.Options{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		o.factory = f
	}
	if o.poster == nil && cfg.Slack.BotToken != "" {
		o.poster = webhook.NewSlackPoster(cfg.Slack.BotToken, cfg.Slack.APIBaseURL)
	}

	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	slog.Info("database ready", "path", cfg.DatabasePath)

	history := convlog.New(st)
	router := commands.NewRouter(commands.NewHandlers(st, history))
	br := bridge.New(st, history, o.factory, bridge.Options{
		Kind:        kind,
		Service:     cfg.LLM.Service,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: llm.Float(cfg.LLM.Temperature),
	})

	a := &App{
		config:  cfg,
		store:   st,
		history: history,
		router:  router,
		bridge:  br,
	}

	events, err := webhook.New(a.HandleMessage, webhook.Config{
		SigningSecret: cfg.Slack.SigningSecret,
		SkipVerify:    !cfg.Slack.Verify,
		RateLimit:     cfg.RateLimit,
		Poster:        o.poster,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	a.events = events

	a.server = NewServer(":"+strconv.Itoa(cfg.Port), st)
	events.RegisterRoutes(a.server)

	if cfg.Matrix.Enabled() {
		mc, err := matrix.New(context.Background(), matrix.Config{
			Homeserver:  cfg.Matrix.Homeserver,
			UserID:      cfg.Matrix.UserID,
			AccessToken: cfg.Matrix.AccessToken,
			Rooms:       cfg.Matrix.Rooms,
			DB:          st.DB(),
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		a.matrix = mc
	}

	return a, nil
}

// Handler exposes the HTTP routes (health, status, events).
func (a *App) Handler() *Server {
	return a.server
}

// Run starts the HTTP server and the Matrix sync, then blocks until SIGINT
// or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.server.Start(ctx); err != nil {
		return err
	}

	if a.matrix != nil {
		slog.Info("starting Matrix sync")
		if err := a.matrix.Start(ctx, a.HandleMessage); err != nil {
			return fmt.Errorf("failed to start Matrix client: %w", err)
		}
	}

	slog.Info("Kioku is running; press Ctrl+C to stop",
		"port", a.config.Port,
		"provider", string(a.config.Kind()),
		"matrix", a.matrix != nil,
	)

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// Stop stops the Kioku application
func (a *App) Stop() {
	if a.matrix != nil {
		slog.Info("stopping Matrix client")
		a.matrix.Stop()
	}

	if a.server != nil {
		slog.Info("stopping HTTP server")
		a.server.Stop()
	}

	slog.Info("closing database")
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close database", "err", err)
	}
}

// HandleMessage produces the single reply for one inbound chat message.
//
// "!"-prefixed lines go to the command router and are recorded as a system
// history entry. Anything else is recorded as a user entry and answered by
// the completion bridge.
func (a *App) HandleMessage(ctx context.Context, msg envelope.Message) string {
	ctx, _ = trace.Ensure(ctx)
	log := observability.WithTrace(ctx)

	if err := msg.Validate(); err != nil {
		log.Warn("dropping invalid message", "source", msg.Source, "err", err)
		return ""
	}
	username := msg.UserKey

	if msg.IsCommand() {
		reply, err := a.router.Route(ctx, username, msg.Text)
		if err != nil {
			if !errors.Is(err, commands.ErrNotACommand) {
				log.Error("command failed", "username", username, "err", err)
			}
			reply = commands.ReplyUnknown
		}
		a.history.Log(ctx, username, store.RoleSystem, "Executed command: "+msg.Text)
		return reply
	}

	a.history.Log(ctx, username, store.RoleUser, msg.Text)
	return a.bridge.Reply(ctx, username, msg.Text)
}
