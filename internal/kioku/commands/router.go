package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bdobrica/Kioku/internal/kioku/observability"
)

// Router routes commands to handlers
type Router struct {
	handlers *Handlers
}

// NewRouter creates a new command router
func NewRouter(handlers *Handlers) *Router {
	return &Router{handlers: handlers}
}

// Route parses text and dispatches it on behalf of username. It returns
// ErrNotACommand for ordinary chat; every other outcome, usage errors
// included, is a reply string with a nil error.
func (r *Router) Route(ctx context.Context, username, text string) (string, error) {
	cmd, err := Parse(text)
	if err != nil {
		var usage *UsageError
		if errors.As(err, &usage) {
			observability.WithTrace(ctx).Debug("command usage error",
				"command", usage.Command, "username", username)
			return usage.Usage, nil
		}
		return "", err
	}

	observability.WithTrace(ctx).Debug("dispatching command", "command", cmd.Name(), "username", username)
	return r.Dispatch(ctx, username, cmd)
}

// Dispatch runs an already parsed command.
func (r *Router) Dispatch(ctx context.Context, username string, cmd Command) (string, error) {
	h := r.handlers
	switch c := cmd.(type) {
	case Help:
		return h.HandleHelp(ctx, username, c), nil
	case Remember:
		return h.HandleRemember(ctx, username, c), nil
	case ListMemories:
		return h.HandleListMemories(ctx, username, c), nil
	case DeleteMemory:
		return h.HandleDeleteMemory(ctx, username, c), nil
	case ShowHistory:
		return h.HandleShowHistory(ctx, username, c), nil
	case Unknown:
		return h.HandleUnknown(ctx, username, c), nil
	default:
		return "", fmt.Errorf("unhandled command type %T", cmd)
	}
}
