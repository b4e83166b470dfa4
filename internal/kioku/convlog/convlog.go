// Package convlog appends entries to the per-user conversation history.
// Logging is best-effort: a failed append is reported to the process log and
// never surfaces to the caller.
package convlog

import (
	"context"
	"time"

	"github.com/bdobrica/Kioku/internal/kioku/observability"
	"github.com/bdobrica/Kioku/internal/kioku/store"
)

// Appender is the slice of the store the logger needs.
type Appender interface {
	AppendHistory(ctx context.Context, e store.HistoryEntry) error
}

// Logger records conversation turns.
type Logger struct {
	appender Appender
	now      func() time.Time
}

// New creates a Logger writing through appender.
func New(appender Appender) *Logger {
	return &Logger{appender: appender, now: time.Now}
}

// Log appends one entry for username. Errors are logged and swallowed.
func (l *Logger) Log(ctx context.Context, username string, role store.Role, message string) {
	if l == nil || l.appender == nil {
		return
	}
	err := l.appender.AppendHistory(ctx, store.HistoryEntry{
		Username:  username,
		Role:      role,
		Message:   message,
		CreatedAt: l.now().UTC(),
	})
	if err != nil {
		observability.WithTrace(ctx).Warn("conversation log failed",
			"username", username,
			"role", string(role),
			"err", err,
		)
	}
}
