package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bdobrica/Kioku/internal/kioku/observability"
	"github.com/bdobrica/Kioku/internal/kioku/store"
)

// HistoryTimeLayout formats timestamps in !showhistory output.
const HistoryTimeLayout = "2006-01-02 15:04:05"

// Replies shared with other packages.
const (
	ReplyUnknown          = "Unknown command. Type !help for a list of commands."
	ReplyNoMemories       = "No stored memories available."
	ReplyMemoryLookupFail = "Memory lookup failed."
)

const helpText = "Available commands:\n" +
	"!help - Show this help message\n" +
	"!remember <memory> - Save a new memory\n" +
	"!listmemories - List all stored memories\n" +
	"!deletememory <id> - Delete a memory by its ID\n" +
	"!showhistory - Show conversation history\n"

// Store is the persistence the command handlers use.
type Store interface {
	SaveMemory(ctx context.Context, username, text, category string) (int64, error)
	ListMemories(ctx context.Context, username string) ([]store.Memory, error)
	DeleteMemory(ctx context.Context, id int64) error
	ListHistory(ctx context.Context, username string) ([]store.HistoryEntry, error)
}

// HistoryLogger records conversation entries on a best-effort basis.
type HistoryLogger interface {
	Log(ctx context.Context, username string, role store.Role, message string)
}

// Handlers holds all command handlers and dependencies
type Handlers struct {
	store   Store
	history HistoryLogger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(s Store, history HistoryLogger) *Handlers {
	return &Handlers{store: s, history: history}
}

// HandleHelp lists the available commands.
func (h *Handlers) HandleHelp(ctx context.Context, username string, cmd Help) string {
	return helpText
}

// HandleRemember saves a memory for username.
func (h *Handlers) HandleRemember(ctx context.Context, username string, cmd Remember) string {
	log := observability.WithTrace(ctx)

	id, err := h.store.SaveMemory(ctx, username, cmd.Text, "")
	if err != nil {
		log.Error("failed to save memory", "username", username, "err", err)
		return "❌ I couldn't save that memory."
	}
	log.Info("memory saved", "username", username, "id", id)

	if h.history != nil {
		h.history.Log(ctx, username, store.RoleSystem, "Saved memory: "+cmd.Text)
	}
	return "✅ I have remembered that."
}

// HandleListMemories renders every memory of username as "id: text" lines.
func (h *Handlers) HandleListMemories(ctx context.Context, username string, cmd ListMemories) string {
	return "Memories:\n" + FormatMemories(ctx, h.store, username)
}

// HandleDeleteMemory removes a memory by ID.
func (h *Handlers) HandleDeleteMemory(ctx context.Context, username string, cmd DeleteMemory) string {
	if err := h.store.DeleteMemory(ctx, cmd.ID); err != nil {
		observability.WithTrace(ctx).Error("failed to delete memory", "id", cmd.ID, "err", err)
		return "❌ Failed to delete memory."
	}
	return fmt.Sprintf("✅ Memory %d deleted.", cmd.ID)
}

// HandleShowHistory renders the conversation log of username.
func (h *Handlers) HandleShowHistory(ctx context.Context, username string, cmd ShowHistory) string {
	const header = "Conversation History:\n"

	entries, err := h.store.ListHistory(ctx, username)
	if err != nil {
		observability.WithTrace(ctx).Error("failed to fetch conversation history", "username", username, "err", err)
		return header + "Failed to fetch conversation history."
	}
	if len(entries) == 0 {
		return header + "No conversation history found."
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s - %s: %s",
			e.CreatedAt.UTC().Format(HistoryTimeLayout), e.Role, e.Message))
	}
	return header + strings.Join(lines, "\n")
}

// HandleUnknown answers any unrecognised command word.
func (h *Handlers) HandleUnknown(ctx context.Context, username string, cmd Unknown) string {
	return ReplyUnknown
}

// MemoryLister is the read side of the memory store.
type MemoryLister interface {
	ListMemories(ctx context.Context, username string) ([]store.Memory, error)
}

// FormatMemories renders the memories of username as newline-joined
// "id: text" lines. It returns ReplyNoMemories when there are none and
// ReplyMemoryLookupFail when the lookup errors.
func FormatMemories(ctx context.Context, s MemoryLister, username string) string {
	memories, err := s.ListMemories(ctx, username)
	if err != nil {
		observability.WithTrace(ctx).Error("memory lookup failed", "username", username, "err", err)
		return ReplyMemoryLookupFail
	}
	if len(memories) == 0 {
		return ReplyNoMemories
	}

	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		lines = append(lines, fmt.Sprintf("%d: %s", m.ID, m.Text))
	}
	return strings.Join(lines, "\n")
}
