package convlog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bdobrica/Kioku/internal/kioku/convlog"
	"github.com/bdobrica/Kioku/internal/kioku/store"
)

type recordingAppender struct {
	entries []store.HistoryEntry
	err     error
}

func (r *recordingAppender) AppendHistory(_ context.Context, e store.HistoryEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func TestLog_Appends(t *testing.T) {
	rec := &recordingAppender{}
	l := convlog.New(rec)

	l.Log(context.Background(), "U1", store.RoleUser, "hello")
	l.Log(context.Background(), "U1", store.RoleAssistant, "hi there")

	if len(rec.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(rec.entries))
	}
	first := rec.entries[0]
	if first.Username != "U1" || first.Role != store.RoleUser || first.Message != "hello" {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}
	if rec.entries[1].CreatedAt.Before(first.CreatedAt) {
		t.Error("timestamps went backwards")
	}
}

func TestLog_SwallowsErrors(t *testing.T) {
	rec := &recordingAppender{err: errors.New("disk full")}
	l := convlog.New(rec)

	// Must not panic or propagate.
	l.Log(context.Background(), "U1", store.RoleSystem, "Executed command: !help")
}

func TestLog_NilLogger(t *testing.T) {
	var l *convlog.Logger
	l.Log(context.Background(), "U1", store.RoleUser, "ignored")
}

func TestLog_WithRealStore(t *testing.T) {
	s, err := store.New(t.TempDir() + "/convlog.db")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	l := convlog.New(s)
	l.Log(context.Background(), "U1", store.RoleUser, "first")
	l.Log(context.Background(), "U1", store.RoleAssistant, "second")
	// Invalid role is rejected by the store and swallowed here.
	l.Log(context.Background(), "U1", store.Role("bogus"), "dropped")

	entries, err := s.ListHistory(context.Background(), "U1")
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "first" || entries[1].Message != "second" {
		t.Errorf("unexpected order: %q, %q", entries[0].Message, entries[1].Message)
	}
}
