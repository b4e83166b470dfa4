package matrix

import (
	"context"
	"path/filepath"
	"testing"

	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Kioku/internal/kioku/store"
)

func newTestSyncStore(t *testing.T) (*DBSyncStore, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "matrix.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ss, err := NewDBSyncStore(context.Background(), st.DB())
	if err != nil {
		t.Fatalf("NewDBSyncStore: %v", err)
	}
	return ss, st
}

func TestDBSyncStore_RoundTrip(t *testing.T) {
	ss, _ := newTestSyncStore(t)
	ctx := context.Background()
	user := id.UserID("@kioku:example.org")

	got, err := ss.LoadNextBatch(ctx, user)
	if err != nil || got != "" {
		t.Fatalf("first LoadNextBatch = %q, %v", got, err)
	}

	if err := ss.SaveNextBatch(ctx, user, "s1_abc"); err != nil {
		t.Fatalf("SaveNextBatch: %v", err)
	}
	if err := ss.SaveNextBatch(ctx, user, "s2_def"); err != nil {
		t.Fatalf("SaveNextBatch (overwrite): %v", err)
	}
	got, err = ss.LoadNextBatch(ctx, user)
	if err != nil || got != "s2_def" {
		t.Errorf("LoadNextBatch = %q, %v", got, err)
	}

	if err := ss.SaveFilterID(ctx, user, "filter-1"); err != nil {
		t.Fatalf("SaveFilterID: %v", err)
	}
	got, err = ss.LoadFilterID(ctx, user)
	if err != nil || got != "filter-1" {
		t.Errorf("LoadFilterID = %q, %v", got, err)
	}
}

func TestDBSyncStore_DoesNotTouchCoreTables(t *testing.T) {
	ss, st := newTestSyncStore(t)
	ctx := context.Background()

	if err := ss.SaveNextBatch(ctx, "@a:example.org", "tok"); err != nil {
		t.Fatalf("SaveNextBatch: %v", err)
	}
	n, err := st.MemoryCount(ctx)
	if err != nil || n != 0 {
		t.Errorf("MemoryCount = %d, %v", n, err)
	}

	// Creating the store twice is harmless.
	if _, err := NewDBSyncStore(ctx, st.DB()); err != nil {
		t.Errorf("second NewDBSyncStore: %v", err)
	}
}
