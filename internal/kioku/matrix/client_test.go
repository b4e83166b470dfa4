package matrix

import (
	"context"
	"testing"
	"time"

	"github.com/bdobrica/Kioku/common/envelope"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

func textEvent(sender, room, body string, msgType event.MessageType) *event.Event {
	return &event.Event{
		Sender:    id.UserID(sender),
		RoomID:    id.RoomID(room),
		Type:      event.EventMessage,
		Timestamp: 1700000000000,
		Content: event.Content{
			Parsed: &event.MessageEventContent{MsgType: msgType, Body: body},
		},
	}
}

func TestToEnvelope(t *testing.T) {
	self := id.UserID("@kioku:example.org")

	msg, ok := toEnvelope(textEvent("@alice:example.org", "!room:example.org", "!help", event.MsgText), self)
	if !ok {
		t.Fatal("expected message to be accepted")
	}
	if msg.Source != Source || msg.UserKey != "@alice:example.org" || msg.Channel != "!room:example.org" || msg.Text != "!help" {
		t.Errorf("unexpected envelope: %+v", msg)
	}
	if !msg.TS.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("ts = %v", msg.TS)
	}
}

func TestToEnvelope_Rejects(t *testing.T) {
	self := id.UserID("@kioku:example.org")
	tests := map[string]*event.Event{
		"own message": textEvent("@kioku:example.org", "!r:example.org", "hi", event.MsgText),
		"notice":      textEvent("@alice:example.org", "!r:example.org", "hi", event.MsgNotice),
		"image":       textEvent("@alice:example.org", "!r:example.org", "cat.png", event.MsgImage),
		"nil":         nil,
	}
	for name, evt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, ok := toEnvelope(evt, self); ok {
				t.Error("expected rejection")
			}
		})
	}
}

func TestAcceptsRoom(t *testing.T) {
	open := &Client{rooms: map[string]struct{}{}}
	if !open.acceptsRoom("!any:example.org") {
		t.Error("no configured rooms should accept all")
	}

	restricted := &Client{rooms: map[string]struct{}{"!a:example.org": {}}}
	if !restricted.acceptsRoom("!a:example.org") || restricted.acceptsRoom("!b:example.org") {
		t.Error("room filter not applied")
	}
}

func TestHandleMessage_SkipsHistoryBeforeFirstSync(t *testing.T) {
	start := time.UnixMilli(1700000000000)
	var got []string
	c := &Client{
		config:       Config{UserID: "@kioku:example.org"},
		rooms:        map[string]struct{}{},
		replayCutoff: start,
		handler: func(_ context.Context, msg envelope.Message) string {
			got = append(got, msg.Text)
			return ""
		},
	}

	old := textEvent("@alice:example.org", "!r:example.org", "!deletememory 3", event.MsgText)
	old.Timestamp = start.Add(-time.Hour).UnixMilli()
	fresh := textEvent("@alice:example.org", "!r:example.org", "!listmemories", event.MsgText)
	fresh.Timestamp = start.Add(time.Second).UnixMilli()

	c.handleMessage(context.Background(), old)
	c.handleMessage(context.Background(), fresh)

	if len(got) != 1 || got[0] != "!listmemories" {
		t.Errorf("handled = %v, want only the post-start message", got)
	}

	// Without a cutoff nothing is dropped.
	c.replayCutoff = time.Time{}
	got = nil
	c.handleMessage(context.Background(), old)
	if len(got) != 1 {
		t.Errorf("handled = %v, want the old message", got)
	}
}

func TestReplayCutoff(t *testing.T) {
	ss, _ := newTestSyncStore(t)
	ctx := context.Background()
	user := id.UserID("@kioku:example.org")
	now := time.Now()

	if got := replayCutoff(ctx, ss, user, now); !got.Equal(now) {
		t.Errorf("no saved token: cutoff = %v, want %v", got, now)
	}
	if err := ss.SaveNextBatch(ctx, user, "s9_next"); err != nil {
		t.Fatalf("SaveNextBatch: %v", err)
	}
	if got := replayCutoff(ctx, ss, user, now); !got.IsZero() {
		t.Errorf("saved token: cutoff = %v, want zero", got)
	}
	if got := replayCutoff(ctx, nil, user, now); !got.Equal(now) {
		t.Errorf("nil store: cutoff = %v, want %v", got, now)
	}
}
