// Package matrix connects Kioku to Matrix rooms as a second chat transport.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Kioku/common/envelope"
	"github.com/bdobrica/Kioku/common/trace"
	"github.com/bdobrica/Kioku/internal/kioku/observability"
)

// Source tags envelopes produced by this adapter.
const Source = "matrix"

// Config holds Matrix client configuration
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms are joined on start. When empty, messages from every joined
	// room are accepted.
	Rooms []string
	// DB is an optional SQLite connection used to persist the sync token
	// across restarts. When nil, an in-memory store is used.
	DB *sql.DB
}

// MessageHandler produces the reply for one normalised message.
type MessageHandler func(ctx context.Context, msg envelope.Message) string

// Client wraps the Matrix client
type Client struct {
	client  *mautrix.Client
	config  Config
	rooms   map[string]struct{}
	handler MessageHandler

	// replayCutoff drops timeline events older than the first sync when no
	// sync token was saved; zero keeps everything.
	replayCutoff time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Matrix client
func New(ctx context.Context, config Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		rooms:  make(map[string]struct{}, len(config.Rooms)),
		stopCh: make(chan struct{}),
	}
	for _, r := range config.Rooms {
		c.rooms[r] = struct{}{}
	}

	if config.DB != nil {
		syncStore, err := NewDBSyncStore(ctx, config.DB)
		if err != nil {
			return nil, err
		}
		client.Store = syncStore
		slog.Info("Matrix sync store: using persistent SQLite store")
	} else {
		slog.Warn("Matrix sync store: no DB configured, using in-memory store (history will replay on restart)")
	}

	return c, nil
}

// Start joins the configured rooms and begins syncing in the background.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.handler = handler

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("unexpected Matrix syncer type")
	}
	syncer.OnEventType(event.EventMessage, c.handleMessage)

	c.replayCutoff = replayCutoff(ctx, c.client.Store, c.client.UserID, time.Now())

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	go c.syncLoop()
	return nil
}

// syncLoop keeps the /sync long-poll alive, reconnecting with capped
// exponential back-off until Stop is called.
func (c *Client) syncLoop() {
	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	backoff := backoffMin
	for {
		started := time.Now()
		err := c.client.Sync()
		select {
		case <-c.stopCh:
			return
		default:
		}
		if err == nil {
			return
		}
		// A sync that ran for a while was healthy; start over from the minimum.
		if time.Since(started) > backoffMax {
			backoff = backoffMin
		}
		slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
		select {
		case <-c.stopCh:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// Stop stops the Matrix client. It is safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.client.StopSync()
	})
}

// SendNotice sends a notice message (less intrusive than normal messages)
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}

	_, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// acceptsRoom reports whether messages from roomID are handled.
func (c *Client) acceptsRoom(roomID string) bool {
	if len(c.rooms) == 0 {
		return true
	}
	_, ok := c.rooms[roomID]
	return ok
}

// replayCutoff returns now when the sync store holds no token for user. The
// initial /sync then carries room history, and replaying old !remember or
// !deletememory lines would repeat them. With a saved token, everything after
// it is new and nothing is dropped.
func replayCutoff(ctx context.Context, store mautrix.SyncStore, user id.UserID, now time.Time) time.Time {
	if store == nil {
		return now
	}
	token, err := store.LoadNextBatch(ctx, user)
	if err != nil {
		slog.Warn("Matrix sync store: failed to load sync token", "err", err)
		return now
	}
	if token == "" {
		return now
	}
	return time.Time{}
}

// isReplay reports whether evt predates the replay cutoff.
func (c *Client) isReplay(evt *event.Event) bool {
	if c.replayCutoff.IsZero() || evt.Timestamp == 0 {
		return false
	}
	return time.UnixMilli(evt.Timestamp).Before(c.replayCutoff)
}

// handleMessage processes incoming messages
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	msg, ok := toEnvelope(evt, id.UserID(c.config.UserID))
	if !ok || !c.acceptsRoom(msg.Channel) || c.handler == nil {
		return
	}
	if c.isReplay(evt) {
		slog.Debug("Matrix: skipping event from before first sync", "room", msg.Channel, "event", evt.ID)
		return
	}

	ctx, _ = trace.Ensure(ctx)
	reply := c.handler(ctx, msg)
	if reply == "" {
		return
	}
	if err := c.SendNotice(ctx, msg.Channel, reply); err != nil {
		observability.WithTrace(ctx).Error("failed to send Matrix reply", "room", msg.Channel, "err", err)
	}
}

// toEnvelope converts a room message into an envelope. Own messages and
// anything other than plain text are rejected.
func toEnvelope(evt *event.Event, self id.UserID) (envelope.Message, bool) {
	if evt == nil || evt.Sender == self {
		return envelope.Message{}, false
	}
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return envelope.Message{}, false
	}

	ts := time.UnixMilli(evt.Timestamp).UTC()
	if evt.Timestamp == 0 {
		ts = time.Now().UTC()
	}
	msg := envelope.Message{
		Source:  Source,
		UserKey: evt.Sender.String(),
		Channel: evt.RoomID.String(),
		Text:    content.Body,
		TS:      ts,
	}
	if err := msg.Validate(); err != nil {
		return envelope.Message{}, false
	}
	return msg, true
}

// joinRoom attempts to join a room
func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// M_FORBIDDEN is returned by homeservers when the bot is already a member
		// of the room.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
