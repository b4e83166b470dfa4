// Package envelope defines the normalised inbound chat message shared by all
// chat transports (Slack events endpoint, Matrix sync).
//
// Transports translate their native event into a Message; the application
// never sees platform-specific payloads.
package envelope

import (
	"fmt"
	"strings"
	"time"
)

// Message is one inbound chat message awaiting a single text reply.
type Message struct {
	// Source names the transport that delivered the message ("slack", "matrix").
	Source string `json:"source"`

	// UserKey is the opaque owning-user key. It scopes memories and history
	// and is never validated or normalised beyond being non-empty.
	UserKey string `json:"user"`

	// Channel is the transport-level conversation (Slack channel, Matrix room)
	// the reply goes back to. May be empty for request/response transports.
	Channel string `json:"channel,omitempty"`

	// Text is the raw message body.
	Text string `json:"text"`

	// TS is when the transport received the message.
	TS time.Time `json:"ts"`
}

// IsCommand reports whether the message is a "!"-prefixed command line.
func (m *Message) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Text), "!")
}

// Validate checks the structural invariants of a Message.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("message must not be nil")
	}
	if m.Source == "" {
		return fmt.Errorf("source must not be empty")
	}
	if m.UserKey == "" {
		return fmt.Errorf("user must not be empty")
	}
	if m.TS.IsZero() {
		return fmt.Errorf("ts must not be zero")
	}
	return nil
}
