// Package notify delivers best-effort progress events to clients over an
// out-of-band channel keyed by an opaque session id.
//
// Delivery is fire and forget: a missing subscriber, a full buffer or a
// cancelled context drops the event without failing the operation that
// produced it.
package notify

import "context"

// Event is a single progress notification.
type Event struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Standard status values used by the upload flow.
const (
	StatusInfo    = "info"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Notifier pushes events to the subscriber of a channel, if any.
type Notifier interface {
	Notify(ctx context.Context, channel string, ev Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Notify(context.Context, string, Event) {}
