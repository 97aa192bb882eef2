// Package events publishes namingd domain events to NATS.
//
// Events are notifications for operators and downstream consumers. They are
// fire-and-forget: a publish failure is logged by the caller and never fails
// the operation that produced the event.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies an event kind. It is also the subject suffix.
type Type string

const (
	// TypeMirrorDrift is published when a catalog change could not be
	// mirrored into the similarity index.
	TypeMirrorDrift Type = "mirror.drift"

	// TypeMirrorResynced is published after a bulk resync completes.
	TypeMirrorResynced Type = "mirror.resynced"
)

// Event is the JSON message body.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Collection string    `json:"collection"`
	EntityID   int64     `json:"entity_id,omitempty"`
	Count      int       `json:"count,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Time       time.Time `json:"time"`
}

// New returns an event with a fresh id and timestamp.
func New(t Type, collection string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Collection: collection,
		Time:       time.Now().UTC(),
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
