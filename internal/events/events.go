// Package events publishes domain events about routes, access grants and
// spec imports. Publishing is fire-and-forget: callers never block on or
// inspect consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names.
const (
	APICreate     = "apis.create"
	APIUpdate     = "apis.update"
	APIDelete     = "apis.delete"
	APIAssign     = "apis.assign"
	APIUnassign   = "apis.unassign"
	APISpecImport = "apis.spec.import"
	APISpecRetry  = "apis.spec.retry"
)

// Event is one domain event.
type Event struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Author     string                 `json:"author"`
	Metadata   map[string]interface{} `json:"metadata"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// New creates an event with a fresh id and timestamp.
func New(name, author string, metadata map[string]interface{}) Event {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		Author:     author,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to whatever consumes them.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) {}

// Fanout publishes to several publishers in order.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, event Event) {
	for _, p := range f {
		p.Publish(ctx, event)
	}
}
