package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ChannelPublisher delivers events on a buffered channel. When the buffer is
// full the event is dropped rather than blocking the publisher.
type ChannelPublisher struct {
	ch chan Event
}

// NewChannelPublisher creates a channel publisher with the given buffer size.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Event, buffer)}
}

// Publish implements Publisher.
func (p *ChannelPublisher) Publish(_ context.Context, event Event) {
	select {
	case p.ch <- event:
	default:
		log.Warn().
			Str("component", "events").
			Str("event", event.Name).
			Msg("Event buffer full, dropping event")
	}
}

// Events returns the receive side of the channel.
func (p *ChannelPublisher) Events() <-chan Event {
	return p.ch
}

// Drain returns every buffered event without blocking.
func (p *ChannelPublisher) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-p.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
