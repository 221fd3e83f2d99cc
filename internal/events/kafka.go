package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to a kafka topic asynchronously. Delivery
// failures are logged, never returned.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for a comma-separated broker list.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	addrs := splitBrokers(brokers)

	log.Info().
		Str("component", "events").
		Strs("brokers", addrs).
		Str("topic", topic).
		Msg("Kafka event publisher configured")

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(addrs...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			BatchTimeout: 50 * time.Millisecond,
			Completion:   logCompletion,
		},
	}
}

// Publish implements Publisher. Events of the same name share a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		log.Error().
			Err(err).
			Str("component", "events").
			Str("event", event.Name).
			Msg("Failed to encode event")
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.Name),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID)},
			{Key: "author", Value: []byte(event.Author)},
		},
	}

	// Async writers only fail here on a closed writer or an invalid message.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		log.Error().
			Err(err).
			Str("component", "events").
			Str("event", event.Name).
			Msg("Failed to publish event")
	}
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func logCompletion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		log.Error().
			Err(err).
			Str("component", "events").
			Str("event", string(m.Key)).
			Msg("Event delivery failed")
	}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
