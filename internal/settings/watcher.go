package settings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ChangeEvent is published by whatever edits settings. An empty
// Environment invalidates every environment.
type ChangeEvent struct {
	Environment string `json:"environment"`
	Key         string `json:"key,omitempty"`
}

// Invalidator drops cached settings.
type Invalidator interface {
	Invalidate(environment string)
}

// Watcher listens for settings changes via Redis pub/sub.
type Watcher struct {
	redis   *redis.Client
	channel string
	target  Invalidator
}

// NewWatcher creates a new settings watcher.
func NewWatcher(redisClient *redis.Client, channel string, target Invalidator) *Watcher {
	return &Watcher{
		redis:   redisClient,
		channel: channel,
		target:  target,
	}
}

// Start blocks, invalidating the target on every change event until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	pubsub := w.redis.Subscribe(ctx, w.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	log.Info().
		Str("component", "settings_watcher").
		Str("channel", w.channel).
		Msg("Subscribed to settings changes")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("component", "settings_watcher").
				Msg("Settings watcher shutting down")
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			w.handle(msg.Payload)
		}
	}
}

func (w *Watcher) handle(payload string) {
	var event ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Warn().
			Err(err).
			Str("component", "settings_watcher").
			Msg("Failed to parse settings change event")
		return
	}

	w.target.Invalidate(event.Environment)

	log.Info().
		Str("component", "settings_watcher").
		Str("environment", event.Environment).
		Str("key", event.Key).
		Msg("Settings cache invalidated")
}

// Publish announces a settings change to every watcher.
func Publish(ctx context.Context, client *redis.Client, channel string, event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel, data).Err()
}

// HealthCheck verifies the watcher is connected to Redis.
func (w *Watcher) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return w.redis.Ping(ctx).Err()
}
