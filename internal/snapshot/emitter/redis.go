package emitter

import (
	"context"
	"encoding/json"
	"log/slog"

	redisclient "github.com/vietddude/holdings/internal/infra/redis"
)

// RedisEmitter publishes events to the Redis event channel so subscribers
// outside the process (a dashboard, for instance) can listen. Publish
// failures are logged, never surfaced.
type RedisEmitter struct {
	client *redisclient.Client
	log    *slog.Logger
}

// NewRedisEmitter creates an emitter backed by the given Redis client.
func NewRedisEmitter(client *redisclient.Client) *RedisEmitter {
	return &RedisEmitter{
		client: client,
		log:    slog.Default().With("component", "redis_emitter"),
	}
}

func (e *RedisEmitter) Emit(ctx context.Context, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		e.log.Warn("failed to marshal event", "type", event.Type, "error", err)
		return
	}
	if err := e.client.Publish(ctx, payload); err != nil {
		e.log.Warn("failed to publish event", "type", event.Type, "error", err)
	}
}

func (e *RedisEmitter) Close() error {
	return nil
}
