package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/holdings/internal/core/domain"
)

// EventChannel is the pub/sub channel change notifications are published to.
const EventChannel = "holdings:events"

// Client wraps Redis operations for the snapshot pipeline: a best-effort
// cache of resolved block mappings and pub/sub fan-out of change events.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks if the connection is alive.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func mappingKey(networkID string, date domain.Date) string {
	return fmt.Sprintf("block_map:%s:%s", networkID, date)
}

type cachedMapping struct {
	BlockNumber    uint64 `json:"block"`
	BlockTimestamp uint64 `json:"ts"`
}

// GetBlockMapping returns the cached mapping for (networkID, date), with
// found=false on a miss.
func (c *Client) GetBlockMapping(
	ctx context.Context,
	networkID string,
	date domain.Date,
) (*domain.BlockMapping, bool, error) {
	raw, err := c.rdb.Get(ctx, mappingKey(networkID, date)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var cached cachedMapping
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, false, fmt.Errorf("invalid cached mapping: %w", err)
	}
	return &domain.BlockMapping{
		NetworkID:      networkID,
		Date:           date,
		BlockNumber:    cached.BlockNumber,
		BlockTimestamp: cached.BlockTimestamp,
	}, true, nil
}

// SetBlockMapping caches a resolved mapping. Mappings are immutable so no
// TTL is set.
func (c *Client) SetBlockMapping(ctx context.Context, m *domain.BlockMapping) error {
	raw, err := json.Marshal(cachedMapping{
		BlockNumber:    m.BlockNumber,
		BlockTimestamp: m.BlockTimestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	if err := c.rdb.Set(ctx, mappingKey(m.NetworkID, m.Date), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Publish sends a change-notification payload to the event channel.
// Delivery is fire-and-forget: subscribers that are not listening miss the
// message.
func (c *Client) Publish(ctx context.Context, payload []byte) error {
	if err := c.rdb.Publish(ctx, EventChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}
