package redis

import (
	"context"
	"log/slog"

	"github.com/vietddude/holdings/internal/core/domain"
	"github.com/vietddude/holdings/internal/infra/storage"
)

// MappingCache is a read-through cache in front of a block mapping
// repository. Cache failures are logged and fall through to the inner
// store; correctness never depends on Redis being up.
type MappingCache struct {
	inner  storage.BlockMappingRepository
	client *Client
	log    *slog.Logger
}

// NewMappingCache wraps a repository with a Redis cache.
func NewMappingCache(inner storage.BlockMappingRepository, client *Client) *MappingCache {
	return &MappingCache{
		inner:  inner,
		client: client,
		log:    slog.Default().With("component", "mapping_cache"),
	}
}

func (c *MappingCache) Get(
	ctx context.Context,
	networkID string,
	date domain.Date,
) (*domain.BlockMapping, error) {
	if m, found, err := c.client.GetBlockMapping(ctx, networkID, date); err != nil {
		c.log.Warn("cache read failed", "network", networkID, "date", date, "error", err)
	} else if found {
		return m, nil
	}

	m, err := c.inner.Get(ctx, networkID, date)
	if err != nil || m == nil {
		return m, err
	}

	if err := c.client.SetBlockMapping(ctx, m); err != nil {
		c.log.Warn("cache backfill failed", "network", networkID, "date", date, "error", err)
	}
	return m, nil
}

func (c *MappingCache) Put(ctx context.Context, m *domain.BlockMapping) error {
	if err := c.inner.Put(ctx, m); err != nil {
		return err
	}
	if err := c.client.SetBlockMapping(ctx, m); err != nil {
		c.log.Warn("cache write failed", "network", m.NetworkID, "date", m.Date, "error", err)
	}
	return nil
}
