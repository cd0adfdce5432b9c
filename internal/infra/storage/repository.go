package storage

import (
	"context"
	"time"

	"github.com/vietddude/holdings/internal/core/domain"
)

// SnapshotRepository stores balance snapshots keyed by
// (wallet, network, token, date).
type SnapshotRepository interface {
	// GetTimestamps looks up the capture timestamps for all given keys in a
	// single round trip. Keys with no stored snapshot are absent from the
	// returned map.
	GetTimestamps(ctx context.Context, keys []domain.SnapshotKey) (map[domain.SnapshotKey]time.Time, error)

	// UpsertBatch writes all snapshots in one transaction: insert if
	// absent, otherwise overwrite symbol, balance, block and timestamp. A
	// failure leaves none of the rows applied.
	UpsertBatch(ctx context.Context, snapshots []*domain.BalanceSnapshot) error
}

// BlockMappingRepository caches resolved (network, date) to block mappings.
type BlockMappingRepository interface {
	// Get returns the mapping for (networkID, date), or nil if unresolved.
	Get(ctx context.Context, networkID string, date domain.Date) (*domain.BlockMapping, error)

	// Put stores a resolved mapping. Mappings are immutable: a second Put
	// for the same key is a no-op.
	Put(ctx context.Context, m *domain.BlockMapping) error
}
