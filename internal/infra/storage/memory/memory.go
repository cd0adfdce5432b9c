package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/holdings/internal/core/domain"
)

// MemoryStorage is an in-memory persistence backend used for tests and for
// running without a database.
type MemoryStorage struct {
	snapshots map[domain.SnapshotKey]*domain.BalanceSnapshot
	mappings  map[string]*domain.BlockMapping
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		snapshots: make(map[domain.SnapshotKey]*domain.BalanceSnapshot),
		mappings:  make(map[string]*domain.BlockMapping),
	}
}

func mappingKey(networkID string, date domain.Date) string {
	return networkID + ":" + string(date)
}

// -----------------------------------------------------------------------------
// Snapshot Repository
// -----------------------------------------------------------------------------

type SnapshotRepo struct {
	store *MemoryStorage
}

func NewSnapshotRepo(store *MemoryStorage) *SnapshotRepo {
	return &SnapshotRepo{store: store}
}

func (r *SnapshotRepo) GetTimestamps(
	ctx context.Context,
	keys []domain.SnapshotKey,
) (map[domain.SnapshotKey]time.Time, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	found := make(map[domain.SnapshotKey]time.Time)
	for _, k := range keys {
		if s, ok := r.store.snapshots[k]; ok {
			found[k] = s.CapturedAt
		}
	}
	return found, nil
}

func (r *SnapshotRepo) UpsertBatch(ctx context.Context, snapshots []*domain.BalanceSnapshot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, s := range snapshots {
		copied := *s
		r.store.snapshots[s.Key()] = &copied
	}
	return nil
}

// DeleteSnapshotsBefore removes snapshots for dates before the cutoff.
// Dates compare lexicographically in YYYY-MM-DD form.
func (r *SnapshotRepo) DeleteSnapshotsBefore(ctx context.Context, cutoff domain.Date) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var removed int64
	for k := range r.store.snapshots {
		if k.Date < cutoff {
			delete(r.store.snapshots, k)
			removed++
		}
	}
	return removed, nil
}

// Get returns the stored snapshot for a key, or nil. Test helper.
func (r *SnapshotRepo) Get(key domain.SnapshotKey) *domain.BalanceSnapshot {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.snapshots[key]
	if !ok {
		return nil
	}
	copied := *s
	return &copied
}

// Len returns the number of stored snapshots. Test helper.
func (r *SnapshotRepo) Len() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.snapshots)
}

// -----------------------------------------------------------------------------
// Block Mapping Repository
// -----------------------------------------------------------------------------

type BlockMappingRepo struct {
	store *MemoryStorage
}

func NewBlockMappingRepo(store *MemoryStorage) *BlockMappingRepo {
	return &BlockMappingRepo{store: store}
}

func (r *BlockMappingRepo) Get(
	ctx context.Context,
	networkID string,
	date domain.Date,
) (*domain.BlockMapping, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	m, ok := r.store.mappings[mappingKey(networkID, date)]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (r *BlockMappingRepo) Put(ctx context.Context, m *domain.BlockMapping) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := mappingKey(m.NetworkID, m.Date)
	if _, ok := r.store.mappings[key]; ok {
		return nil // resolved mappings are immutable
	}
	copied := *m
	r.store.mappings[key] = &copied
	return nil
}
