package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/holdings/internal/core/domain"
)

// BlockMappingRepo implements storage.BlockMappingRepository using PostgreSQL.
type BlockMappingRepo struct {
	db *DB
}

// NewBlockMappingRepo creates a new PostgreSQL block mapping repository.
func NewBlockMappingRepo(db *DB) *BlockMappingRepo {
	return &BlockMappingRepo{db: db}
}

// Get retrieves the mapping for (networkID, date), or nil if unresolved.
func (r *BlockMappingRepo) Get(
	ctx context.Context,
	networkID string,
	date domain.Date,
) (*domain.BlockMapping, error) {
	query := `
		SELECT block_number, block_timestamp
		FROM block_mappings
		WHERE network_id = $1 AND snapshot_date = $2
	`

	var blockNumber, blockTimestamp int64
	err := r.db.QueryRowContext(ctx, query, networkID, string(date)).
		Scan(&blockNumber, &blockTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get block mapping: %w", err)
	}

	return &domain.BlockMapping{
		NetworkID:      networkID,
		Date:           date,
		BlockNumber:    uint64(blockNumber),
		BlockTimestamp: uint64(blockTimestamp),
	}, nil
}

// Put stores a resolved mapping. A mapping already present for the key is
// left untouched: once resolved, a date's block is immutable truth.
func (r *BlockMappingRepo) Put(ctx context.Context, m *domain.BlockMapping) error {
	query := `
		INSERT INTO block_mappings (network_id, snapshot_date, block_number, block_timestamp)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network_id, snapshot_date) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		m.NetworkID,
		string(m.Date),
		int64(m.BlockNumber),
		int64(m.BlockTimestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to save block mapping: %w", err)
	}
	return nil
}
