package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/holdings/internal/core/domain"
	"github.com/vietddude/holdings/internal/snapshot/metrics"
)

// SnapshotRepo implements storage.SnapshotRepository using PostgreSQL.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new PostgreSQL snapshot repository.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// GetTimestamps fetches capture timestamps for all keys in a single query
// by joining against the unnested key arrays.
func (r *SnapshotRepo) GetTimestamps(
	ctx context.Context,
	keys []domain.SnapshotKey,
) (map[domain.SnapshotKey]time.Time, error) {
	if len(keys) == 0 {
		return map[domain.SnapshotKey]time.Time{}, nil
	}

	wallets := make([]string, len(keys))
	networks := make([]string, len(keys))
	tokens := make([]string, len(keys))
	dates := make([]string, len(keys))
	for i, k := range keys {
		wallets[i] = k.WalletAddress
		networks[i] = k.NetworkID
		tokens[i] = k.TokenAddress
		dates[i] = string(k.Date)
	}

	metrics.DBBatchSize.WithLabelValues("get_timestamps").Observe(float64(len(keys)))

	query := `
		SELECT s.wallet_address, s.network_id, s.token_address, s.snapshot_date, s.captured_at
		FROM balance_snapshots s
		JOIN UNNEST($1::text[], $2::text[], $3::text[], $4::text[])
			AS k(wallet_address, network_id, token_address, snapshot_date)
		ON s.wallet_address = k.wallet_address
			AND s.network_id = k.network_id
			AND s.token_address = k.token_address
			AND s.snapshot_date = k.snapshot_date
	`

	rows, err := r.db.QueryContext(ctx, query,
		pq.Array(wallets), pq.Array(networks), pq.Array(tokens), pq.Array(dates))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot timestamps: %w", err)
	}
	defer rows.Close()

	found := make(map[domain.SnapshotKey]time.Time, len(keys))
	for rows.Next() {
		var k domain.SnapshotKey
		var date string
		var capturedAt time.Time
		if err := rows.Scan(&k.WalletAddress, &k.NetworkID, &k.TokenAddress, &date, &capturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot timestamp: %w", err)
		}
		k.Date = domain.Date(date)
		found[k] = capturedAt.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot timestamps: %w", err)
	}
	return found, nil
}

// UpsertBatch writes all snapshots in one transaction. Rows are keyed by
// (wallet, network, token, date); an existing row is fully overwritten.
func (r *SnapshotRepo) UpsertBatch(ctx context.Context, snapshots []*domain.BalanceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO balance_snapshots
			(wallet_address, network_id, token_address, snapshot_date, symbol, balance, block_number, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (wallet_address, network_id, token_address, snapshot_date) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			balance = EXCLUDED.balance,
			block_number = EXCLUDED.block_number,
			captured_at = EXCLUDED.captured_at
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snapshots {
		_, err := stmt.ExecContext(ctx,
			s.WalletAddress,
			s.NetworkID,
			s.TokenAddress,
			string(s.Date),
			s.Symbol,
			s.Balance,
			int64(s.BlockNumber),
			s.CapturedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert snapshot: %w", err)
		}
	}

	metrics.DBBatchSize.WithLabelValues("upsert_snapshots").Observe(float64(len(snapshots)))

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return nil
}

// DeleteSnapshotsBefore removes snapshots for dates before the cutoff.
func (r *SnapshotRepo) DeleteSnapshotsBefore(ctx context.Context, cutoff domain.Date) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM balance_snapshots WHERE snapshot_date < $1`, string(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted snapshots: %w", err)
	}
	return removed, nil
}
