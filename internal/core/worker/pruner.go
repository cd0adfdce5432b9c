// Package worker holds background maintenance workers.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/holdings/internal/core/domain"
)

// SnapshotPruner deletes snapshots for dates before a cutoff, returning the
// number of rows removed.
type SnapshotPruner interface {
	DeleteSnapshotsBefore(ctx context.Context, cutoff domain.Date) (int64, error)
}

// Pruner deletes balance snapshots that fall outside the retention window.
// Block mappings are kept: they are tiny and re-deriving one costs chain
// reads.
type Pruner struct {
	retentionDays int
	snapshots     SnapshotPruner
	log           *slog.Logger
}

// NewPruner creates a pruner keeping the last retentionDays of snapshots.
func NewPruner(retentionDays int, snapshots SnapshotPruner) *Pruner {
	return &Pruner{
		retentionDays: retentionDays,
		snapshots:     snapshots,
		log:           slog.Default().With("component", "pruner"),
	}
}

// Start runs the pruner loop until the context is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.retentionDays <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := domain.DateOf(time.Now().UTC().AddDate(0, 0, -p.retentionDays))

	removed, err := p.snapshots.DeleteSnapshotsBefore(ctx, cutoff)
	if err != nil {
		p.log.Error("Failed to prune snapshots", "cutoff", cutoff, "error", err)
		return
	}
	if removed > 0 {
		p.log.Info("Pruned old snapshots", "cutoff", cutoff, "removed", removed)
	}
}
