// Package reconcile compares required balance coverage against stored
// snapshots and produces the fetch work list for one update cycle.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/holdings/internal/core/domain"
	"github.com/vietddude/holdings/internal/infra/storage"
	"github.com/vietddude/holdings/internal/snapshot/metrics"
)

const (
	// DefaultTodayTolerance is how old today's snapshot may be before it
	// is refetched.
	DefaultTodayTolerance = time.Hour

	// DefaultHistoryTolerance is how far a historical snapshot's capture
	// timestamp may sit from that date's end-of-day instant. It is wider
	// than the today tolerance: some networks' block timestamps drift
	// irregularly, making last-hour convergence unreliable for past days.
	DefaultHistoryTolerance = 3 * time.Hour
)

// Config holds the engine's freshness tolerances. Zero values fall back to
// the package defaults.
type Config struct {
	TodayTolerance   time.Duration
	HistoryTolerance time.Duration
}

// Result partitions missing entries by whether they concern the current
// day (fetched at the chain tip) or a closed day (fetched at a resolved
// end-of-day block).
type Result struct {
	Today      []domain.MissingEntry
	Historical []domain.MissingEntry
}

// Engine detects missing or stale snapshots.
type Engine struct {
	snapshots storage.SnapshotRepository
	cfg       Config
	now       func() time.Time
	log       *slog.Logger
}

// New creates an engine over the given snapshot store.
func New(snapshots storage.SnapshotRepository, cfg Config) *Engine {
	if cfg.TodayTolerance <= 0 {
		cfg.TodayTolerance = DefaultTodayTolerance
	}
	if cfg.HistoryTolerance <= 0 {
		cfg.HistoryTolerance = DefaultHistoryTolerance
	}
	return &Engine{
		snapshots: snapshots,
		cfg:       cfg,
		now:       time.Now,
		log:       slog.Default().With("component", "reconcile"),
	}
}

// CheckMissing builds the required coverage set (every wallet on every
// network, native currency plus each tracked token, for today and the last
// historyDays calendar days), looks up all stored capture timestamps in
// one batched call, and emits every key that is absent or stale.
func (e *Engine) CheckMissing(
	ctx context.Context,
	networks []domain.Network,
	wallets []domain.Wallet,
	historyDays int,
) (*Result, error) {
	now := e.now().UTC()
	today := domain.DateOf(now)

	dates := make([]domain.Date, 0, historyDays+1)
	seen := map[domain.Date]struct{}{}
	for _, d := range append([]domain.Date{today}, domain.LastNDays(now, historyDays)...) {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}

	keys := requiredKeys(networks, wallets, dates)
	if len(keys) == 0 {
		return &Result{}, nil
	}

	stored, err := e.snapshots.GetTimestamps(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to look up snapshot timestamps: %w", err)
	}

	result := &Result{}
	for _, key := range keys {
		ts, ok := stored[key]
		if ok {
			fresh, err := e.isFresh(key.Date, ts, today, now)
			if err != nil {
				return nil, err
			}
			if fresh {
				continue
			}
		}

		entry := domain.MissingEntry{
			WalletAddress: key.WalletAddress,
			NetworkID:     key.NetworkID,
			TokenAddress:  key.TokenAddress,
			Date:          key.Date,
		}
		if key.Date == today {
			result.Today = append(result.Today, entry)
		} else {
			result.Historical = append(result.Historical, entry)
		}
	}

	metrics.MissingEntriesFound.WithLabelValues("today").Set(float64(len(result.Today)))
	metrics.MissingEntriesFound.WithLabelValues("historical").Set(float64(len(result.Historical)))
	e.log.Debug("reconciliation pass complete",
		"required", len(keys),
		"today_missing", len(result.Today),
		"historical_missing", len(result.Historical))
	return result, nil
}

// isFresh applies the freshness rule: today's snapshots must be captured
// within the today tolerance of the current instant; historical snapshots
// within the history tolerance of that date's end-of-day instant.
func (e *Engine) isFresh(date domain.Date, capturedAt time.Time, today domain.Date, now time.Time) (bool, error) {
	if date == today {
		return absDuration(now.Sub(capturedAt)) <= e.cfg.TodayTolerance, nil
	}

	end, err := date.EndOfDay()
	if err != nil {
		return false, err
	}
	return absDuration(capturedAt.Sub(end)) <= e.cfg.HistoryTolerance, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// requiredKeys enumerates wallet x network x (native + tokens) x date in a
// stable order.
func requiredKeys(networks []domain.Network, wallets []domain.Wallet, dates []domain.Date) []domain.SnapshotKey {
	var keys []domain.SnapshotKey
	for _, w := range wallets {
		for _, n := range networks {
			tokens := append([]domain.TokenInfo{n.NativeToken}, n.Tokens...)
			for _, tok := range tokens {
				for _, d := range dates {
					keys = append(keys, domain.SnapshotKey{
						WalletAddress: w.Address,
						NetworkID:     n.ID,
						TokenAddress:  tok.Address,
						Date:          d,
					})
				}
			}
		}
	}
	return keys
}
