// Package resolver maps calendar dates to the chain block that best
// represents the end of that UTC day.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/holdings/internal/core/domain"
	"github.com/vietddude/holdings/internal/infra/storage"
	"github.com/vietddude/holdings/internal/snapshot/emitter"
	"github.com/vietddude/holdings/internal/snapshot/metrics"
)

const (
	// DefaultBlockTimeMs is used when a network has no configured average
	// block time.
	DefaultBlockTimeMs = 12000

	// DefaultTolerance is the acceptable distance between a candidate
	// block's timestamp and the end-of-day target.
	DefaultTolerance = time.Hour

	// DefaultMaxSearchSteps bounds the corrective linear search.
	DefaultMaxSearchSteps = 100
)

// ChainReader is the subset of chain access the resolver needs.
type ChainReader interface {
	LatestBlock(ctx context.Context) (number uint64, timestamp uint64, err error)
	BlockAt(ctx context.Context, number uint64) (timestamp uint64, err error)
}

// Config holds the resolver's tuning knobs. Zero values fall back to the
// package defaults. The tolerance and step bound are empirically tuned;
// widen them with care.
type Config struct {
	Tolerance          time.Duration
	MaxSearchSteps     int
	DefaultBlockTimeMs int64
}

// Resolver resolves (network, date) pairs to block mappings, estimating
// from the network's average block time and correcting with a bounded
// search. Resolved mappings are cached and never recomputed. Chain read
// errors propagate to the caller without internal retries.
type Resolver struct {
	mappings storage.BlockMappingRepository
	emitter  emitter.Emitter
	cfg      Config
	log      *slog.Logger
}

// New creates a resolver backed by the given mapping cache.
func New(mappings storage.BlockMappingRepository, em emitter.Emitter, cfg Config) *Resolver {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.MaxSearchSteps <= 0 {
		cfg.MaxSearchSteps = DefaultMaxSearchSteps
	}
	if cfg.DefaultBlockTimeMs <= 0 {
		cfg.DefaultBlockTimeMs = DefaultBlockTimeMs
	}
	if em == nil {
		em = emitter.NopEmitter{}
	}
	return &Resolver{
		mappings: mappings,
		emitter:  em,
		cfg:      cfg,
		log:      slog.Default().With("component", "resolver"),
	}
}

// Resolve returns the block mapping for (network, date). A cached mapping
// is returned without any chain call. A date that has not ended yet
// resolves to the chain tip and is not cached, so it is re-resolved on the
// next cycle.
func (r *Resolver) Resolve(
	ctx context.Context,
	client ChainReader,
	network domain.Network,
	date domain.Date,
) (*domain.BlockMapping, error) {
	if cached, err := r.mappings.Get(ctx, network.ID, date); err != nil {
		r.log.Warn("block mapping lookup failed, resolving from chain",
			"network", network.ID, "date", date, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	end, err := date.EndOfDay()
	if err != nil {
		return nil, err
	}
	target := end.Unix()

	currentNum, currentTs, err := client.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest block on %s: %w", network.ID, err)
	}

	if target > int64(currentTs) {
		// The day has not closed yet; answer with the chain tip.
		return &domain.BlockMapping{
			NetworkID:      network.ID,
			Date:           date,
			BlockNumber:    currentNum,
			BlockTimestamp: currentTs,
		}, nil
	}

	blockTimeMs := network.BlockTimeMs
	if blockTimeMs <= 0 {
		blockTimeMs = r.cfg.DefaultBlockTimeMs
	}
	blocksAgo := (int64(currentTs) - target) * 1000 / blockTimeMs
	estimated := int64(currentNum) - blocksAgo
	if estimated < 0 {
		estimated = 0
	}

	number, timestamp, err := r.correct(ctx, client, network.ID, uint64(estimated), currentNum, target)
	if err != nil {
		return nil, err
	}

	mapping := &domain.BlockMapping{
		NetworkID:      network.ID,
		Date:           date,
		BlockNumber:    number,
		BlockTimestamp: timestamp,
	}
	if err := r.mappings.Put(ctx, mapping); err != nil {
		// The mapping is still valid for this cycle; it will be
		// re-resolved next time.
		r.log.Warn("failed to cache block mapping",
			"network", network.ID, "date", date, "error", err)
		return mapping, nil
	}
	r.emitter.Emit(ctx, emitter.NewEvent(emitter.EventBlockMappingChanged, network.ID, date))
	return mapping, nil
}

// correct refines an estimated block to the block whose timestamp best
// represents target, never choosing a block after target when any block at
// or before it was seen.
func (r *Resolver) correct(
	ctx context.Context,
	client ChainReader,
	networkID string,
	estimated, current uint64,
	target int64,
) (uint64, uint64, error) {
	steps := 0
	defer func() {
		metrics.ResolverSearchSteps.WithLabelValues(networkID).Observe(float64(steps))
	}()

	read := func(number uint64) (uint64, error) {
		steps++
		ts, err := client.BlockAt(ctx, number)
		if err != nil {
			return 0, fmt.Errorf("block %d on %s: %w", number, networkID, err)
		}
		return ts, nil
	}

	estTs, err := read(estimated)
	if err != nil {
		return 0, 0, err
	}

	tolerance := int64(r.cfg.Tolerance / time.Second)
	gap := target - int64(estTs)

	if gap < 0 {
		// The estimate landed after the target; walk backward until a
		// block at or before it.
		number, ts := estimated, estTs
		for int64(ts) > target && number > 0 {
			number--
			if ts, err = read(number); err != nil {
				return 0, 0, err
			}
		}
		return number, ts, nil
	}
	if gap <= tolerance {
		return estimated, estTs, nil
	}

	// The estimate is too far before the target; search forward, keeping
	// the closest block seen and the last block at or before the target.
	bestNum, bestTs, bestGap := estimated, estTs, gap
	belowNum, belowTs := estimated, estTs
	number := estimated
	for step := 0; step < r.cfg.MaxSearchSteps && number < current; step++ {
		number++
		ts, err := read(number)
		if err != nil {
			return 0, 0, err
		}

		g := target - int64(ts)
		abs := g
		if abs < 0 {
			abs = -abs
		}
		if abs > bestGap {
			// Gap started growing: the search passed the closest point.
			break
		}
		bestNum, bestTs, bestGap = number, ts, abs
		if g >= 0 {
			belowNum, belowTs = number, ts
		}
		if abs <= tolerance {
			break
		}
	}

	// Never represent a time after the requested end of day when a block
	// at or before it exists.
	if int64(bestTs) > target {
		return belowNum, belowTs, nil
	}
	return bestNum, bestTs, nil
}
