// Package fetcher reads wallet balances at a fixed block and persists them
// as snapshots, batching wallets to bound transaction size and RPC fan-out.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/holdings/internal/core/domain"
	"github.com/vietddude/holdings/internal/infra/chain"
	"github.com/vietddude/holdings/internal/infra/chain/evm"
	"github.com/vietddude/holdings/internal/infra/storage"
	"github.com/vietddude/holdings/internal/snapshot/emitter"
	"github.com/vietddude/holdings/internal/snapshot/metrics"
)

// DefaultBatchSize is how many wallets share one batched read and one
// write transaction.
const DefaultBatchSize = 5

// Config holds fetcher tuning. A zero BatchSize falls back to the default.
type Config struct {
	BatchSize int
}

// Fetcher reads balances for groups of wallets and upserts the resulting
// snapshots. Each batch of wallets is one multi-read against the chain and
// one transaction against the store, so a failure in one batch never rolls
// back another.
type Fetcher struct {
	snapshots storage.SnapshotRepository
	emitter   emitter.Emitter
	cfg       Config
	log       *slog.Logger
}

// New creates a fetcher writing to the given snapshot store.
func New(snapshots storage.SnapshotRepository, em emitter.Emitter, cfg Config) *Fetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if em == nil {
		em = emitter.NopEmitter{}
	}
	return &Fetcher{
		snapshots: snapshots,
		emitter:   em,
		cfg:       cfg,
		log:       slog.Default().With("component", "fetcher"),
	}
}

// FetchAndSave reads the native balance and every tracked token balance of
// each wallet at the given block and upserts them under the given date.
// Wallets are processed in batches; a failed batch is reported and skipped
// while the remaining batches proceed. The returned error joins all batch
// failures.
func (f *Fetcher) FetchAndSave(
	ctx context.Context,
	client chain.Client,
	network domain.Network,
	wallets []domain.Wallet,
	blockNumber uint64,
	blockTimestamp uint64,
	date domain.Date,
) error {
	var errs []error
	for start := 0; start < len(wallets); start += f.cfg.BatchSize {
		end := start + f.cfg.BatchSize
		if end > len(wallets) {
			end = len(wallets)
		}
		if err := f.fetchBatch(ctx, client, network, wallets[start:end], blockNumber, blockTimestamp, date); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fetchBatch issues one batched read covering every asset of every wallet
// in the batch, then writes all resulting snapshots in one transaction.
func (f *Fetcher) fetchBatch(
	ctx context.Context,
	client chain.Client,
	network domain.Network,
	wallets []domain.Wallet,
	blockNumber uint64,
	blockTimestamp uint64,
	date domain.Date,
) error {
	calls, keys := buildCalls(network, wallets, date)

	results, err := client.BatchRead(ctx, calls, blockNumber)
	if err != nil {
		f.reportFailure(ctx, network, wallets, date, err)
		return fmt.Errorf("batch read on %s failed: %w", network.ID, err)
	}
	if len(results) != len(calls) {
		err := fmt.Errorf("batch read on %s returned %d results for %d calls", network.ID, len(results), len(calls))
		f.reportFailure(ctx, network, wallets, date, err)
		return err
	}

	capturedAt := time.Unix(int64(blockTimestamp), 0).UTC()
	snapshots := make([]*domain.BalanceSnapshot, len(results))
	for i, res := range results {
		balance := res.Value
		if res.Absent {
			// A missing or reverted read is recorded as zero so the
			// entry does not stay permanently unfilled.
			balance = "0"
		}
		snapshots[i] = &domain.BalanceSnapshot{
			WalletAddress: keys[i].key.WalletAddress,
			NetworkID:     keys[i].key.NetworkID,
			TokenAddress:  keys[i].key.TokenAddress,
			Date:          keys[i].key.Date,
			Symbol:        keys[i].symbol,
			Balance:       balance,
			BlockNumber:   blockNumber,
			CapturedAt:    capturedAt,
		}
	}

	if err := f.snapshots.UpsertBatch(ctx, snapshots); err != nil {
		metrics.SnapshotWriteFailures.WithLabelValues(network.ID).Inc()
		f.reportFailure(ctx, network, wallets, date, err)
		return fmt.Errorf("failed to write %d snapshots on %s: %w", len(snapshots), network.ID, err)
	}

	metrics.SnapshotsWritten.WithLabelValues(network.ID).Add(float64(len(snapshots)))
	metrics.DBBatchSize.WithLabelValues("snapshot_upsert").Observe(float64(len(snapshots)))
	f.log.Debug("snapshot batch written",
		"network", network.ID,
		"date", date,
		"wallets", len(wallets),
		"rows", len(snapshots),
		"block", blockNumber)

	ev := emitter.NewEvent(emitter.EventBalancesChanged, network.ID, date)
	ev.Wallets = len(wallets)
	f.emitter.Emit(ctx, ev)
	return nil
}

// callKey pairs a batch call index with the snapshot it will produce.
type callKey struct {
	key    domain.SnapshotKey
	symbol string
}

// buildCalls lays out one batch: native reads for every wallet first, then
// token reads grouped by token and ordered by wallet within each token.
func buildCalls(network domain.Network, wallets []domain.Wallet, date domain.Date) ([]evm.BalanceCall, []callKey) {
	perWallet := 1 + len(network.Tokens)
	calls := make([]evm.BalanceCall, 0, len(wallets)*perWallet)
	keys := make([]callKey, 0, len(wallets)*perWallet)

	for _, w := range wallets {
		calls = append(calls, evm.BalanceCall{
			TokenAddress:  domain.NativeTokenAddress,
			WalletAddress: w.Address,
		})
		keys = append(keys, callKey{
			key: domain.SnapshotKey{
				WalletAddress: w.Address,
				NetworkID:     network.ID,
				TokenAddress:  domain.NativeTokenAddress,
				Date:          date,
			},
			symbol: network.NativeToken.Symbol,
		})
	}
	for _, tok := range network.Tokens {
		for _, w := range wallets {
			calls = append(calls, evm.BalanceCall{
				TokenAddress:  tok.Address,
				WalletAddress: w.Address,
			})
			keys = append(keys, callKey{
				key: domain.SnapshotKey{
					WalletAddress: w.Address,
					NetworkID:     network.ID,
					TokenAddress:  tok.Address,
					Date:          date,
				},
				symbol: tok.Symbol,
			})
		}
	}
	return calls, keys
}

func (f *Fetcher) reportFailure(ctx context.Context, network domain.Network, wallets []domain.Wallet, date domain.Date, cause error) {
	f.log.Error("snapshot batch failed",
		"network", network.ID,
		"date", date,
		"wallets", len(wallets),
		"error", cause)
	ev := emitter.NewEvent(emitter.EventSnapshotWriteFailed, network.ID, date)
	ev.Wallets = len(wallets)
	ev.Error = cause.Error()
	f.emitter.Emit(ctx, ev)
}
