// Package control wires the snapshot pipeline together and drives the
// periodic reconciliation loop.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/holdings/internal/core/config"
	"github.com/vietddude/holdings/internal/core/domain"
	"github.com/vietddude/holdings/internal/core/worker"
	"github.com/vietddude/holdings/internal/infra/chain"
	redisclient "github.com/vietddude/holdings/internal/infra/redis"
	"github.com/vietddude/holdings/internal/infra/storage"
	"github.com/vietddude/holdings/internal/infra/storage/memory"
	"github.com/vietddude/holdings/internal/infra/storage/postgres"
	"github.com/vietddude/holdings/internal/snapshot/emitter"
	"github.com/vietddude/holdings/internal/snapshot/fetcher"
	"github.com/vietddude/holdings/internal/snapshot/health"
	"github.com/vietddude/holdings/internal/snapshot/metrics"
	"github.com/vietddude/holdings/internal/snapshot/reconcile"
	"github.com/vietddude/holdings/internal/snapshot/resolver"
)

const rpcTimeout = 10 * time.Second

// Service is the main application struct that manages the snapshot
// pipeline lifecycle.
type Service struct {
	cfg          *config.AppConfig
	networks     []domain.Network
	wallets      []domain.Wallet
	registry     *chain.Registry
	engine       *reconcile.Engine
	resolver     *resolver.Resolver
	fetcher      *fetcher.Fetcher
	pruner       *worker.Pruner
	bus          *emitter.Bus
	emitters     emitter.Emitter
	db           *postgres.DB
	redisClient  *redisclient.Client
	healthServer *health.Server
	log          *slog.Logger
}

// NewService creates a Service with all dependencies initialized.
func NewService(cfg *config.AppConfig) (*Service, error) {
	// 1. Storage
	var snapshotRepo storage.SnapshotRepository
	var mappingRepo storage.BlockMappingRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		snapshotRepo = postgres.NewSnapshotRepo(db)
		mappingRepo = postgres.NewBlockMappingRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		snapshotRepo = memory.NewSnapshotRepo(store)
		mappingRepo = memory.NewBlockMappingRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Event bus, optionally fanned out to redis pub/sub
	bus := emitter.NewBus()
	emitters := emitter.MultiEmitter{bus}

	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, proceeding without cache", "error", err)
		} else {
			mappingRepo = redisclient.NewMappingCache(mappingRepo, redisClient)
			emitters = append(emitters, emitter.NewRedisEmitter(redisClient))
			slog.Info("Redis connected", "cache", "block mappings", "pubsub", redisclient.EventChannel)
		}
	}

	// 3. Chain clients and pipeline stages
	networks := cfg.DomainNetworks()
	wallets := cfg.DomainWallets()
	registry := chain.NewRegistry(networks, rpcTimeout)

	checkers := map[string]health.Checker{}
	if db != nil {
		checkers["database"] = db.Health
	}
	if redisClient != nil {
		checkers["redis"] = redisClient.Health
	}

	var pruner *worker.Pruner
	if cfg.RetentionDays > 0 {
		if p, ok := snapshotRepo.(worker.SnapshotPruner); ok {
			pruner = worker.NewPruner(cfg.RetentionDays, p)
		}
	}

	return &Service{
		cfg:          cfg,
		networks:     networks,
		wallets:      wallets,
		registry:     registry,
		engine:       reconcile.New(snapshotRepo, reconcile.Config{}),
		resolver:     resolver.New(mappingRepo, emitters, resolver.Config{}),
		fetcher:      fetcher.New(snapshotRepo, emitters, fetcher.Config{}),
		pruner:       pruner,
		bus:          bus,
		emitters:     emitters,
		db:           db,
		redisClient:  redisClient,
		healthServer: health.NewServer(cfg.Server.Port, checkers),
		log:          slog.Default().With("component", "service"),
	}, nil
}

// Run executes one reconciliation pass immediately, then again on every
// update interval tick until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Health server failed", "error", err)
		}
	}()
	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}
	if s.pruner != nil {
		go s.pruner.Start(ctx)
	}

	s.log.Info("Starting snapshot service",
		"networks", len(s.networks),
		"wallets", len(s.wallets),
		"history_days", s.cfg.HistoryDays,
		"interval", s.cfg.UpdateInterval)

	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("Reconciliation pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single reconciliation pass.
func (s *Service) RunOnce(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	result, err := s.engine.CheckMissing(ctx, s.networks, s.wallets, s.cfg.HistoryDays)
	if err != nil {
		return fmt.Errorf("reconciliation check failed: %w", err)
	}
	if len(result.Today) == 0 && len(result.Historical) == 0 {
		s.log.Debug("All snapshots fresh, nothing to fetch")
		return nil
	}

	var errs []error
	if err := s.fetchToday(ctx, result.Today); err != nil {
		errs = append(errs, err)
	}
	if err := s.fetchHistorical(ctx, result.Historical); err != nil {
		errs = append(errs, err)
	}

	s.log.Info("Reconciliation pass complete",
		"today_entries", len(result.Today),
		"historical_entries", len(result.Historical),
		"duration", time.Since(start).Round(time.Millisecond))
	return errors.Join(errs...)
}

// Stop shuts down the service and releases its resources.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping snapshot service...")

	if err := s.emitters.Close(); err != nil {
		s.log.Warn("Failed to close emitters", "error", err)
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}
	return s.healthServer.Stop(ctx)
}

// Events exposes the in-process event stream.
func (s *Service) Events(buffer int) (<-chan *emitter.Event, func()) {
	return s.bus.Subscribe(buffer)
}

// fetchToday fetches today's entries at each network's chain tip. Networks
// run concurrently and fail independently; one network's error must not
// cancel a sibling's in-flight fetch. Each network resolves its tip once
// and fetches all its wallets at that block.
func (s *Service) fetchToday(ctx context.Context, entries []domain.MissingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	// All today-partition entries carry the same date; using it instead of
	// re-reading the clock keeps the written key aligned with the
	// reconciled key across a midnight boundary.
	date := entries[0].Date
	byNetwork := groupWallets(entries, func(e domain.MissingEntry) string { return e.NetworkID })

	var g errgroup.Group
	for networkID, wallets := range byNetwork {
		g.Go(func() error {
			client, network, ok := s.lookup(networkID)
			if !ok {
				return nil
			}
			blockNum, blockTs, err := client.LatestBlock(ctx)
			if err != nil {
				s.log.Error("Failed to read chain tip, skipping network this cycle",
					"network", networkID, "error", err)
				return nil
			}
			return s.fetcher.FetchAndSave(ctx, client, network, wallets, blockNum, blockTs, date)
		})
	}
	return g.Wait()
}

// fetchHistorical fetches past-day entries, grouped by date so each
// (network, date) pair resolves its block once, then by network. When a
// date cannot be resolved the group degrades to the chain tip; the mapping
// stays uncached and the date is retried next cycle.
func (s *Service) fetchHistorical(ctx context.Context, entries []domain.MissingEntry) error {
	byDate := map[domain.Date][]domain.MissingEntry{}
	for _, e := range entries {
		byDate[e.Date] = append(byDate[e.Date], e)
	}

	var errs []error
	for date, dateEntries := range byDate {
		byNetwork := groupWallets(dateEntries, func(e domain.MissingEntry) string { return e.NetworkID })

		var g errgroup.Group
		for networkID, wallets := range byNetwork {
			g.Go(func() error {
				client, network, ok := s.lookup(networkID)
				if !ok {
					return nil
				}

				var blockNum, blockTs uint64
				mapping, err := s.resolver.Resolve(ctx, client, network, date)
				if err == nil {
					blockNum, blockTs = mapping.BlockNumber, mapping.BlockTimestamp
				} else {
					s.log.Error("Block resolution failed, degrading to chain tip",
						"network", networkID, "date", date, "error", err)
					blockNum, blockTs, err = client.LatestBlock(ctx)
					if err != nil {
						s.log.Error("Failed to read chain tip, skipping group this cycle",
							"network", networkID, "date", date, "error", err)
						return nil
					}
				}
				return s.fetcher.FetchAndSave(ctx, client, network, wallets, blockNum, blockTs, date)
			})
		}
		if err := g.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// lookup resolves a network id to its client and configuration, logging
// and skipping ids that are no longer configured.
func (s *Service) lookup(networkID string) (chain.Client, domain.Network, bool) {
	client, ok := s.registry.Client(networkID)
	if !ok {
		s.log.Warn("Skipping unconfigured network", "network", networkID)
		return nil, domain.Network{}, false
	}
	network, _ := s.registry.Network(networkID)
	return client, network, true
}

// groupWallets collapses missing entries to the distinct wallets per group
// key. The fetcher reads every asset of a wallet in one pass, so per-token
// entries of the same wallet fold into one unit of work.
func groupWallets(entries []domain.MissingEntry, key func(domain.MissingEntry) string) map[string][]domain.Wallet {
	seen := map[string]map[string]struct{}{}
	out := map[string][]domain.Wallet{}
	for _, e := range entries {
		k := key(e)
		if seen[k] == nil {
			seen[k] = map[string]struct{}{}
		}
		if _, dup := seen[k][e.WalletAddress]; dup {
			continue
		}
		seen[k][e.WalletAddress] = struct{}{}
		out[k] = append(out[k], domain.Wallet{Address: e.WalletAddress})
	}
	return out
}
