package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks RPC calls per network and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdings_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"network", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per network and method
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdings_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"network", "method"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holdings_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "method"},
	)

	// RateLimitWaits counts admissions that had to wait for a token
	RateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdings_rate_limit_waits_total",
			Help: "Total number of rate limiter acquisitions that waited",
		},
		[]string{"network"},
	)

	// RateLimitTimeouts counts acquisition timeouts that triggered a retry
	RateLimitTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdings_rate_limit_timeouts_total",
			Help: "Total number of rate limiter acquisition timeouts",
		},
		[]string{"network"},
	)

	// SnapshotsWritten counts balance snapshots upserted per network
	SnapshotsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdings_snapshots_written_total",
			Help: "Total number of balance snapshots written",
		},
		[]string{"network"},
	)

	// SnapshotWriteFailures counts failed snapshot write transactions
	SnapshotWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holdings_snapshot_write_failures_total",
			Help: "Total number of failed snapshot write transactions",
		},
		[]string{"network"},
	)

	// MissingEntriesFound tracks missing entries detected per cycle
	MissingEntriesFound = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "holdings_missing_entries",
			Help: "Missing snapshot entries detected in the last cycle",
		},
		[]string{"partition"},
	)

	// ResolverSearchSteps tracks chain reads spent per block resolution
	ResolverSearchSteps = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holdings_resolver_search_steps",
			Help:    "Blocks inspected while resolving a date to a block",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 200},
		},
		[]string{"network"},
	)

	// CycleDuration tracks the duration of one reconciliation pass
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "holdings_cycle_duration_seconds",
			Help:    "Duration of one reconciliation pass",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// DBBatchSize tracks the size of batched database writes
	DBBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holdings_db_batch_size",
			Help:    "Number of rows per batched database operation",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"operation"},
	)

	// DBConnectionPoolUsage tracks connection pool utilization percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holdings_db_pool_usage_percent",
			Help: "Database connection pool utilization percentage",
		},
	)
)
