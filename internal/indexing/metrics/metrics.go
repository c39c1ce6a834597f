package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal tracks completed polling cycles
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mintwatch_cycles_total",
			Help: "Total number of completed polling cycles",
		},
	)

	// AddressScansTotal tracks per-address scan outcomes
	AddressScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintwatch_address_scans_total",
			Help: "Total number of address scans by result",
		},
		[]string{"result"}, // ok, error, cancelled
	)

	// VerdictsTotal tracks classification outcomes
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintwatch_verdicts_total",
			Help: "Total number of classified transactions by verdict",
		},
		[]string{"verdict"},
	)

	// MethodCacheHitsTotal tracks classifications served by the selector cache
	MethodCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintwatch_method_cache_hits_total",
			Help: "Total number of classifications answered from the method cache",
		},
		[]string{"partition"},
	)

	// PageFetchesTotal tracks transaction detail page fetches
	PageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintwatch_page_fetches_total",
			Help: "Total number of transaction detail page fetches",
		},
		[]string{"result"},
	)

	// NotificationsTotal tracks notification deliveries
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintwatch_notifications_total",
			Help: "Total number of mint notifications",
		},
		[]string{"result"},
	)

	// ExplorerRequestsTotal tracks explorer requests per endpoint
	ExplorerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintwatch_explorer_requests_total",
			Help: "Total number of explorer requests",
		},
		[]string{"endpoint", "result"},
	)

	// ExplorerLatency tracks explorer request latency
	ExplorerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mintwatch_explorer_latency_seconds",
			Help:    "Explorer request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// TrackedAddresses tracks the number of monitored addresses
	TrackedAddresses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mintwatch_tracked_addresses",
			Help: "Number of monitored addresses",
		},
	)

	// AddressNextBlock tracks the watermark of each monitored address
	AddressNextBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mintwatch_address_next_block",
			Help: "Lowest block not yet scanned for an address",
		},
		[]string{"address"},
	)

	// MissedTransactions tracks the size of the unclassified transaction journal
	MissedTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mintwatch_missed_transactions",
			Help: "Number of journaled transactions awaiting classification",
		},
	)

	// StateSavesTotal tracks state persistence attempts
	StateSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintwatch_state_saves_total",
			Help: "Total number of state document saves",
		},
		[]string{"result"},
	)

	// DBConnectionPoolUsage tracks the database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mintwatch_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
