package observability

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for ArcVault.
type Metrics struct {
	// --- Core Processing ---
	CoreEventsApplied  *prometheus.CounterVec
	CoreEventsRejected *prometheus.CounterVec
	CoreEventDuration  *prometheus.HistogramVec
	CoreJournals       *prometheus.CounterVec
	CoreSequence       prometheus.Gauge

	// --- Market state ---
	BorrowIndex             *prometheus.GaugeVec
	TotalCollateral         *prometheus.GaugeVec
	TotalNormalizedBorrowed *prometheus.GaugeVec
	VaultCount              *prometheus.GaugeVec
	MarketPaused            *prometheus.GaugeVec

	// --- Liquidation ---
	LiquidationsCompleted *prometheus.CounterVec
	BadDebtLiquidations   *prometheus.CounterVec
	CollateralSeized      *prometheus.CounterVec

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ProjectionDrops     prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency & Ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	EventSequenceGap      *prometheus.CounterVec
	EventOutOfOrder       *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistErrors          *prometheus.CounterVec
	PersistLastSequence    prometheus.Gauge
	PersistBatchDuration   prometheus.Histogram
	PersistBatchSize       prometheus.Histogram

	// --- Snapshot & Recovery ---
	SnapshotTaken     prometheus.Counter
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayEventsTotal prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreEventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_core_events_applied_total",
			Help: "Events successfully applied by the action engine",
		}, []string{"event_type"}),

		CoreEventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_core_events_rejected_total",
			Help: "Events rejected (dedup, gap, guard violation)",
		}, []string{"event_type", "reason"}),

		CoreEventDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arc_core_event_apply_duration_seconds",
			Help:    "Time to apply a single event",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		CoreJournals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arc_core_sequence",
			Help: "Current global sequence number",
		}),

		BorrowIndex: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arc_borrow_index",
			Help: "Current borrow index per market",
		}, []string{"market"}),

		TotalCollateral: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arc_total_collateral",
			Help: "Aggregate vault collateral per market",
		}, []string{"market"}),

		TotalNormalizedBorrowed: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arc_total_normalized_borrowed",
			Help: "Aggregate normalized debt per market",
		}, []string{"market"}),

		VaultCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arc_vault_count",
			Help: "Number of vaults ever created per market",
		}, []string{"market"}),

		MarketPaused: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arc_market_paused",
			Help: "1 when the market is paused",
		}, []string{"market"}),

		LiquidationsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_liquidations_completed_total",
			Help: "Successful liquidations",
		}, []string{"market"}),

		BadDebtLiquidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_bad_debt_liquidations_total",
			Help: "Liquidations capped at the vault's collateral",
		}, []string{"market"}),

		CollateralSeized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_collateral_seized_total",
			Help: "Collateral seized by liquidations (whole units)",
		}, []string{"market"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arc_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arc_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arc_projection_drops_total",
			Help: "Events dropped due to full projection channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arc_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"event_type", "tier"}),

		EventSequenceGap: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_event_sequence_gap_total",
			Help: "Sequence gaps detected per partition",
		}, []string{"partition"}),

		EventOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_event_out_of_order_total",
			Help: "Out-of-order events per partition",
		}, []string{"partition"}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arc_persist_events_written_total",
			Help: "Events written to the event log",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arc_persist_journals_written_total",
			Help: "Journal rows written",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_persist_errors_total",
			Help: "Persistence errors by operation",
		}, []string{"op"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arc_persist_last_sequence",
			Help: "Highest sequence durably committed",
		}),

		PersistBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arc_persist_batch_duration_seconds",
			Help:    "Batch flush latency",
			Buckets: latencyBuckets,
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arc_persist_batch_size",
			Help:    "Events per flushed batch",
			Buckets: []float64{1, 8, 32, 128, 512, 2048},
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arc_snapshot_taken_total",
			Help: "Snapshots persisted",
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arc_snapshot_size_bytes",
			Help: "Size of the most recent snapshot",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arc_snapshot_last_sequence",
			Help: "Sequence of the most recent snapshot",
		}),

		ReplayEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arc_replay_events_total",
			Help: "Events replayed during recovery",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arc_query_duration_seconds",
			Help:    "Query API latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_query_errors_total",
			Help: "Query API errors",
		}, []string{"endpoint"}),
	}
}

// AmountFloat converts an 18-decimal fixed-point amount to a float for
// metric reporting. Precision loss is acceptable for monitoring.
func AmountFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amount),
		big.NewFloat(1e18),
	).Float64()
	return f
}

// SetAmountGauge reports an 18-decimal fixed-point amount on a gauge.
func SetAmountGauge(g prometheus.Gauge, amount *big.Int) {
	g.Set(AmountFloat(amount))
}
