// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Poller metrics
	PollsTotal         prometheus.Counter
	PollErrors         prometheus.Counter
	SamplesStored      prometheus.Counter
	ValuationsComputed prometheus.Counter
	ValuationErrors    prometheus.Counter

	// Portfolio metrics
	ReconstructionsTotal   prometheus.Counter
	ReconstructionDuration prometheus.Histogram
	TokensReconstructed    prometheus.Histogram
	MetadataFetchErrors    prometheus.Counter

	// Transaction metrics
	TransactionsTotal   *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec

	// Session metrics
	AccountSwitches prometheus.Counter
	SessionActive   prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
	UptimeSeconds      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "walletzone"
	}

	return &Metrics{
		// RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ethereum RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of Ethereum RPC call errors by method",
		}, []string{"method"}),

		// Poller metrics
		PollsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Total number of balance poll attempts",
		}),
		PollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "poll_errors_total",
			Help:      "Total number of failed balance polls",
		}),
		SamplesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "samples_stored_total",
			Help:      "Total number of balance samples stored to database",
		}),
		ValuationsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "valuations_computed_total",
			Help:      "Total number of USD valuations computed",
		}),
		ValuationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "valuation_errors_total",
			Help:      "Total number of valuations unavailable due to a failed input read",
		}),

		// Portfolio metrics
		ReconstructionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "reconstructions_total",
			Help:      "Total number of NFT state reconstructions",
		}),
		ReconstructionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "reconstruction_duration_seconds",
			Help:      "NFT state reconstruction duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TokensReconstructed: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "tokens_reconstructed",
			Help:      "Number of tokens returned per reconstruction",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		MetadataFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "metadata_fetch_errors_total",
			Help:      "Total number of failed NFT metadata fetches",
		}),

		// Transaction metrics
		TransactionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txflow",
			Name:      "transactions_total",
			Help:      "Total number of submitted transactions by kind and outcome",
		}, []string{"kind", "outcome"}),
		TransactionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "txflow",
			Name:      "transaction_duration_seconds",
			Help:      "Submission-to-receipt duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"kind"}),

		// Session metrics
		AccountSwitches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "account_switches_total",
			Help:      "Total number of observed account switches",
		}),
		SessionActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "session_active",
			Help:      "1 when a wallet session is connected, 0 otherwise",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful balance poll",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPoll records one balance poll attempt and its outcome.
func RecordPoll(err error) {
	DefaultMetrics.PollsTotal.Inc()
	if err != nil {
		DefaultMetrics.PollErrors.Inc()
	}
}

// RecordSampleStored increments the stored samples counter.
func RecordSampleStored() {
	DefaultMetrics.SamplesStored.Inc()
}

// RecordValuation records one valuation attempt and its outcome.
func RecordValuation(err error) {
	if err != nil {
		DefaultMetrics.ValuationErrors.Inc()
		return
	}
	DefaultMetrics.ValuationsComputed.Inc()
}

// RecordReconstruction records one NFT state reconstruction.
func RecordReconstruction(durationSeconds float64, tokens int) {
	DefaultMetrics.ReconstructionsTotal.Inc()
	DefaultMetrics.ReconstructionDuration.Observe(durationSeconds)
	DefaultMetrics.TokensReconstructed.Observe(float64(tokens))
}

// RecordTransaction records one settled transaction submission.
func RecordTransaction(kind, outcome string, durationSeconds float64) {
	DefaultMetrics.TransactionsTotal.WithLabelValues(kind, outcome).Inc()
	DefaultMetrics.TransactionDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
