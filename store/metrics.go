package store

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the prometheus instrumentation surface for a TripleStore,
// grounded on froz-husain-PairDB's storage-node metrics (SPEC_FULL.md
// §10). A nil Metrics is never passed to a TripleStore — New falls back
// to NewMetrics(prometheus.NewRegistry()), a private registry per
// instance, since the default registry panics on MustRegister if more
// than one TripleStore is constructed with default Options in the same
// process (as happens routinely across a test package's test funcs).
type Metrics struct {
	TransactionsCommitted prometheus.Counter
	TransactionsCancelled prometheus.Counter
	TransactionsFailed    prometheus.Counter
	TransactionDuration   prometheus.Observer
	ScansStarted          prometheus.Counter
}

// NewMetrics registers the triple store's metrics against reg. Passing
// nil skips registration, returning counters/histograms that still work
// but are invisible to any scraper — useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	committed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tripledb_transactions_committed_total",
		Help: "Transactions committed successfully.",
	})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tripledb_transactions_cancelled_total",
		Help: "Transactions cancelled by a write-rule error.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tripledb_transactions_failed_total",
		Help: "Transactions whose backend commit failed.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tripledb_transaction_duration_seconds",
		Help:    "Wall-clock time spent inside Transact, including the user callback.",
		Buckets: prometheus.DefBuckets,
	})
	scans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tripledb_scans_started_total",
		Help: "Read scans issued directly against the multi-store.",
	})

	if reg != nil {
		reg.MustRegister(committed, cancelled, failed, duration, scans)
	}

	return &Metrics{
		TransactionsCommitted: committed,
		TransactionsCancelled: cancelled,
		TransactionsFailed:    failed,
		TransactionDuration:   duration,
		ScansStarted:          scans,
	}
}
