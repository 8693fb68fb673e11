package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts ledger engine outcomes, labeled by terminal
	// result (completed, failed, duplicate).
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfers_total",
		Help: "Total transfers processed by the ledger engine",
	}, []string{"result"})

	// SyncBatchesTotal counts batch sync calls by outcome.
	SyncBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_sync_batches_total",
		Help: "Total sync batches processed",
	}, []string{"outcome"})

	// SyncBatchSize observes how many queued transfers arrive per batch.
	SyncBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_sync_batch_size",
		Help:    "Number of transfers per sync batch",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})

	// TransferDuration is the latency of a single transfer's atomic unit.
	TransferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_transfer_duration_seconds",
		Help:    "Latency distribution of transfer execution",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
)
