package blockchain

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlocksConnected    prometheus.Counter
	prometheusBlocksDisconnected prometheus.Counter
	prometheusBlocksRejected     prometheus.Counter
	prometheusBlocksOrphaned     prometheus.Counter
	prometheusBlocksSideChain    prometheus.Counter
	prometheusReorganizations    prometheus.Counter
	prometheusBlockValidation    prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(func() {
		prometheusBlocksConnected = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "blockchain",
			Name:      "blocks_connected_total",
			Help:      "Number of blocks connected to the best chain",
		})

		prometheusBlocksDisconnected = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "blockchain",
			Name:      "blocks_disconnected_total",
			Help:      "Number of blocks disconnected during reorganizations",
		})

		prometheusBlocksRejected = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "blockchain",
			Name:      "blocks_rejected_total",
			Help:      "Number of blocks that failed validation",
		})

		prometheusBlocksOrphaned = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "blockchain",
			Name:      "blocks_orphaned_total",
			Help:      "Number of blocks buffered while their parent was unknown",
		})

		prometheusBlocksSideChain = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "blockchain",
			Name:      "blocks_side_chain_total",
			Help:      "Number of blocks persisted on side chains",
		})

		prometheusReorganizations = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "blockchain",
			Name:      "reorganizations_total",
			Help:      "Number of completed chain reorganizations",
		})

		prometheusBlockValidation = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crownd",
			Subsystem: "blockchain",
			Name:      "block_validation_seconds",
			Help:      "Time spent fully validating and connecting a block",
			Buckets:   prometheus.DefBuckets,
		})
	})
}
