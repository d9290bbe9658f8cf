package p2p

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusPeersConnected        prometheus.Counter
	prometheusPeersDisconnected     prometheus.Counter
	prometheusBlocksReceived        prometheus.Counter
	prometheusInvalidBlocks         prometheus.Counter
	prometheusOrphanBlocks          prometheus.Counter
	prometheusBlockDownloadTimeouts prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(func() {
		prometheusPeersConnected = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "p2p",
			Name:      "peers_connected_total",
			Help:      "Number of peer sessions that completed the handshake",
		})

		prometheusPeersDisconnected = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "p2p",
			Name:      "peers_disconnected_total",
			Help:      "Number of peer sessions closed",
		})

		prometheusBlocksReceived = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "p2p",
			Name:      "blocks_received_total",
			Help:      "Number of blocks delivered by peers and processed",
		})

		prometheusInvalidBlocks = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "p2p",
			Name:      "invalid_blocks_total",
			Help:      "Number of blocks from peers that failed validation",
		})

		prometheusOrphanBlocks = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "p2p",
			Name:      "orphan_blocks_total",
			Help:      "Number of delivered blocks whose parent was unknown",
		})

		prometheusBlockDownloadTimeouts = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "crownd",
			Subsystem: "p2p",
			Name:      "block_download_timeouts_total",
			Help:      "Number of block downloads that timed out and were retried",
		})
	})
}
