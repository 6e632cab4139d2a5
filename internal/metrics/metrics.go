// Package metrics exposes the engine's own health counters via a
// prometheus registry. Concrete consumers (dashboards, alerting) are out
// of scope; this package only registers and exposes the series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every engine-level counter and gauge the daemon exposes.
type Metrics struct {
	BlocksIndexed       prometheus.Counter
	InscriptionsBlessed prometheus.Counter
	InscriptionsCursed  prometheus.Counter
	TransfersEmitted    prometheus.Counter
	RPCRetries          prometheus.Counter
	IndexedHeight       prometheus.Gauge
	LostSats            prometheus.Gauge
}

// New registers every series against reg and returns the bound handles.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BlocksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ordindex_blocks_indexed_total",
			Help: "Number of blocks fully committed by the inscription tracking engine.",
		}),
		InscriptionsBlessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ordindex_inscriptions_blessed_total",
			Help: "Number of blessed inscriptions assigned a positive number.",
		}),
		InscriptionsCursed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ordindex_inscriptions_cursed_total",
			Help: "Number of cursed inscriptions assigned a negative number.",
		}),
		TransfersEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ordindex_transfers_total",
			Help: "Number of transfer events emitted to registered handlers.",
		}),
		RPCRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "ordindex_rpc_retries_total",
			Help: "Number of tip-follow RPC retries after a transient failure.",
		}),
		IndexedHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ordindex_indexed_height",
			Help: "Last height whose block has been fully committed.",
		}),
		LostSats: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ordindex_lost_sats",
			Help: "Lifetime sum of unclaimed subsidy and fees.",
		}),
	}
}
