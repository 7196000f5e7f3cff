// Package metrics exposes Prometheus instrumentation for the engagement
// layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors used across the service.
type Metrics struct {
	ConnectionsActive   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	EvictionsTotal      prometheus.Counter
	BroadcastsTotal     prometheus.Counter
	BroadcastDropsTotal prometheus.Counter
	TogglesTotal        *prometheus.CounterVec
	ToggleDuration      prometheus.Histogram
}

// New registers the engagement collectors on the given registerer and
// returns them. Passing prometheus.DefaultRegisterer wires them into the
// default /metrics output.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "engagement",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of currently registered websocket connections.",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "engagement",
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total websocket connections accepted since start.",
		}),
		EvictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "engagement",
			Subsystem: "websocket",
			Name:      "evictions_total",
			Help:      "Connections evicted for missing liveness acknowledgements.",
		}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "engagement",
			Subsystem: "websocket",
			Name:      "broadcasts_total",
			Help:      "Engagement events fanned out to connected clients.",
		}),
		BroadcastDropsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "engagement",
			Subsystem: "websocket",
			Name:      "broadcast_drops_total",
			Help:      "Per-connection deliveries dropped due to a full or dead connection.",
		}),
		TogglesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engagement",
			Subsystem: "upvote",
			Name:      "toggles_total",
			Help:      "Upvote toggles applied, partitioned by resulting action.",
		}, []string{"action"}),
		ToggleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "engagement",
			Subsystem: "upvote",
			Name:      "toggle_duration_seconds",
			Help:      "Latency of the upvote toggle transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
