package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/swaraj/complaints-backend/internal/infrastructure/metrics"
)

const (
	// DefaultProbeInterval is how often idle connections are probed.
	DefaultProbeInterval = 30 * time.Second

	// DefaultStaleTimeout is how long a connection may stay silent before
	// it is evicted. Must exceed the probe interval.
	DefaultStaleTimeout = 60 * time.Second
)

// Monitor periodically probes registered connections and evicts the ones
// that stopped acknowledging.
type Monitor struct {
	registry      *Registry
	probeInterval time.Duration
	staleTimeout  time.Duration

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewMonitor creates a liveness monitor over the registry.
func NewMonitor(registry *Registry, probeInterval, staleTimeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Monitor {
	if probeInterval <= 0 {
		probeInterval = DefaultProbeInterval
	}
	if staleTimeout <= probeInterval {
		staleTimeout = DefaultStaleTimeout
	}
	return &Monitor{
		registry:      registry,
		probeInterval: probeInterval,
		staleTimeout:  staleTimeout,
		metrics:       m,
		logger:        logger.With("component", "liveness_monitor"),
	}
}

// Run probes connections until the context is cancelled. This method runs in
// its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep evicts stale connections and pings the rest.
func (m *Monitor) sweep() {
	now := time.Now()
	m.registry.ForEachLive(func(c *Conn) {
		silence := now.Sub(c.LastAck())
		if silence > m.staleTimeout {
			m.evict(c, silence)
			return
		}

		if err := c.Ping(now.Add(writeWait)); err != nil {
			m.logger.Debug("liveness probe failed",
				"connection_id", c.ID,
				"error", err,
			)
			m.evict(c, silence)
		}
	})
}

func (m *Monitor) evict(c *Conn, silence time.Duration) {
	m.logger.Info("evicting stale connection",
		"connection_id", c.ID,
		"user_id", c.UserID,
		"remote_addr", c.RemoteAddr,
		"silent_for", silence.String(),
	)
	m.metrics.EvictionsTotal.Inc()
	m.registry.Unregister(c)
	c.close()
}
