package websocket

import (
	"encoding/json"
	"log/slog"

	"github.com/swaraj/complaints-backend/internal/core/domain"
	"github.com/swaraj/complaints-backend/internal/core/ports"
	"github.com/swaraj/complaints-backend/internal/infrastructure/metrics"
)

// Dispatcher fans engagement events out to every registered connection.
type Dispatcher struct {
	registry *Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Ensure Dispatcher implements the EventBroadcaster interface.
var _ ports.EventBroadcaster = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher over the registry.
func NewDispatcher(registry *Registry, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		metrics:  m,
		logger:   logger.With("component", "broadcast_dispatcher"),
	}
}

// Publish serializes the event once and queues it on every live connection.
// It never blocks the caller: connections that cannot accept the frame are
// dropped and unregistered.
func (d *Dispatcher) Publish(event domain.EngagementEvent) {
	frame, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal engagement event",
			"event_type", event.Type,
			"complaint_id", event.Data.ComplaintID,
			"error", err,
		)
		return
	}

	d.metrics.BroadcastsTotal.Inc()

	delivered := 0
	d.registry.ForEachLive(func(c *Conn) {
		if c.enqueue(frame) {
			delivered++
			return
		}

		d.metrics.BroadcastDropsTotal.Inc()
		d.logger.Warn("send queue full, dropping connection",
			"connection_id", c.ID,
			"user_id", c.UserID,
		)
		d.registry.Unregister(c)
		c.close()
	})

	d.logger.Debug("broadcast delivered",
		"event_type", event.Type,
		"complaint_id", event.Data.ComplaintID,
		"upvote_count", event.Data.UpvoteCount,
		"client_count", delivered,
	)
}
