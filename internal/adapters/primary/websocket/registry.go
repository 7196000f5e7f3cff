package websocket

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/swaraj/complaints-backend/internal/infrastructure/metrics"
)

// Registry tracks the set of active connections and owns their lifecycle.
type Registry struct {
	// mu protects the conns map
	mu    sync.RWMutex
	conns map[uuid.UUID]*Conn

	sendBufferSize int
	maxMessageSize int64

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// RegistryOptions tunes per-connection buffering.
type RegistryOptions struct {
	SendBufferSize int
	MaxMessageSize int64
}

// NewRegistry creates an empty connection registry.
func NewRegistry(opts RegistryOptions, m *metrics.Metrics, logger *slog.Logger) *Registry {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = defaultSendBufferSize
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	return &Registry{
		conns:          make(map[uuid.UUID]*Conn),
		sendBufferSize: opts.SendBufferSize,
		maxMessageSize: opts.MaxMessageSize,
		metrics:        m,
		logger:         logger.With("component", "websocket_registry"),
	}
}

// Register adds a connection and queues its connection_established
// acknowledgment.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	r.conns[c.ID] = c
	total := len(r.conns)
	r.mu.Unlock()

	r.metrics.ConnectionsTotal.Inc()
	r.metrics.ConnectionsActive.Set(float64(total))

	c.enqueueJSON(newWelcomeMessage(c.ID.String()))

	r.logger.Info("connection registered",
		"connection_id", c.ID,
		"user_id", c.UserID,
		"remote_addr", c.RemoteAddr,
		"total_connections", total,
	)
}

// Unregister removes a connection and closes its send channel. Calling it
// more than once for the same connection is harmless.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	current, ok := r.conns[c.ID]
	if ok && current == c {
		delete(r.conns, c.ID)
	} else {
		ok = false
	}
	total := len(r.conns)
	r.mu.Unlock()

	c.CloseSend()

	if !ok {
		return
	}

	r.metrics.ConnectionsActive.Set(float64(total))

	r.logger.Info("connection unregistered",
		"connection_id", c.ID,
		"user_id", c.UserID,
		"remote_addr", c.RemoteAddr,
		"total_connections", total,
	)
}

// ForEachLive calls fn for every registered connection. It iterates over a
// snapshot so fn may register or unregister connections without deadlocking.
func (r *Registry) ForEachLive(fn func(*Conn)) {
	r.mu.RLock()
	snapshot := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		fn(c)
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll unregisters every connection and closes its socket. Used during
// shutdown.
func (r *Registry) CloseAll() {
	r.ForEachLive(func(c *Conn) {
		r.Unregister(c)
		c.close()
	})
}
