package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/swaraj/complaints-backend/internal/adapters/primary/validation"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Default cap on inbound frame size.
	defaultMaxMessageSize = 1024 * 1024

	// Default length of the per-connection outbound queue.
	defaultSendBufferSize = 64
)

// Conn wraps a single websocket connection with its outbound queue and
// liveness bookkeeping.
type Conn struct {
	// ID identifies this connection across the registry and logs.
	ID uuid.UUID

	// UserID is the authenticated user, or uuid.Nil for anonymous viewers.
	UserID uuid.UUID

	// RemoteAddr is the peer address, kept for diagnostic log lines after
	// the underlying connection is gone.
	RemoteAddr string

	registry *Registry
	conn     *websocket.Conn

	// send carries pre-serialized frames to the write pump.
	send chan []byte

	// lastAck holds the unix nanos of the last liveness signal.
	lastAck atomic.Int64

	maxMessageSize int64

	// closeOnce ensures the send channel is only closed once.
	closeOnce sync.Once

	logger *slog.Logger
}

// NewConn creates a connection wrapper. The registry takes ownership once
// Register is called.
func NewConn(registry *Registry, conn *websocket.Conn, userID uuid.UUID, logger *slog.Logger) *Conn {
	c := &Conn{
		ID:             uuid.New(),
		UserID:         userID,
		RemoteAddr:     conn.RemoteAddr().String(),
		registry:       registry,
		conn:           conn,
		send:           make(chan []byte, registry.sendBufferSize),
		maxMessageSize: registry.maxMessageSize,
	}
	c.logger = logger.With("connection_id", c.ID.String(), "remote_addr", c.RemoteAddr)
	c.Touch()
	return c
}

// Touch records a liveness signal from the peer.
func (c *Conn) Touch() {
	c.lastAck.Store(time.Now().UnixNano())
}

// LastAck returns the time of the most recent liveness signal.
func (c *Conn) LastAck() time.Time {
	return time.Unix(0, c.lastAck.Load())
}

// CloseSend safely closes the send channel exactly once.
func (c *Conn) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Ping sends a control-level ping frame. Safe to call concurrently with the
// write pump.
func (c *Conn) Ping(deadline time.Time) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// close tears down the underlying connection. The read pump exits on the
// resulting error.
func (c *Conn) close() {
	_ = c.conn.Close()
}

// enqueue offers a frame to the outbound queue without blocking. It reports
// false when the queue is full or already closed.
func (c *Conn) enqueue(frame []byte) (queued bool) {
	defer func() {
		if recover() != nil {
			queued = false
		}
	}()

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// enqueueJSON serializes v and offers it to the outbound queue.
func (c *Conn) enqueueJSON(v any) bool {
	frame, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal outbound message", "error", err)
		return false
	}
	return c.enqueue(frame)
}

// ReadPump pumps messages from the websocket connection into the message
// handlers. This method runs in its own goroutine.
func (c *Conn) ReadPump() {
	defer func() {
		c.registry.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.Touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump drains the outbound queue onto the wire. This method runs in its
// own goroutine and is the only writer of data frames.
func (c *Conn) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for frame := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			c.logger.Error("failed to set write deadline", "error", err)
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.logger.Error("failed to write message", "error", err)
			return
		}
	}

	// The registry closed the channel. Send close message.
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// handleIncomingMessage processes a frame received from the client. Malformed
// frames are logged and dropped without affecting the connection.
func (c *Conn) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("dropping malformed client message", "error", err)
		return
	}

	switch msg.Type {
	case TypePing:
		c.Touch()
		if !c.enqueueJSON(newPongMessage(c.ID.String())) {
			c.logger.Debug("pong dropped, send queue full")
		}

	case TypeHeartbeat:
		c.Touch()

	case TypeUpvoteAction:
		// Advisory only. Toggles go through the REST endpoint; the counts
		// arrive back over the broadcast channel.
		var d UpvoteActionData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			c.logger.Warn("dropping malformed upvote_action data", "error", err)
			return
		}
		if !validation.IsUUID(d.ComplaintID) {
			c.logger.Warn("dropping upvote_action with invalid complaint id", "complaint_id", d.ComplaintID)
			return
		}
		c.logger.Debug("client announced upvote action",
			"complaint_id", d.ComplaintID,
			"action", d.Action,
		)

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}
