// Package subscriber provides a reconnecting client for the engagement
// websocket feed. It delivers upvote count updates to registered handlers and
// transparently re-establishes dropped connections.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State describes the lifecycle of the subscription.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	// DefaultReconnectInterval is the fixed delay between reconnect attempts.
	DefaultReconnectInterval = 5 * time.Second

	// DefaultMaxReconnectAttempts bounds how many consecutive reconnects are
	// tried before giving up.
	DefaultMaxReconnectAttempts = 5

	// DefaultHeartbeatInterval is how often the client announces liveness.
	DefaultHeartbeatInterval = 30 * time.Second
)

// ErrClosed is returned when operations are attempted on a closed client.
var ErrClosed = errors.New("subscriber: client closed")

// Update is a single upvote count change received from the feed. It carries
// the authoritative count only: whether the viewing user has upvoted is local
// state the consumer must derive from its own actions, never from the feed.
type Update struct {
	ComplaintID  uuid.UUID `json:"complaintId"`
	UpvoteCount  int       `json:"upvoteCount"`
	ActingUserID uuid.UUID `json:"userId"`
	Timestamp    time.Time `json:"timestamp"`
}

// Handler receives count updates. Handlers run on the read goroutine and
// should return quickly.
type Handler func(Update)

// Options configures a Client.
type Options struct {
	// URL is the websocket endpoint, including any auth query parameters.
	URL string

	// ReconnectInterval is the fixed delay between reconnect attempts.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts bounds consecutive reconnects after a drop.
	MaxReconnectAttempts int

	// HeartbeatInterval is how often a heartbeat message is sent.
	HeartbeatInterval time.Duration

	// Dialer overrides the websocket dialer.
	Dialer *websocket.Dialer

	// Logger for connection lifecycle events.
	Logger *slog.Logger
}

type envelope struct {
	Type string `json:"type"`
}

// updateMessage mirrors the upvote_update frame: the counts ride under a
// "data" key next to the type discriminator and timestamp.
type updateMessage struct {
	Type string `json:"type"`
	Data struct {
		ComplaintID  uuid.UUID `json:"complaintId"`
		UpvoteCount  int       `json:"upvoteCount"`
		ActingUserID uuid.UUID `json:"userId"`
	} `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type heartbeatMessage struct {
	Type string `json:"type"`
}

// Client is a reconnecting engagement feed subscriber.
type Client struct {
	url               string
	reconnectInterval time.Duration
	maxAttempts       int
	heartbeatInterval time.Duration
	dialer            *websocket.Dialer
	logger            *slog.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	handlers []Handler
	closed   bool

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a client. Call Connect to start the subscription.
func New(opts Options) *Client {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		url:               opts.URL,
		reconnectInterval: opts.ReconnectInterval,
		maxAttempts:       opts.MaxReconnectAttempts,
		heartbeatInterval: opts.HeartbeatInterval,
		dialer:            opts.Dialer,
		logger:            opts.Logger.With("component", "engagement_subscriber"),
		done:              make(chan struct{}),
	}
}

// OnUpdate registers a handler for count updates.
func (c *Client) OnUpdate(fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the websocket connection and starts the read and
// heartbeat loops. Calling Connect while a connection is live or pending is a
// no-op, so a second socket is never opened.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}
	return nil
}

// Close terminates the subscription permanently. No reconnects happen after
// Close returns.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// dial opens a socket and starts the per-connection goroutines.
func (c *Client) dial(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("connected to engagement feed", "url", c.url)

	stopHeartbeat := make(chan struct{})
	go c.heartbeatLoop(conn, stopHeartbeat)
	go c.readLoop(ctx, conn, stopHeartbeat)
	return nil
}

// readLoop consumes frames until the connection drops, then schedules a
// reconnect.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, stopHeartbeat chan struct{}) {
	defer close(stopHeartbeat)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}
		c.handleMessage(message)
	}

	_ = conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	closed := c.closed
	c.state = StateDisconnected
	c.mu.Unlock()

	if closed {
		return
	}

	c.logger.Warn("engagement feed connection lost, reconnecting")
	go c.reconnectLoop(ctx)
}

// reconnectLoop retries the connection at a fixed interval until it succeeds
// or the attempt budget is spent.
func (c *Client) reconnectLoop(ctx context.Context) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectInterval):
		}

		c.mu.Lock()
		if c.closed || c.state != StateDisconnected {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()

		err := c.dial(ctx)
		if err == nil {
			return
		}

		c.setState(StateDisconnected)
		c.logger.Warn("reconnect attempt failed",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"error", err,
		)
	}

	c.logger.Error("giving up on engagement feed after exhausting reconnect attempts",
		"max_attempts", c.maxAttempts,
	)
}

// heartbeatLoop announces liveness until the connection goes away.
func (c *Client) heartbeatLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(heartbeatMessage{Type: "heartbeat"}); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Warn("dropping malformed feed message", "error", err)
		return
	}

	switch env.Type {
	case "connection_established":
		c.logger.Debug("engagement feed acknowledged connection")

	case "upvote_update":
		var msg updateMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("dropping malformed upvote update", "error", err)
			return
		}
		c.dispatch(Update{
			ComplaintID:  msg.Data.ComplaintID,
			UpvoteCount:  msg.Data.UpvoteCount,
			ActingUserID: msg.Data.ActingUserID,
			Timestamp:    msg.Timestamp,
		})

	case "pong":
		// Answer to an application-level ping, nothing to do.

	default:
		c.logger.Debug("ignoring unknown feed message", "type", env.Type)
	}
}

func (c *Client) dispatch(update Update) {
	c.mu.Lock()
	handlers := make([]Handler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(update)
	}
}
