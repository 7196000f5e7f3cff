package subscriber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedServer is a minimal engagement feed endpoint for tests.
type feedServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	dials int
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()

	fs := &feedServer{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	fs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := fs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		fs.mu.Lock()
		fs.conns = append(fs.conns, conn)
		fs.dials++
		fs.mu.Unlock()

		_ = conn.WriteJSON(map[string]any{
			"type":     "connection_established",
			"clientId": uuid.NewString(),
		})

		// Drain inbound frames so heartbeats do not back up.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(fs.server.Close)
	return fs
}

func (fs *feedServer) url() string {
	return "ws" + strings.TrimPrefix(fs.server.URL, "http")
}

func (fs *feedServer) dialCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.dials
}

func (fs *feedServer) latestConn() *websocket.Conn {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.conns) == 0 {
		return nil
	}
	return fs.conns[len(fs.conns)-1]
}

func (fs *feedServer) broadcast(t *testing.T, update map[string]any) {
	t.Helper()
	conn := fs.latestConn()
	require.NotNil(t, conn)
	require.NoError(t, conn.WriteJSON(update))
}

func waitForState(t *testing.T, c *Client, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client never reached state %s, currently %s", want, c.State())
}

func newTestClient(fs *feedServer) *Client {
	return New(Options{
		URL:                  fs.url(),
		ReconnectInterval:    20 * time.Millisecond,
		MaxReconnectAttempts: 5,
		HeartbeatInterval:    time.Hour,
	})
}

func TestClient_ReceivesUpdates(t *testing.T) {
	fs := newFeedServer(t)
	client := newTestClient(fs)
	defer func() { _ = client.Close() }()

	updates := make(chan Update, 1)
	client.OnUpdate(func(u Update) { updates <- u })

	require.NoError(t, client.Connect(context.Background()))
	waitForState(t, client, StateConnected, time.Second)

	complaintID := uuid.New()
	actorID := uuid.New()
	fs.broadcast(t, map[string]any{
		"type": "upvote_update",
		"data": map[string]any{
			"complaintId": complaintID.String(),
			"upvoteCount": 9,
			"userId":      actorID.String(),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})

	select {
	case u := <-updates:
		assert.Equal(t, complaintID, u.ComplaintID)
		assert.Equal(t, 9, u.UpvoteCount)
		assert.Equal(t, actorID, u.ActingUserID)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestClient_ConnectTwiceOpensOneSocket(t *testing.T) {
	fs := newFeedServer(t)
	client := newTestClient(fs)
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Connect(context.Background()))
	waitForState(t, client, StateConnected, time.Second)

	require.NoError(t, client.Connect(context.Background()))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, fs.dialCount())
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	fs := newFeedServer(t)
	client := newTestClient(fs)
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Connect(context.Background()))
	waitForState(t, client, StateConnected, time.Second)

	// Kill the server side of the socket.
	require.NoError(t, fs.latestConn().Close())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fs.dialCount() >= 2 && client.State() == StateConnected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client did not reconnect, dials=%d state=%s", fs.dialCount(), client.State())
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	fs := newFeedServer(t)
	client := New(Options{
		URL:                  fs.url(),
		ReconnectInterval:    10 * time.Millisecond,
		MaxReconnectAttempts: 3,
		HeartbeatInterval:    time.Hour,
	})
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Connect(context.Background()))
	waitForState(t, client, StateConnected, time.Second)

	// Take the server down entirely so every reconnect fails.
	fs.server.CloseClientConnections()
	fs.server.Close()

	// Give the reconnect loop time to exhaust its budget.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, StateDisconnected, client.State())
	assert.Equal(t, 1, fs.dialCount())
}

func TestClient_CloseIsTerminal(t *testing.T) {
	fs := newFeedServer(t)
	client := newTestClient(fs)

	require.NoError(t, client.Connect(context.Background()))
	waitForState(t, client, StateConnected, time.Second)

	require.NoError(t, client.Close())
	assert.Equal(t, StateDisconnected, client.State())

	// No reconnect after an explicit close.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, fs.dialCount())

	assert.ErrorIs(t, client.Connect(context.Background()), ErrClosed)
}
