package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swaraj/complaints-backend/internal/core/domain"
	"github.com/swaraj/complaints-backend/internal/infrastructure/metrics"
)

type wsFixture struct {
	registry *Registry
	server   *httptest.Server
	accepted chan *Conn
}

func newWSFixture(t *testing.T, opts RegistryOptions) *wsFixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	f := &wsFixture{
		registry: NewRegistry(opts, metrics.New(prometheus.NewRegistry()), logger),
		accepted: make(chan *Conn, 16),
	}

	upgrader := gws.Upgrader{
		EnableCompression: false,
		CheckOrigin:       func(*http.Request) bool { return true },
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		c := NewConn(f.registry, raw, uuid.Nil, logger)
		f.registry.Register(c)
		go c.WritePump()
		go c.ReadPump()
		f.accepted <- c
	}))
	t.Cleanup(f.server.Close)

	return f
}

// dial connects a client and consumes the connection_established ack.
func (f *wsFixture) dial(t *testing.T) (*gws.Conn, *Conn) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	client, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	var welcome WelcomeMessage
	require.NoError(t, client.ReadJSON(&welcome))
	require.Equal(t, TypeConnectionEstablished, welcome.Type)
	require.NotEmpty(t, welcome.ClientID)

	serverConn := <-f.accepted
	return client, serverConn
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	f := newWSFixture(t, RegistryOptions{})

	_, serverConn := f.dial(t)
	assert.Equal(t, 1, f.registry.Len())

	f.registry.Unregister(serverConn)
	assert.Equal(t, 0, f.registry.Len())

	// A second unregister of the same connection is a no-op.
	f.registry.Unregister(serverConn)
	assert.Equal(t, 0, f.registry.Len())
}

func TestConn_PingGetsPong(t *testing.T) {
	f := newWSFixture(t, RegistryOptions{})
	client, serverConn := f.dial(t)

	before := serverConn.LastAck()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, client.WriteJSON(ClientMessage{Type: TypePing}))

	var pong PongMessage
	require.NoError(t, client.ReadJSON(&pong))
	assert.Equal(t, TypePong, pong.Type)
	assert.Equal(t, serverConn.ID.String(), pong.ClientID)
	assert.False(t, pong.Timestamp.IsZero())

	assert.True(t, serverConn.LastAck().After(before))
}

func TestConn_HeartbeatRefreshesLiveness(t *testing.T) {
	f := newWSFixture(t, RegistryOptions{})
	client, serverConn := f.dial(t)

	before := serverConn.LastAck()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, client.WriteJSON(ClientMessage{Type: TypeHeartbeat}))

	waitFor(t, time.Second, func() bool {
		return serverConn.LastAck().After(before)
	})
}

func TestConn_UpvoteActionNotificationAccepted(t *testing.T) {
	f := newWSFixture(t, RegistryOptions{})
	client, _ := f.dial(t)

	data, err := json.Marshal(UpvoteActionData{
		ComplaintID: uuid.NewString(),
		Action:      "added",
	})
	require.NoError(t, err)
	require.NoError(t, client.WriteJSON(ClientMessage{Type: TypeUpvoteAction, Data: data}))

	// The notification is advisory: the connection stays registered and
	// keeps answering pings.
	require.NoError(t, client.WriteJSON(ClientMessage{Type: TypePing}))
	var pong PongMessage
	require.NoError(t, client.ReadJSON(&pong))
	assert.Equal(t, TypePong, pong.Type)
	assert.Equal(t, 1, f.registry.Len())
}

func TestConn_MalformedMessageKeepsConnection(t *testing.T) {
	f := newWSFixture(t, RegistryOptions{})
	client, serverConn := f.dial(t)

	require.NoError(t, client.WriteMessage(gws.TextMessage, []byte("{not json")))

	// The connection survives and still answers pings.
	require.NoError(t, client.WriteJSON(ClientMessage{Type: TypePing}))
	var pong PongMessage
	require.NoError(t, client.ReadJSON(&pong))
	assert.Equal(t, TypePong, pong.Type)
	assert.Equal(t, 1, f.registry.Len())
	_ = serverConn
}

func TestDispatcher_BroadcastReachesAllClients(t *testing.T) {
	f := newWSFixture(t, RegistryOptions{})
	logger := slog.New(slog.DiscardHandler)
	dispatcher := NewDispatcher(f.registry, metrics.New(prometheus.NewRegistry()), logger)

	clientA, _ := f.dial(t)
	clientB, _ := f.dial(t)

	complaintID := uuid.New()
	actorID := uuid.New()
	dispatcher.Publish(domain.NewUpvoteUpdate(complaintID, actorID, 3))

	for _, client := range []*gws.Conn{clientA, clientB} {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
		_, raw, err := client.ReadMessage()
		require.NoError(t, err)

		// The counts ride under a data envelope next to type and timestamp.
		var frame map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &frame))
		require.Contains(t, frame, "data")
		require.Contains(t, frame, "timestamp")

		var event domain.EngagementEvent
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.Equal(t, domain.EventUpvoteUpdate, event.Type)
		assert.Equal(t, complaintID, event.Data.ComplaintID)
		assert.Equal(t, 3, event.Data.UpvoteCount)
		assert.Equal(t, actorID, event.Data.ActingUserID)
	}
}

// TestDispatcher_SlowConnectionDoesNotBlockOthers wedges one connection's
// queue and checks the remaining clients still receive the event while the
// wedged one is dropped.
func TestDispatcher_SlowConnectionDoesNotBlockOthers(t *testing.T) {
	f := newWSFixture(t, RegistryOptions{SendBufferSize: 1})
	logger := slog.New(slog.DiscardHandler)
	dispatcher := NewDispatcher(f.registry, metrics.New(prometheus.NewRegistry()), logger)

	healthy, _ := f.dial(t)
	_, wedged := f.dial(t)

	// Fill the wedged connection's queue while its write pump is stalled on
	// a closed socket peer never draining. Close the send path by stuffing
	// frames directly.
	wedged.CloseSend()
	frame, _ := json.Marshal(map[string]string{"type": "noise"})
	require.False(t, wedged.enqueue(frame))

	dispatcher.Publish(domain.NewUpvoteUpdate(uuid.New(), uuid.New(), 1))

	require.NoError(t, healthy.SetReadDeadline(time.Now().Add(time.Second)))
	var event domain.EngagementEvent
	require.NoError(t, healthy.ReadJSON(&event))
	assert.Equal(t, 1, event.Data.UpvoteCount)

	// The wedged connection was unregistered during the broadcast.
	waitFor(t, time.Second, func() bool { return f.registry.Len() == 1 })
}

func TestMonitor_EvictsStaleConnections(t *testing.T) {
	f := newWSFixture(t, RegistryOptions{})
	logger := slog.New(slog.DiscardHandler)
	monitor := NewMonitor(f.registry, 20*time.Millisecond, 60*time.Millisecond,
		metrics.New(prometheus.NewRegistry()), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	// The live client keeps reading, so its default ping handler answers
	// the monitor's probes.
	liveClient, _ := f.dial(t)
	go func() {
		for {
			if _, _, err := liveClient.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// The stale client never reads, so it never pongs.
	staleClient, _ := f.dial(t)
	_ = staleClient

	require.Equal(t, 2, f.registry.Len())

	waitFor(t, 2*time.Second, func() bool { return f.registry.Len() == 1 })

	// The surviving connection keeps receiving broadcasts.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.registry.Len())
}
