package websocket

import (
	"encoding/json"
	"time"
)

// Message types exchanged with browser clients. Server to client:
// connection_established, upvote_update, pong. Client to server: ping,
// heartbeat, upvote_action.
const (
	TypeConnectionEstablished = "connection_established"
	TypePing                  = "ping"
	TypePong                  = "pong"
	TypeHeartbeat             = "heartbeat"
	TypeUpvoteAction          = "upvote_action"
)

// ClientMessage is the structure for messages sent from the client. Payloads
// ride under the "data" key next to the type discriminator.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UpvoteActionData is the data a client attaches to an upvote_action
// notification after completing a toggle over REST. The server treats it as
// advisory only.
type UpvoteActionData struct {
	ComplaintID string `json:"complaintId"`
	Action      string `json:"action"`
}

// WelcomeMessage acknowledges a successful connection.
type WelcomeMessage struct {
	Type      string    `json:"type"`
	ClientID  string    `json:"clientId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PongMessage answers a client-level ping. It echoes the connection ID so the
// client can correlate the reply with its own connection.
type PongMessage struct {
	Type      string    `json:"type"`
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

func newWelcomeMessage(clientID string) WelcomeMessage {
	return WelcomeMessage{
		Type:      TypeConnectionEstablished,
		ClientID:  clientID,
		Message:   "connected to engagement updates",
		Timestamp: time.Now().UTC(),
	}
}

func newPongMessage(clientID string) PongMessage {
	return PongMessage{
		Type:      TypePong,
		ClientID:  clientID,
		Timestamp: time.Now().UTC(),
	}
}
