package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of real-time event.
type EventType string

const (
	EventUpvoteUpdate EventType = "upvote_update"
)

// UpvoteUpdateData is the data envelope of an upvote_update frame. The count
// it carries is the recomputed, authoritative value returned by the committed
// transaction; the broadcast layer never invents counts.
type UpvoteUpdateData struct {
	ComplaintID  uuid.UUID `json:"complaintId"`
	UpvoteCount  int       `json:"upvoteCount"`
	ActingUserID uuid.UUID `json:"userId"`
}

// EngagementEvent is the frame broadcast to every live subscriber after a
// committed upvote toggle. It is constructed once per successful transaction
// and never mutated afterwards. On the wire the payload rides under a "data"
// key next to the type discriminator and timestamp.
type EngagementEvent struct {
	Type      EventType        `json:"type"`
	Data      UpvoteUpdateData `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewUpvoteUpdate builds the broadcast event for a committed toggle.
func NewUpvoteUpdate(complaintID, actingUserID uuid.UUID, upvoteCount int) EngagementEvent {
	return EngagementEvent{
		Type: EventUpvoteUpdate,
		Data: UpvoteUpdateData{
			ComplaintID:  complaintID,
			UpvoteCount:  upvoteCount,
			ActingUserID: actingUserID,
		},
		Timestamp: time.Now().UTC(),
	}
}
