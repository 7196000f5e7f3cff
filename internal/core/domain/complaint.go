package domain

import (
	"time"

	"github.com/google/uuid"
)

// Complaint is the engagement-layer view of a complaint. The full complaint
// record (category, description, location, attachments) is owned by the
// complaint CRUD collaborator; this layer only needs what the upvote rules
// and the live counter read.
type Complaint struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	IsPublic    bool
	UpvoteCount int
}

// IsOwnedBy reports whether the given user filed the complaint.
func (c *Complaint) IsOwnedBy(userID uuid.UUID) bool {
	return c.OwnerID == userID
}

// Upvote is the unique (user, complaint) pairing. Its existence is the sole
// source of truth for "has this user upvoted this complaint"; the counter on
// the complaint row is a denormalization of COUNT(*) over these rows.
type Upvote struct {
	UserID      uuid.UUID
	ComplaintID uuid.UUID
	CreatedAt   time.Time
}

// UpvoteStatus is the result of a toggle or a status query.
type UpvoteStatus struct {
	UpvoteCount int
	HasUpvoted  bool
}
