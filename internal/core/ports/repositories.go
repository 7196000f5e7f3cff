package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/swaraj/complaints-backend/internal/core/domain"
)

// ComplaintRepository is the read side the toggle preconditions need. The
// complaint CRUD collaborator owns writes to everything except the
// denormalized upvote counter.
type ComplaintRepository interface {
	// GetForEngagement fetches the owner, visibility and current counter for
	// a complaint. Returns errors.ErrComplaintNotFound if no row exists.
	GetForEngagement(ctx context.Context, complaintID uuid.UUID) (*domain.Complaint, error)

	// SetUpvoteCount persists the recomputed counter onto the complaint row.
	// Must be called inside the same transaction as the upvote mutation.
	SetUpvoteCount(ctx context.Context, complaintID uuid.UUID, count int) error
}

// UpvoteRepository owns the (user, complaint) upvote rows. No other component
// may create, mutate or delete them.
type UpvoteRepository interface {
	// Exists reports whether the pairing is present.
	Exists(ctx context.Context, userID, complaintID uuid.UUID) (bool, error)

	// Insert creates the pairing. Fails on duplicate, which under the
	// serializable toggle transaction indicates a conflicting concurrent
	// toggle and is surfaced as a transient error.
	Insert(ctx context.Context, userID, complaintID uuid.UUID) error

	// Delete removes the pairing.
	Delete(ctx context.Context, userID, complaintID uuid.UUID) error

	// CountForComplaint recomputes the authoritative count from the rows.
	CountForComplaint(ctx context.Context, complaintID uuid.UUID) (int, error)
}

// TransactionManager runs a function inside a single store transaction.
// Repository calls made with the ctx it passes in join that transaction.
type TransactionManager interface {
	// WithSerializable executes fn inside a SERIALIZABLE transaction,
	// committing on nil and rolling back on error.
	WithSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}
