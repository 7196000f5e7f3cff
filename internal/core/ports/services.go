package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/swaraj/complaints-backend/internal/core/domain"
)

// ToggleUpvoteParams identifies a toggle request.
type ToggleUpvoteParams struct {
	ComplaintID  uuid.UUID
	ActingUserID uuid.UUID
}

// UpvoteStatusParams identifies a read-only status query.
type UpvoteStatusParams struct {
	ComplaintID uuid.UUID
	ViewerID    uuid.UUID
}

// EngagementService is the single command/query surface the rest of the
// portal uses to interact with upvotes. ToggleUpvote returns once the
// transaction has committed; broadcasting to other viewers is asynchronous.
type EngagementService interface {
	ToggleUpvote(ctx context.Context, params ToggleUpvoteParams) (*domain.UpvoteStatus, error)
	GetUpvoteStatus(ctx context.Context, params UpvoteStatusParams) (*domain.UpvoteStatus, error)
}

// EventBroadcaster fans a committed engagement event out to every live
// subscriber connection. Publish never blocks the caller and never returns
// connection-level failures; those are contained in the broadcast layer.
type EventBroadcaster interface {
	Publish(event domain.EngagementEvent)
}
