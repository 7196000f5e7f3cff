package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/swaraj/complaints-backend/internal/core/domain"
	apperrors "github.com/swaraj/complaints-backend/internal/core/errors"
	"github.com/swaraj/complaints-backend/internal/core/ports"
)

// EngagementService implements the upvote toggle and status query.
type EngagementService struct {
	complaintRepo ports.ComplaintRepository
	upvoteRepo    ports.UpvoteRepository
	txManager     ports.TransactionManager
	broadcaster   ports.EventBroadcaster
	logger        *slog.Logger
}

var _ ports.EngagementService = (*EngagementService)(nil)

// NewEngagementService creates a new engagement service.
func NewEngagementService(
	complaintRepo ports.ComplaintRepository,
	upvoteRepo ports.UpvoteRepository,
	txManager ports.TransactionManager,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
) *EngagementService {
	return &EngagementService{
		complaintRepo: complaintRepo,
		upvoteRepo:    upvoteRepo,
		txManager:     txManager,
		broadcaster:   broadcaster,
		logger:        logger.With("component", "engagement_service"),
	}
}

// ToggleUpvote flips the acting user's upvote on a complaint and returns the
// authoritative new state. The whole read-modify-write runs inside a single
// serializable transaction: either every step commits or none does, so a
// concurrent toggle on the same complaint can never produce a lost update or
// a drifted counter. The recompute in step 4 is a COUNT(*) over the upvote
// rows rather than an increment, which heals any pre-existing drift.
func (s *EngagementService) ToggleUpvote(ctx context.Context, params ports.ToggleUpvoteParams) (*domain.UpvoteStatus, error) {
	if err := validateParams(params.ComplaintID, params.ActingUserID); err != nil {
		return nil, err
	}

	var status domain.UpvoteStatus

	err := s.txManager.WithSerializable(ctx, func(txCtx context.Context) error {
		complaint, err := s.complaintRepo.GetForEngagement(txCtx, params.ComplaintID)
		if err != nil {
			return err
		}

		if !complaint.IsPublic {
			return apperrors.ErrComplaintNotPublic
		}
		if complaint.IsOwnedBy(params.ActingUserID) {
			return apperrors.ErrSelfUpvote
		}

		exists, err := s.upvoteRepo.Exists(txCtx, params.ActingUserID, params.ComplaintID)
		if err != nil {
			return err
		}

		if exists {
			if err := s.upvoteRepo.Delete(txCtx, params.ActingUserID, params.ComplaintID); err != nil {
				return err
			}
			status.HasUpvoted = false
		} else {
			if err := s.upvoteRepo.Insert(txCtx, params.ActingUserID, params.ComplaintID); err != nil {
				return err
			}
			status.HasUpvoted = true
		}

		count, err := s.upvoteRepo.CountForComplaint(txCtx, params.ComplaintID)
		if err != nil {
			return err
		}
		status.UpvoteCount = count

		return s.complaintRepo.SetUpvoteCount(txCtx, params.ComplaintID, count)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("upvote toggled",
		"complaint_id", params.ComplaintID,
		"user_id", params.ActingUserID,
		"has_upvoted", status.HasUpvoted,
		"upvote_count", status.UpvoteCount,
	)

	// Broadcast after commit only. Publish queues and returns immediately;
	// the actor's response never waits on fan-out.
	s.broadcaster.Publish(domain.NewUpvoteUpdate(params.ComplaintID, params.ActingUserID, status.UpvoteCount))

	return &status, nil
}

// GetUpvoteStatus reports the current count and whether the viewer has
// upvoted. Read-only, no side effects; used to initialize client state on
// page load and after reconnects.
func (s *EngagementService) GetUpvoteStatus(ctx context.Context, params ports.UpvoteStatusParams) (*domain.UpvoteStatus, error) {
	if err := validateParams(params.ComplaintID, params.ViewerID); err != nil {
		return nil, err
	}

	if _, err := s.complaintRepo.GetForEngagement(ctx, params.ComplaintID); err != nil {
		return nil, err
	}

	count, err := s.upvoteRepo.CountForComplaint(ctx, params.ComplaintID)
	if err != nil {
		return nil, err
	}

	hasUpvoted, err := s.upvoteRepo.Exists(ctx, params.ViewerID, params.ComplaintID)
	if err != nil {
		return nil, err
	}

	return &domain.UpvoteStatus{
		UpvoteCount: count,
		HasUpvoted:  hasUpvoted,
	}, nil
}

func validateParams(complaintID, userID uuid.UUID) error {
	if complaintID == uuid.Nil {
		return apperrors.ErrComplaintIDRequired
	}
	if userID == uuid.Nil {
		return apperrors.ErrUserIDRequired
	}
	return nil
}
