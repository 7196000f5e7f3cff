package postgres

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swaraj/complaints-backend/internal/core/domain"
	apperrors "github.com/swaraj/complaints-backend/internal/core/errors"
	"github.com/swaraj/complaints-backend/internal/core/ports"
	"github.com/swaraj/complaints-backend/internal/core/services"
)

func TestComplaintRepository_GetForEngagement(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewComplaintRepository(testPool)

	ownerID := seedUser(t, "owner@example.com")
	complaintID := seedComplaint(t, ownerID, true)

	t.Run("returns engagement fields", func(t *testing.T) {
		complaint, err := repo.GetForEngagement(ctx, complaintID)
		require.NoError(t, err)
		assert.Equal(t, complaintID, complaint.ID)
		assert.Equal(t, ownerID, complaint.OwnerID)
		assert.True(t, complaint.IsPublic)
		assert.Equal(t, 0, complaint.UpvoteCount)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetForEngagement(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrComplaintNotFound)
	})
}

func TestComplaintRepository_SetUpvoteCount(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewComplaintRepository(testPool)

	ownerID := seedUser(t, "owner@example.com")
	complaintID := seedComplaint(t, ownerID, true)

	require.NoError(t, repo.SetUpvoteCount(ctx, complaintID, 12))

	complaint, err := repo.GetForEngagement(ctx, complaintID)
	require.NoError(t, err)
	assert.Equal(t, 12, complaint.UpvoteCount)

	err = repo.SetUpvoteCount(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, apperrors.ErrComplaintNotFound)
}

func TestUpvoteRepository_Lifecycle(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewUpvoteRepository(testPool)

	ownerID := seedUser(t, "owner@example.com")
	voterID := seedUser(t, "voter@example.com")
	complaintID := seedComplaint(t, ownerID, true)

	exists, err := repo.Exists(ctx, voterID, complaintID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Insert(ctx, voterID, complaintID))

	exists, err = repo.Exists(ctx, voterID, complaintID)
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := repo.CountForComplaint(ctx, complaintID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Duplicate insert violates the primary key.
	err = repo.Insert(ctx, voterID, complaintID)
	assert.Error(t, err)

	require.NoError(t, repo.Delete(ctx, voterID, complaintID))

	count, err = repo.CountForComplaint(ctx, complaintID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Deleting an absent row is a no-op.
	require.NoError(t, repo.Delete(ctx, voterID, complaintID))
}

func TestTransactionManager_WithSerializable(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	tm := NewTransactionManager(testPool)
	upvotes := NewUpvoteRepository(testPool)

	ownerID := seedUser(t, "owner@example.com")
	voterID := seedUser(t, "voter@example.com")
	complaintID := seedComplaint(t, ownerID, true)

	t.Run("commits on success", func(t *testing.T) {
		err := tm.WithSerializable(ctx, func(txCtx context.Context) error {
			return upvotes.Insert(txCtx, voterID, complaintID)
		})
		require.NoError(t, err)

		exists, err := upvotes.Exists(ctx, voterID, complaintID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := tm.WithSerializable(ctx, func(txCtx context.Context) error {
			if err := upvotes.Delete(txCtx, voterID, complaintID); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		// The delete inside the failed transaction must not be visible.
		exists, err := upvotes.Exists(ctx, voterID, complaintID)
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

type noopBroadcaster struct{}

func (noopBroadcaster) Publish(domain.EngagementEvent) {}

// TestEngagement_ConcurrentToggles drives many simultaneous toggles through
// the full service and repository stack and checks that the denormalized
// count never drifts from the upvote rows.
func TestEngagement_ConcurrentToggles(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()

	svc := services.NewEngagementService(
		NewComplaintRepository(testPool),
		NewUpvoteRepository(testPool),
		NewTransactionManager(testPool),
		noopBroadcaster{},
		slog.New(slog.DiscardHandler),
	)

	ownerID := seedUser(t, "owner@example.com")
	complaintID := seedComplaint(t, ownerID, true)

	const voters = 50
	voterIDs := make([]uuid.UUID, voters)
	for i := range voterIDs {
		voterIDs[i] = seedUser(t, uuid.NewString()+"@example.com")
	}

	toggle := func(userID uuid.UUID) error {
		params := ports.ToggleUpvoteParams{ComplaintID: complaintID, ActingUserID: userID}
		var err error
		// Serializable transactions conflict under contention, retry those.
		for attempt := 0; attempt < 20; attempt++ {
			_, err = svc.ToggleUpvote(ctx, params)
			if err == nil || !apperrors.IsRetryable(err) {
				return err
			}
		}
		return err
	}

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for _, id := range voterIDs {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			errs <- toggle(userID)
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	upvotes := NewUpvoteRepository(testPool)
	rows, err := upvotes.CountForComplaint(ctx, complaintID)
	require.NoError(t, err)
	assert.Equal(t, voters, rows)

	complaint, err := NewComplaintRepository(testPool).GetForEngagement(ctx, complaintID)
	require.NoError(t, err)
	assert.Equal(t, rows, complaint.UpvoteCount)

	// Toggling every voter again returns the complaint to zero.
	for _, id := range voterIDs {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			errs2 := toggle(userID)
			assert.NoError(t, errs2)
		}(id)
	}
	wg.Wait()

	complaint, err = NewComplaintRepository(testPool).GetForEngagement(ctx, complaintID)
	require.NoError(t, err)
	assert.Equal(t, 0, complaint.UpvoteCount)
}
