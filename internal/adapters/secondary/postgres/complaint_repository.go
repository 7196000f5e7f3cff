package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swaraj/complaints-backend/internal/core/domain"
	apperrors "github.com/swaraj/complaints-backend/internal/core/errors"
	"github.com/swaraj/complaints-backend/internal/core/ports"
)

// ComplaintRepository handles database operations for complaints.
type ComplaintRepository struct {
	pool *pgxpool.Pool
}

// Ensure implementation matches the interface.
var _ ports.ComplaintRepository = (*ComplaintRepository)(nil)

// NewComplaintRepository creates a new repository for complaint queries.
func NewComplaintRepository(pool *pgxpool.Pool) ports.ComplaintRepository {
	return &ComplaintRepository{pool: pool}
}

// GetForEngagement fetches the fields needed to authorize and apply an
// engagement action. Participates in a context transaction when one is
// present.
func (r *ComplaintRepository) GetForEngagement(ctx context.Context, complaintID uuid.UUID) (*domain.Complaint, error) {
	db := GetDBTX(ctx, r.pool)

	query := `
		SELECT id, owner_id, is_public, upvote_count
		FROM complaints
		WHERE id = $1
	`

	var complaint domain.Complaint
	err := db.QueryRow(ctx, query, pgtype.UUID{Bytes: complaintID, Valid: true}).Scan(
		&complaint.ID,
		&complaint.OwnerID,
		&complaint.IsPublic,
		&complaint.UpvoteCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrComplaintNotFound
		}
		return nil, classifyStoreError(err)
	}

	return &complaint, nil
}

// SetUpvoteCount writes the denormalized upvote count for a complaint.
func (r *ComplaintRepository) SetUpvoteCount(ctx context.Context, complaintID uuid.UUID, count int) error {
	db := GetDBTX(ctx, r.pool)

	query := `
		UPDATE complaints
		SET upvote_count = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := db.Exec(ctx, query, pgtype.UUID{Bytes: complaintID, Valid: true}, count)
	if err != nil {
		return classifyStoreError(fmt.Errorf("failed to update upvote count: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrComplaintNotFound
	}

	return nil
}
