package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swaraj/complaints-backend/internal/core/ports"
)

// UpvoteRepository handles database operations for upvote rows.
type UpvoteRepository struct {
	pool *pgxpool.Pool
}

// Ensure implementation matches the interface.
var _ ports.UpvoteRepository = (*UpvoteRepository)(nil)

// NewUpvoteRepository creates a new repository for upvote queries.
func NewUpvoteRepository(pool *pgxpool.Pool) ports.UpvoteRepository {
	return &UpvoteRepository{pool: pool}
}

// Exists reports whether the user currently has an upvote on the complaint.
func (r *UpvoteRepository) Exists(ctx context.Context, userID, complaintID uuid.UUID) (bool, error) {
	db := GetDBTX(ctx, r.pool)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM upvotes
			WHERE user_id = $1 AND complaint_id = $2
		)
	`

	var exists bool
	err := db.QueryRow(ctx, query,
		pgtype.UUID{Bytes: userID, Valid: true},
		pgtype.UUID{Bytes: complaintID, Valid: true},
	).Scan(&exists)
	if err != nil {
		return false, classifyStoreError(err)
	}

	return exists, nil
}

// Insert records an upvote. The unique constraint on (user_id, complaint_id)
// rejects duplicates.
func (r *UpvoteRepository) Insert(ctx context.Context, userID, complaintID uuid.UUID) error {
	db := GetDBTX(ctx, r.pool)

	query := `
		INSERT INTO upvotes (user_id, complaint_id, created_at)
		VALUES ($1, $2, NOW())
	`

	_, err := db.Exec(ctx, query,
		pgtype.UUID{Bytes: userID, Valid: true},
		pgtype.UUID{Bytes: complaintID, Valid: true},
	)
	if err != nil {
		return classifyStoreError(fmt.Errorf("failed to insert upvote: %w", err))
	}

	return nil
}

// Delete removes the user's upvote on the complaint if one exists.
func (r *UpvoteRepository) Delete(ctx context.Context, userID, complaintID uuid.UUID) error {
	db := GetDBTX(ctx, r.pool)

	query := `
		DELETE FROM upvotes
		WHERE user_id = $1 AND complaint_id = $2
	`

	_, err := db.Exec(ctx, query,
		pgtype.UUID{Bytes: userID, Valid: true},
		pgtype.UUID{Bytes: complaintID, Valid: true},
	)
	if err != nil {
		return classifyStoreError(fmt.Errorf("failed to delete upvote: %w", err))
	}

	return nil
}

// CountForComplaint returns the authoritative number of upvote rows for a
// complaint.
func (r *UpvoteRepository) CountForComplaint(ctx context.Context, complaintID uuid.UUID) (int, error) {
	db := GetDBTX(ctx, r.pool)

	query := `
		SELECT COUNT(*) FROM upvotes
		WHERE complaint_id = $1
	`

	var count int
	err := db.QueryRow(ctx, query, pgtype.UUID{Bytes: complaintID, Valid: true}).Scan(&count)
	if err != nil {
		return 0, classifyStoreError(err)
	}

	return count, nil
}
