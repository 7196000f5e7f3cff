package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/swaraj/complaints-backend/internal/core/errors"
)

func TestClassifyStoreError(t *testing.T) {
	retryable := []struct {
		name string
		err  error
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}},
		{"unique violation", &pgconn.PgError{Code: "23505"}},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}},
		{"wrapped pg error", fmt.Errorf("insert upvote: %w", &pgconn.PgError{Code: "23505"})},
		{"deadline exceeded", context.DeadlineExceeded},
	}
	for _, tc := range retryable {
		t.Run(tc.name, func(t *testing.T) {
			classified := classifyStoreError(tc.err)
			require.Error(t, classified)
			assert.True(t, apperrors.IsRetryable(classified))
			assert.ErrorIs(t, classified, apperrors.ErrTransientStore)
		})
	}

	permanent := []struct {
		name string
		err  error
	}{
		{"no rows", pgx.ErrNoRows},
		{"undefined table", &pgconn.PgError{Code: "42P01"}},
		{"plain error", errors.New("boom")},
	}
	for _, tc := range permanent {
		t.Run(tc.name, func(t *testing.T) {
			classified := classifyStoreError(tc.err)
			assert.False(t, apperrors.IsRetryable(classified))
			assert.Equal(t, tc.err, classified)
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, classifyStoreError(nil))
	})
}
