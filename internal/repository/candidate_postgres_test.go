package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-finder/internal/models"
)

func newCandidateRepo(t *testing.T) (*PostgresCandidateRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresCandidateRepository(db), mock
}

func candidateRowColumns() []string {
	return []string{"id", "search_id", "candidate_order", "status", "rejection_reason", "restaurant_id", "recovered_from_candidate_id", "created_at"}
}

func TestCandidateRepository_FindByID(t *testing.T) {
	repo, mock := newCandidateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM search_candidates WHERE id = $1`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(candidateRowColumns()).
			AddRow("c1", "s1", 2, "Rejected", "closed", "r1", nil, time.Now()))

	c, err := repo.FindByID(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, 2, c.Order)
	assert.Equal(t, models.CandidateRejected, c.Status)
	require.NotNil(t, c.RejectionReason)
	assert.Equal(t, "closed", *c.RejectionReason)
	assert.Nil(t, c.RecoveredFromCandidateID)
}

func TestCandidateRepository_FindByID_NotFound(t *testing.T) {
	repo, mock := newCandidateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM search_candidates WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(candidateRowColumns()))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCandidateNotFound)
}

func TestCandidateRepository_CreateAssignsIDAndTimestamp(t *testing.T) {
	repo, mock := newCandidateRepo(t)

	restaurantID := "r1"
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO search_candidates`)).
		WithArgs(sqlmock.AnyArg(), "s1", 1, "Returned", nil, restaurantID, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	candidate := &models.SearchCandidate{
		SearchID:     "s1",
		Order:        1,
		Status:       models.CandidateReturned,
		RestaurantID: &restaurantID,
	}
	require.NoError(t, repo.Create(context.Background(), candidate))

	assert.NotEmpty(t, candidate.ID)
	assert.False(t, candidate.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepository_FindBestFallback(t *testing.T) {
	repo, mock := newCandidateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`status = $2 AND restaurant_id IS NOT NULL`)).
		WithArgs("s1", "Rejected").
		WillReturnRows(sqlmock.NewRows(candidateRowColumns()).
			AddRow("c3", "s1", 3, "Rejected", "closed", "r3", nil, time.Now()))

	fallback, err := repo.FindBestRejectedCandidateThatCouldServeAsFallback(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, fallback)
	assert.Equal(t, "c3", fallback.ID)
	assert.Equal(t, 3, fallback.Order)
}

func TestCandidateRepository_FindBestFallback_NoneIsNotAnError(t *testing.T) {
	repo, mock := newCandidateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`status = $2 AND restaurant_id IS NOT NULL`)).
		WithArgs("s1", "Rejected").
		WillReturnRows(sqlmock.NewRows(candidateRowColumns()))

	fallback, err := repo.FindBestRejectedCandidateThatCouldServeAsFallback(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, fallback)
}

func TestCandidateRepository_RecoverCandidate(t *testing.T) {
	repo, mock := newCandidateRepo(t)

	restaurantID := "r3"
	fallback := &models.SearchCandidate{
		ID:           "c3",
		SearchID:     "s1",
		Order:        3,
		Status:       models.CandidateRejected,
		RestaurantID: &restaurantID,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO search_candidates`)).
		WithArgs(sqlmock.AnyArg(), "s1", 8, "Returned", nil, restaurantID, "c3", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	recovered, err := repo.RecoverCandidate(context.Background(), fallback, 8)
	require.NoError(t, err)

	assert.NotEqual(t, fallback.ID, recovered.ID, "recovery appends a new row")
	assert.Equal(t, 8, recovered.Order)
	assert.Equal(t, models.CandidateReturned, recovered.Status)
	require.NotNil(t, recovered.RecoveredFromCandidateID)
	assert.Equal(t, "c3", *recovered.RecoveredFromCandidateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
