// internal/repository/candidate_postgres.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"restaurant-finder/internal/models"
)

// PostgresCandidateRepository is the SQL implementation of CandidateRepository.
type PostgresCandidateRepository struct {
	db *sql.DB
}

func NewPostgresCandidateRepository(db *sql.DB) *PostgresCandidateRepository {
	return &PostgresCandidateRepository{db: db}
}

const candidateColumns = `id, search_id, candidate_order, status, rejection_reason, restaurant_id, recovered_from_candidate_id, created_at`

func (r *PostgresCandidateRepository) FindByID(ctx context.Context, candidateID string) (*models.SearchCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM search_candidates WHERE id = $1`
	c, err := scanCandidate(r.db.QueryRowContext(ctx, query, candidateID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find candidate: %w", err)
	}
	return c, nil
}

func (r *PostgresCandidateRepository) Create(ctx context.Context, candidate *models.SearchCandidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO search_candidates (` + candidateColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		candidate.ID, candidate.SearchID, candidate.Order, string(candidate.Status),
		candidate.RejectionReason, candidate.RestaurantID, candidate.RecoveredFromCandidateID,
		candidate.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

// FindBestRejectedCandidateThatCouldServeAsFallback picks the most recently
// rejected candidate that still points at a restaurant and was not itself a
// terminal synthetic entry.
func (r *PostgresCandidateRepository) FindBestRejectedCandidateThatCouldServeAsFallback(ctx context.Context, searchID string) (*models.SearchCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM search_candidates
		WHERE search_id = $1 AND status = $2 AND restaurant_id IS NOT NULL
		ORDER BY candidate_order DESC LIMIT 1`

	c, err := scanCandidate(r.db.QueryRowContext(ctx, query, searchID, string(models.CandidateRejected)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find fallback candidate: %w", err)
	}
	return c, nil
}

func (r *PostgresCandidateRepository) RecoverCandidate(ctx context.Context, fallback *models.SearchCandidate, order int) (*models.SearchCandidate, error) {
	recovered := &models.SearchCandidate{
		ID:                       uuid.NewString(),
		SearchID:                 fallback.SearchID,
		Order:                    order,
		Status:                   models.CandidateReturned,
		RestaurantID:             fallback.RestaurantID,
		RecoveredFromCandidateID: &fallback.ID,
		CreatedAt:                time.Now().UTC(),
	}
	if err := r.Create(ctx, recovered); err != nil {
		return nil, err
	}
	return recovered, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*models.SearchCandidate, error) {
	var (
		c             models.SearchCandidate
		status        string
		reason        sql.NullString
		restaurantID  sql.NullString
		recoveredFrom sql.NullString
	)
	err := row.Scan(&c.ID, &c.SearchID, &c.Order, &status, &reason, &restaurantID, &recoveredFrom, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = models.CandidateStatus(status)
	if reason.Valid {
		c.RejectionReason = &reason.String
	}
	if restaurantID.Valid {
		c.RestaurantID = &restaurantID.String
	}
	if recoveredFrom.Valid {
		c.RecoveredFromCandidateID = &recoveredFrom.String
	}
	return &c, nil
}
