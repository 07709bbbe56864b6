// internal/repository/matching_postgres.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"restaurant-finder/internal/models"
)

// PostgresMatchingRepository is the SQL implementation of MatchingRepository.
type PostgresMatchingRepository struct {
	db *sql.DB
}

func NewPostgresMatchingRepository(db *sql.DB) *PostgresMatchingRepository {
	return &PostgresMatchingRepository{db: db}
}

func (r *PostgresMatchingRepository) DoesAttemptExistSince(ctx context.Context, since time.Time, restaurantID string, source models.Source) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM matching_attempts
		WHERE restaurant_id = $1 AND source = $2 AND created_at >= $3
	)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, restaurantID, string(source), since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attempt exists: %w", err)
	}
	return exists, nil
}

// HasReachedQuota compares this month's attempt count against the cap. The
// check and the later register are separate statements, so the cap is soft
// under concurrency.
func (r *PostgresMatchingRepository) HasReachedQuota(ctx context.Context, source models.Source, maxPerMonth int) (bool, error) {
	if maxPerMonth <= 0 {
		return false, nil
	}
	count, err := r.CountMatchingAttemptsDuringMonth(ctx, source, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return count >= maxPerMonth, nil
}

func (r *PostgresMatchingRepository) CountMatchingAttemptsDuringMonth(ctx context.Context, source models.Source, month time.Time) (int, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query := `SELECT COUNT(*) FROM matching_attempts
		WHERE source = $1 AND created_at >= $2 AND created_at < $3`
	var count int
	err := r.db.QueryRowContext(ctx, query, string(source), start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

func (r *PostgresMatchingRepository) RegisterAttemptToFindAMatch(ctx context.Context, attempt *models.MatchingAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO matching_attempts (id, query, query_type, source, restaurant_id, found, latitude, longitude, radius_meters, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		attempt.ID, attempt.Query, string(attempt.QueryType), string(attempt.Source),
		attempt.RestaurantID, attempt.Found,
		attempt.Latitude, attempt.Longitude, attempt.RadiusMeters,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}
