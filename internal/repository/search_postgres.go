// internal/repository/search_postgres.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"restaurant-finder/internal/models"
)

// PostgresSearchRepository is the SQL implementation of SearchRepository.
type PostgresSearchRepository struct {
	db *sql.DB
}

func NewPostgresSearchRepository(db *sql.DB) *PostgresSearchRepository {
	return &PostgresSearchRepository{db: db}
}

func (r *PostgresSearchRepository) Create(ctx context.Context, search *models.Search) error {
	if search.ID == "" {
		search.ID = uuid.NewString()
	}
	if search.CreatedAt.IsZero() {
		search.CreatedAt = time.Now().UTC()
	}

	prefs, err := json.Marshal(search.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	window, err := json.Marshal(search.ServiceWindow)
	if err != nil {
		return fmt.Errorf("encode service window: %w", err)
	}

	query := `INSERT INTO searches (id, latitude, longitude, distance_range, service_window, preferences, exhausted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.db.ExecContext(ctx, query,
		search.ID, search.Latitude, search.Longitude, string(search.DistanceRange),
		window, prefs, search.Exhausted, search.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert search: %w", err)
	}
	return nil
}

func (r *PostgresSearchRepository) FindWithLatestCandidateID(ctx context.Context, searchID string) (*models.Search, *string, error) {
	query := `SELECT s.id, s.latitude, s.longitude, s.distance_range, s.service_window, s.preferences, s.exhausted, s.created_at,
			(SELECT c.id FROM search_candidates c WHERE c.search_id = s.id ORDER BY c.candidate_order DESC LIMIT 1)
		FROM searches s WHERE s.id = $1`

	var (
		search          models.Search
		distanceRange   string
		windowRaw       []byte
		prefsRaw        []byte
		latestCandidate sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, searchID).Scan(
		&search.ID, &search.Latitude, &search.Longitude, &distanceRange,
		&windowRaw, &prefsRaw, &search.Exhausted, &search.CreatedAt, &latestCandidate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrSearchNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find search: %w", err)
	}

	search.DistanceRange = models.DistanceRange(distanceRange)
	if err := json.Unmarshal(windowRaw, &search.ServiceWindow); err != nil {
		return nil, nil, fmt.Errorf("decode service window: %w", err)
	}
	if err := json.Unmarshal(prefsRaw, &search.Preferences); err != nil {
		return nil, nil, fmt.Errorf("decode preferences: %w", err)
	}

	if latestCandidate.Valid {
		return &search, &latestCandidate.String, nil
	}
	return &search, nil, nil
}

func (r *PostgresSearchRepository) FindByIDWithCandidateContext(ctx context.Context, searchID string) (*SearchContext, error) {
	search, _, err := r.FindWithLatestCandidateID(ctx, searchID)
	if err != nil {
		return nil, err
	}

	sc := &SearchContext{Search: *search, NextOrder: 1}

	candidates, err := r.loadCandidates(ctx, searchID)
	if err != nil {
		return nil, err
	}
	sc.Candidates = candidates
	for _, c := range candidates {
		if c.Order >= sc.NextOrder {
			sc.NextOrder = c.Order + 1
		}
	}

	identities, err := r.loadExcludedIdentities(ctx, searchID)
	if err != nil {
		return nil, err
	}
	sc.ExcludedIdentities = identities

	return sc, nil
}

func (r *PostgresSearchRepository) loadCandidates(ctx context.Context, searchID string) ([]models.SearchCandidate, error) {
	query := `SELECT id, search_id, candidate_order, status, rejection_reason, restaurant_id, recovered_from_candidate_id, created_at
		FROM search_candidates WHERE search_id = $1 ORDER BY candidate_order ASC`

	rows, err := r.db.QueryContext(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	defer rows.Close()

	var out []models.SearchCandidate
	for rows.Next() {
		var (
			c             models.SearchCandidate
			status        string
			reason        sql.NullString
			restaurantID  sql.NullString
			recoveredFrom sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.SearchID, &c.Order, &status, &reason, &restaurantID, &recoveredFrom, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
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
		out = append(out, c)
	}
	return out, rows.Err()
}

// loadExcludedIdentities collects the provider identities of every profile
// attached to restaurants already evaluated as candidates of this search.
func (r *PostgresSearchRepository) loadExcludedIdentities(ctx context.Context, searchID string) ([]models.ProviderIdentity, error) {
	query := `SELECT DISTINCT p.source, p.external_id, p.external_type
		FROM restaurant_profiles p
		JOIN search_candidates c ON c.restaurant_id = p.restaurant_id
		WHERE c.search_id = $1`

	rows, err := r.db.QueryContext(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("load excluded identities: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderIdentity
	for rows.Next() {
		var id models.ProviderIdentity
		var source string
		if err := rows.Scan(&source, &id.ExternalID, &id.ExternalType); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		id.Source = models.Source(source)
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *PostgresSearchRepository) MarkSearchAsExhausted(ctx context.Context, searchID string) error {
	query := `UPDATE searches SET exhausted = TRUE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, searchID)
	if err != nil {
		return fmt.Errorf("mark search exhausted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark search exhausted: %w", err)
	}
	if affected == 0 {
		return ErrSearchNotFound
	}
	return nil
}
