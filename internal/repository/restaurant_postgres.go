// internal/repository/restaurant_postgres.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"restaurant-finder/internal/models"
)

// PostgresRestaurantRepository is the SQL implementation of RestaurantRepository.
type PostgresRestaurantRepository struct {
	db *sql.DB
}

func NewPostgresRestaurantRepository(db *sql.DB) *PostgresRestaurantRepository {
	return &PostgresRestaurantRepository{db: db}
}

const profileColumns = `id, restaurant_id, source, external_id, external_type, name, latitude, longitude, street, house_number, postcode, city, country, tags, opening_hours, version, created_at, updated_at`

func (r *PostgresRestaurantRepository) CreateProfile(ctx context.Context, profile *models.RestaurantProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = now
	}

	hours, err := json.Marshal(profile.OpeningHours)
	if err != nil {
		return fmt.Errorf("encode opening hours: %w", err)
	}

	query := `INSERT INTO restaurant_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = r.db.ExecContext(ctx, query,
		profile.ID, profile.RestaurantID, string(profile.Source), profile.ExternalID, profile.ExternalType,
		profile.Name, profile.Latitude, profile.Longitude,
		profile.Street, profile.HouseNumber, profile.Postcode, profile.City, profile.Country,
		pq.Array(profile.Tags), hours, profile.Version, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *PostgresRestaurantRepository) UpdateProfile(ctx context.Context, profile *models.RestaurantProfile) error {
	profile.UpdatedAt = time.Now().UTC()

	hours, err := json.Marshal(profile.OpeningHours)
	if err != nil {
		return fmt.Errorf("encode opening hours: %w", err)
	}

	query := `UPDATE restaurant_profiles SET
			name = $1, latitude = $2, longitude = $3,
			street = $4, house_number = $5, postcode = $6, city = $7, country = $8,
			tags = $9, opening_hours = $10, version = $11, updated_at = $12
		WHERE id = $13`
	result, err := r.db.ExecContext(ctx, query,
		profile.Name, profile.Latitude, profile.Longitude,
		profile.Street, profile.HouseNumber, profile.Postcode, profile.City, profile.Country,
		pq.Array(profile.Tags), hours, profile.Version, profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update profile: no row with id %s", profile.ID)
	}
	return nil
}

func (r *PostgresRestaurantRepository) FindRestaurantWithExternalIdentity(ctx context.Context, identity models.ProviderIdentity) (*models.RestaurantAndProfiles, error) {
	query := `SELECT restaurant_id FROM restaurant_profiles
		WHERE source = $1 AND external_id = $2 AND external_type = $3`

	var restaurantID string
	err := r.db.QueryRowContext(ctx, query, string(identity.Source), identity.ExternalID, identity.ExternalType).Scan(&restaurantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	return r.loadAggregate(ctx, restaurantID)
}

// CreateRestaurantFromDiscovery creates the restaurant and its first profile.
// A concurrent creation for the same identity loses the profile insert on the
// unique (source, external_id, external_type) constraint, in which case the
// existing aggregate is returned instead.
func (r *PostgresRestaurantRepository) CreateRestaurantFromDiscovery(ctx context.Context, discovered models.DiscoveredProfile) (*models.RestaurantAndProfiles, error) {
	restaurantID := uuid.NewString()
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO restaurants (id, name, latitude, longitude, created_at) VALUES ($1, $2, $3, $4, $5)`,
		restaurantID, discovered.Name, discovered.Coordinates.Latitude, discovered.Coordinates.Longitude, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert restaurant: %w", err)
	}

	profile := profileFromDiscovery(restaurantID, discovered, now)
	hours, err := json.Marshal(profile.OpeningHours)
	if err != nil {
		return nil, fmt.Errorf("encode opening hours: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO restaurant_profiles (`+profileColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			ON CONFLICT (source, external_id, external_type) DO NOTHING`,
		profile.ID, profile.RestaurantID, string(profile.Source), profile.ExternalID, profile.ExternalType,
		profile.Name, profile.Latitude, profile.Longitude,
		profile.Street, profile.HouseNumber, profile.Postcode, profile.City, profile.Country,
		pq.Array(profile.Tags), hours, profile.Version, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	if inserted == 0 {
		// Lost the race: somebody else owns this identity already.
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			return nil, fmt.Errorf("rollback: %w", err)
		}
		return r.FindRestaurantWithExternalIdentity(ctx, discovered.Identity)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &models.RestaurantAndProfiles{
		Restaurant: models.Restaurant{
			ID:        restaurantID,
			Name:      discovered.Name,
			Latitude:  discovered.Coordinates.Latitude,
			Longitude: discovered.Coordinates.Longitude,
			CreatedAt: now,
		},
		Profiles: []models.RestaurantProfile{profile},
	}, nil
}

func profileFromDiscovery(restaurantID string, discovered models.DiscoveredProfile, now time.Time) models.RestaurantProfile {
	profile := models.RestaurantProfile{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		Source:       discovered.Identity.Source,
		ExternalID:   discovered.Identity.ExternalID,
		ExternalType: discovered.Identity.ExternalType,
		Name:         &discovered.Name,
		Latitude:     &discovered.Coordinates.Latitude,
		Longitude:    &discovered.Coordinates.Longitude,
		Tags:         discovered.Tags,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if discovered.Address.Street != "" {
		profile.Street = &discovered.Address.Street
	}
	if discovered.Address.HouseNumber != "" {
		profile.HouseNumber = &discovered.Address.HouseNumber
	}
	if discovered.Address.Postcode != "" {
		profile.Postcode = &discovered.Address.Postcode
	}
	if discovered.Address.City != "" {
		profile.City = &discovered.Address.City
	}
	if discovered.Address.Country != "" {
		profile.Country = &discovered.Address.Country
	}
	return profile
}

func (r *PostgresRestaurantRepository) loadAggregate(ctx context.Context, restaurantID string) (*models.RestaurantAndProfiles, error) {
	var agg models.RestaurantAndProfiles
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, latitude, longitude, created_at FROM restaurants WHERE id = $1`,
		restaurantID,
	).Scan(&agg.Restaurant.ID, &agg.Restaurant.Name, &agg.Restaurant.Latitude, &agg.Restaurant.Longitude, &agg.Restaurant.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("load restaurant: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM restaurant_profiles WHERE restaurant_id = $1 ORDER BY source ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p        models.RestaurantProfile
			source   string
			tags     pq.StringArray
			hoursRaw []byte
		)
		err := rows.Scan(
			&p.ID, &p.RestaurantID, &source, &p.ExternalID, &p.ExternalType,
			&p.Name, &p.Latitude, &p.Longitude,
			&p.Street, &p.HouseNumber, &p.Postcode, &p.City, &p.Country,
			&tags, &hoursRaw, &p.Version, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Source = models.Source(source)
		p.Tags = []string(tags)
		if len(hoursRaw) > 0 {
			if err := json.Unmarshal(hoursRaw, &p.OpeningHours); err != nil {
				return nil, fmt.Errorf("decode opening hours: %w", err)
			}
		}
		agg.Profiles = append(agg.Profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	return &agg, nil
}
