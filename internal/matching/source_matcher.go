// internal/matching/source_matcher.go
package matching

import (
	"context"
	"time"

	apperrors "restaurant-finder/internal/common/errors"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/common/metrics"
	"restaurant-finder/internal/models"
	"restaurant-finder/internal/providers"
	"restaurant-finder/internal/repository"
	"restaurant-finder/internal/resilience"
)

// textSearchRadiusMeters bounds the geo search used when a profile has no
// external id yet. Tight on purpose: the coordinates come from a prior
// discovery of the same restaurant.
const textSearchRadiusMeters = 150

// SourceMatcher matches one stored restaurant against one provider, routed
// through that provider's circuit breaker. Every issued provider call is
// registered as a matching attempt, found or not.
type SourceMatcher struct {
	provider    providers.Provider
	breaker     *resilience.CircuitBreaker
	restaurants repository.RestaurantRepository
	attempts    repository.MatchingRepository
	maxPerMonth int
	logger      logger.Logger
}

func NewSourceMatcher(
	provider providers.Provider,
	breaker *resilience.CircuitBreaker,
	restaurants repository.RestaurantRepository,
	attempts repository.MatchingRepository,
	maxPerMonth int,
	log logger.Logger,
) *SourceMatcher {
	return &SourceMatcher{
		provider:    provider,
		breaker:     breaker,
		restaurants: restaurants,
		attempts:    attempts,
		maxPerMonth: maxPerMonth,
		logger:      log.WithFields(map[string]interface{}{"matcher": provider.Name()}),
	}
}

func (m *SourceMatcher) Source() models.Source {
	return m.provider.Source()
}

func (m *SourceMatcher) HasReachedQuota(ctx context.Context) (bool, error) {
	return m.attempts.HasReachedQuota(ctx, m.Source(), m.maxPerMonth)
}

func (m *SourceMatcher) MatchAndEnrich(ctx context.Context, agg *models.RestaurantAndProfiles, language string) (models.Matching, error) {
	prior := agg.ProfileFor(m.Source())

	var (
		record  *models.ProviderRecord
		err     error
		attempt models.MatchingAttempt
	)

	if prior != nil && prior.ExternalID != "" {
		attempt = models.MatchingAttempt{
			Query:        prior.ExternalID,
			QueryType:    models.QueryTypeByID,
			Source:       m.Source(),
			RestaurantID: agg.Restaurant.ID,
		}
		record, err = resilience.Execute(ctx, m.breaker, func(ctx context.Context) (*models.ProviderRecord, error) {
			return m.provider.FindByID(ctx, prior.ExternalID, prior.ExternalType, language)
		})
	} else {
		lat, lng := agg.Restaurant.Latitude, agg.Restaurant.Longitude
		radius := textSearchRadiusMeters
		attempt = models.MatchingAttempt{
			Query:        agg.Restaurant.Name,
			QueryType:    models.QueryTypeText,
			Source:       m.Source(),
			RestaurantID: agg.Restaurant.ID,
			Latitude:     &lat,
			Longitude:    &lng,
			RadiusMeters: &radius,
		}
		var records []models.ProviderRecord
		records, err = resilience.Execute(ctx, m.breaker, func(ctx context.Context) ([]models.ProviderRecord, error) {
			center := models.Coordinates{Latitude: lat, Longitude: lng}
			return m.provider.SearchNearby(ctx, agg.Restaurant.Name, center, radius, language)
		})
		if err == nil && len(records) > 0 {
			record = &records[0]
		}
	}

	if err != nil {
		// Fast-fails and cancellations never hit the provider, so they do
		// not consume quota.
		if !apperrors.IsCircuitOpen(err) && !apperrors.IsCancellation(err) {
			m.registerAttempt(ctx, attempt, false)
		}
		return models.Matching{Restaurant: agg, Err: err}, err
	}

	m.registerAttempt(ctx, attempt, record != nil)

	if record == nil {
		metrics.CandidatesEvaluated.WithLabelValues("no_match").Inc()
		return models.Matching{Restaurant: agg, Matched: false}, nil
	}

	profile := mergeProfile(agg.Restaurant.ID, prior, *record)
	if prior == nil {
		if err := m.restaurants.CreateProfile(ctx, &profile); err != nil {
			return models.Matching{Restaurant: agg, Err: err}, err
		}
	} else {
		if err := m.restaurants.UpdateProfile(ctx, &profile); err != nil {
			return models.Matching{Restaurant: agg, Err: err}, err
		}
	}

	return models.Matching{Restaurant: agg.WithProfile(profile), Matched: true}, nil
}

// registerAttempt is accounting, not control flow: a failure to record is
// logged and swallowed.
func (m *SourceMatcher) registerAttempt(ctx context.Context, attempt models.MatchingAttempt, found bool) {
	attempt.Found = found
	attempt.CreatedAt = time.Now().UTC()
	if err := m.attempts.RegisterAttemptToFindAMatch(ctx, &attempt); err != nil {
		m.logger.Warn("failed to register matching attempt", map[string]interface{}{
			"source": string(attempt.Source),
			"error":  err.Error(),
		})
	}
}

// mergeProfile folds a fresh provider record over the prior profile: a field
// present in the record wins, an absent field keeps its stored value.
func mergeProfile(restaurantID string, prior *models.RestaurantProfile, record models.ProviderRecord) models.RestaurantProfile {
	merged := models.RestaurantProfile{
		RestaurantID: restaurantID,
		Source:       record.Identity.Source,
		ExternalID:   record.Identity.ExternalID,
		ExternalType: record.Identity.ExternalType,
		Version:      1,
	}
	if prior != nil {
		merged = *prior
		merged.Version = prior.Version + 1
		if record.Identity.ExternalID != "" {
			merged.ExternalID = record.Identity.ExternalID
			merged.ExternalType = record.Identity.ExternalType
		}
	}

	if record.Name != nil {
		merged.Name = record.Name
	}
	if record.Latitude != nil {
		merged.Latitude = record.Latitude
	}
	if record.Longitude != nil {
		merged.Longitude = record.Longitude
	}
	if record.Street != nil {
		merged.Street = record.Street
	}
	if record.HouseNumber != nil {
		merged.HouseNumber = record.HouseNumber
	}
	if record.Postcode != nil {
		merged.Postcode = record.Postcode
	}
	if record.City != nil {
		merged.City = record.City
	}
	if record.Country != nil {
		merged.Country = record.Country
	}
	if len(record.Tags) > 0 {
		merged.Tags = record.Tags
	}
	if len(record.OpeningHours) > 0 {
		merged.OpeningHours = record.OpeningHours
	}
	return merged
}
