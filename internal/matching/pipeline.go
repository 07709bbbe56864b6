// internal/matching/pipeline.go
package matching

import (
	"context"
	"fmt"
	"time"

	apperrors "restaurant-finder/internal/common/errors"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/models"
	"restaurant-finder/internal/repository"
)

// Pipeline resolves a discovered profile to a stored aggregate and runs the
// matcher chain over it. Matchers run in registration order; a matcher
// failure degrades the result instead of failing the pipeline, except for
// cancellation which always propagates.
type Pipeline struct {
	matchers    []Matcher
	restaurants repository.RestaurantRepository
	attempts    repository.MatchingRepository
	freshness   time.Duration
	logger      logger.Logger
	now         func() time.Time
}

func NewPipeline(
	matchers []Matcher,
	restaurants repository.RestaurantRepository,
	attempts repository.MatchingRepository,
	freshness time.Duration,
	log logger.Logger,
) *Pipeline {
	return &Pipeline{
		matchers:    matchers,
		restaurants: restaurants,
		attempts:    attempts,
		freshness:   freshness,
		logger:      log.WithFields(map[string]interface{}{"component": "matching-pipeline"}),
		now:         time.Now,
	}
}

// Enrich finds or creates the aggregate behind a discovered profile and runs
// every eligible matcher over it.
func (p *Pipeline) Enrich(ctx context.Context, discovered models.DiscoveredProfile, language string) (*models.RestaurantAndProfiles, error) {
	agg, err := p.restaurants.FindRestaurantWithExternalIdentity(ctx, discovered.Identity)
	if err != nil {
		return nil, fmt.Errorf("resolve discovered identity: %w", err)
	}
	if agg == nil {
		agg, err = p.restaurants.CreateRestaurantFromDiscovery(ctx, discovered)
		if err != nil {
			return nil, fmt.Errorf("create restaurant from discovery: %w", err)
		}
	}

	for _, matcher := range p.matchers {
		eligible, err := p.isEligible(ctx, matcher, agg)
		if err != nil {
			if apperrors.IsCancellation(err) {
				return nil, err
			}
			p.logger.Warn("matcher eligibility check failed", map[string]interface{}{
				"source": string(matcher.Source()),
				"error":  err.Error(),
			})
			continue
		}
		if !eligible {
			continue
		}

		result, err := matcher.MatchAndEnrich(ctx, agg, language)
		if err != nil {
			if apperrors.IsCancellation(err) {
				return nil, err
			}
			p.logger.Warn("matcher failed", map[string]interface{}{
				"source":        string(matcher.Source()),
				"restaurant_id": agg.Restaurant.ID,
				"error":         err.Error(),
			})
			continue
		}
		if result.Restaurant != nil {
			agg = result.Restaurant
		}
	}

	return agg, nil
}

// isEligible gates one matcher invocation: the source profile must be missing
// or stale, the monthly quota must not be spent, and no attempt may exist
// inside the freshness window.
func (p *Pipeline) isEligible(ctx context.Context, matcher Matcher, agg *models.RestaurantAndProfiles) (bool, error) {
	staleBefore := p.now().Add(-p.freshness)

	if profile := agg.ProfileFor(matcher.Source()); profile != nil && profile.UpdatedAt.After(staleBefore) {
		return false, nil
	}

	reached, err := matcher.HasReachedQuota(ctx)
	if err != nil {
		return false, err
	}
	if reached {
		return false, nil
	}

	exists, err := p.attempts.DoesAttemptExistSince(ctx, staleBefore, agg.Restaurant.ID, matcher.Source())
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Reconcile assembles the caller-facing view of an aggregate. Each field is
// resolved independently: the highest-priority profile carrying a value wins,
// the stored aggregate is the fallback of last resort.
func Reconcile(agg *models.RestaurantAndProfiles) models.ReconciledRestaurant {
	view := models.ReconciledRestaurant{
		RestaurantID: agg.Restaurant.ID,
		Name:         agg.Restaurant.Name,
		Latitude:     agg.Restaurant.Latitude,
		Longitude:    agg.Restaurant.Longitude,
	}

	ordered := make([]*models.RestaurantProfile, 0, len(models.SourcePriority))
	for _, source := range models.SourcePriority {
		if profile := agg.ProfileFor(source); profile != nil {
			ordered = append(ordered, profile)
		}
	}

	nameSet, latSet, lngSet, hoursSet := false, false, false, false
	streetSet, houseSet, postcodeSet, citySet, countrySet, tagsSet := false, false, false, false, false, false
	for _, profile := range ordered {
		if !nameSet && profile.Name != nil && *profile.Name != "" {
			view.Name = *profile.Name
			nameSet = true
		}
		if !latSet && profile.Latitude != nil {
			view.Latitude = *profile.Latitude
			latSet = true
		}
		if !lngSet && profile.Longitude != nil {
			view.Longitude = *profile.Longitude
			lngSet = true
		}
		if !streetSet && profile.Street != nil {
			view.Address.Street = *profile.Street
			streetSet = true
		}
		if !houseSet && profile.HouseNumber != nil {
			view.Address.HouseNumber = *profile.HouseNumber
			houseSet = true
		}
		if !postcodeSet && profile.Postcode != nil {
			view.Address.Postcode = *profile.Postcode
			postcodeSet = true
		}
		if !citySet && profile.City != nil {
			view.Address.City = *profile.City
			citySet = true
		}
		if !countrySet && profile.Country != nil {
			view.Address.Country = *profile.Country
			countrySet = true
		}
		if !tagsSet && len(profile.Tags) > 0 {
			view.Tags = profile.Tags
			tagsSet = true
		}
		if !hoursSet && len(profile.OpeningHours) > 0 {
			view.OpeningHours = profile.OpeningHours
			hoursSet = true
		}
	}

	return view
}
