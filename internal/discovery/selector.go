// internal/discovery/selector.go
package discovery

import (
	"context"
	"time"

	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/models"
	"restaurant-finder/internal/providers"
	"restaurant-finder/internal/resilience"
)

// Selector is the strategy-selection layer: it decides which provider
// instances to call for one discovery pass and normalizes their results.
type Selector interface {
	Discover(ctx context.Context, center models.Coordinates, radiusMeters int, timeout time.Duration, language string, exclude []models.ProviderIdentity) ([]models.DiscoveredProfile, error)
}

// ProviderSelector fans out to every registered provider in registration
// order, each call routed through the circuit breaker keyed by the provider
// instance name. A provider failure propagates to the caller and aborts the
// whole discovery batch.
type ProviderSelector struct {
	providers *providers.Registry
	breakers  *resilience.Registry
	tags      TagRules
	logger    logger.Logger
}

// TagRules are the tag-filtering settings applied while normalizing.
type TagRules struct {
	HiddenTags   []string
	PriorityTags []string
	MaxTags      int
}

func NewProviderSelector(reg *providers.Registry, breakers *resilience.Registry, tags TagRules, log logger.Logger) *ProviderSelector {
	return &ProviderSelector{
		providers: reg,
		breakers:  breakers,
		tags:      tags,
		logger:    log,
	}
}

func (s *ProviderSelector) Discover(ctx context.Context, center models.Coordinates, radiusMeters int, timeout time.Duration, language string, exclude []models.ProviderIdentity) ([]models.DiscoveredProfile, error) {
	var out []models.DiscoveredProfile
	seen := make(map[models.ProviderIdentity]struct{}, len(exclude))
	for _, id := range exclude {
		seen[id] = struct{}{}
	}

	for _, provider := range s.providers.All() {
		provider := provider
		breaker := s.breakers.Get(provider.Name())

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		records, err := resilience.Execute(callCtx, breaker, func(ctx context.Context) ([]models.ProviderRecord, error) {
			return provider.SearchNearby(ctx, "restaurant", center, radiusMeters, language)
		})
		cancel()
		if err != nil {
			return nil, err
		}

		for _, rec := range records {
			profile, ok := s.normalize(rec)
			if !ok {
				continue
			}
			if _, dup := seen[profile.Identity]; dup {
				continue
			}
			seen[profile.Identity] = struct{}{}
			out = append(out, profile)
		}

		s.logger.Debug("provider discovery pass", map[string]interface{}{
			"provider": provider.Name(),
			"radius":   radiusMeters,
			"results":  len(records),
		})
	}

	return out, nil
}

// normalize turns a raw provider record into a discovered profile. Records
// without a name or coordinates cannot be matched downstream and are dropped.
func (s *ProviderSelector) normalize(rec models.ProviderRecord) (models.DiscoveredProfile, bool) {
	if rec.Name == nil || *rec.Name == "" || rec.Latitude == nil || rec.Longitude == nil {
		return models.DiscoveredProfile{}, false
	}

	profile := models.DiscoveredProfile{
		Identity: rec.Identity,
		Name:     *rec.Name,
		Coordinates: models.Coordinates{
			Latitude:  *rec.Latitude,
			Longitude: *rec.Longitude,
		},
		Tags: models.FilterTags(rec.Tags, s.tags.HiddenTags, s.tags.PriorityTags, s.tags.MaxTags),
	}
	if rec.Street != nil {
		profile.Address.Street = *rec.Street
	}
	if rec.HouseNumber != nil {
		profile.Address.HouseNumber = *rec.HouseNumber
	}
	if rec.Postcode != nil {
		profile.Address.Postcode = *rec.Postcode
	}
	if rec.City != nil {
		profile.Address.City = *rec.City
	}
	if rec.Country != nil {
		profile.Address.Country = *rec.Country
	}
	return profile, true
}
