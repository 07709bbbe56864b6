// internal/matching/matcher.go
package matching

import (
	"context"

	"restaurant-finder/internal/models"
)

// Matcher attempts to match a stored restaurant against one external source
// and enrich its profile for that source.
type Matcher interface {
	// Source identifies which reconciliation slot this matcher fills.
	Source() models.Source
	// HasReachedQuota reports whether the monthly attempt cap for this source
	// is already spent.
	HasReachedQuota(ctx context.Context) (bool, error)
	// MatchAndEnrich queries the source, registers the attempt and persists
	// the refreshed profile. The returned aggregate carries the new profile;
	// the input is never mutated.
	MatchAndEnrich(ctx context.Context, agg *models.RestaurantAndProfiles, language string) (models.Matching, error)
}
