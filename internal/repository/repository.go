// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"restaurant-finder/internal/models"
)

var (
	ErrSearchNotFound    = errors.New("SEARCH_NOT_FOUND")
	ErrCandidateNotFound = errors.New("CANDIDATE_NOT_FOUND")
)

// SearchContext is everything the engine needs to resume a search: the
// aggregate, its prior candidates, the provider identities already attached
// to those candidates (seed exclusions) and the next candidate order.
type SearchContext struct {
	Search             models.Search
	Candidates         []models.SearchCandidate
	ExcludedIdentities []models.ProviderIdentity
	NextOrder          int
}

// SearchRepository persists the search aggregate root.
type SearchRepository interface {
	Create(ctx context.Context, search *models.Search) error
	// FindWithLatestCandidateID returns the search and the id of its most
	// recently created candidate, or nil when the search has none yet.
	FindWithLatestCandidateID(ctx context.Context, searchID string) (*models.Search, *string, error)
	FindByIDWithCandidateContext(ctx context.Context, searchID string) (*SearchContext, error)
	// MarkSearchAsExhausted sets the sticky exhausted flag. Never unset.
	MarkSearchAsExhausted(ctx context.Context, searchID string) error
}

// CandidateRepository persists the append-only candidate log.
type CandidateRepository interface {
	FindByID(ctx context.Context, candidateID string) (*models.SearchCandidate, error)
	Create(ctx context.Context, candidate *models.SearchCandidate) error
	// FindBestRejectedCandidateThatCouldServeAsFallback returns the most
	// promising previously rejected candidate of a search, or nil when none
	// qualifies.
	FindBestRejectedCandidateThatCouldServeAsFallback(ctx context.Context, searchID string) (*models.SearchCandidate, error)
	// RecoverCandidate materializes a new Returned candidate from a rejected
	// one, linking it via RecoveredFromCandidateID.
	RecoverCandidate(ctx context.Context, fallback *models.SearchCandidate, order int) (*models.SearchCandidate, error)
}

// RestaurantRepository persists restaurants and their per-source profiles.
type RestaurantRepository interface {
	CreateProfile(ctx context.Context, profile *models.RestaurantProfile) error
	UpdateProfile(ctx context.Context, profile *models.RestaurantProfile) error
	// FindRestaurantWithExternalIdentity resolves an aggregate by provider
	// identity, or returns (nil, nil) when unknown.
	FindRestaurantWithExternalIdentity(ctx context.Context, identity models.ProviderIdentity) (*models.RestaurantAndProfiles, error)
	// CreateRestaurantFromDiscovery creates the aggregate and its first
	// profile from a discovery result. Idempotent upsert on identity.
	CreateRestaurantFromDiscovery(ctx context.Context, discovered models.DiscoveredProfile) (*models.RestaurantAndProfiles, error)
}

// MatchingRepository persists matching attempts for quota accounting.
// Quota and "attempt exists" checks are plain read-then-act queries; under
// concurrent callers the monthly cap is a soft cap.
type MatchingRepository interface {
	DoesAttemptExistSince(ctx context.Context, since time.Time, restaurantID string, source models.Source) (bool, error)
	HasReachedQuota(ctx context.Context, source models.Source, maxPerMonth int) (bool, error)
	CountMatchingAttemptsDuringMonth(ctx context.Context, source models.Source, month time.Time) (int, error)
	RegisterAttemptToFindAMatch(ctx context.Context, attempt *models.MatchingAttempt) error
}
