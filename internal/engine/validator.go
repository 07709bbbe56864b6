// internal/engine/validator.go
package engine

import (
	"context"

	"restaurant-finder/internal/models"
)

// Rejection reasons produced by the default validator.
const (
	ReasonNoProfile          = "no_profile"
	ReasonHiddenTag          = "hidden_tag"
	ReasonMissingRequiredTag = "missing_required_tag"
	ReasonClosed             = "closed"
)

// Verdict is the outcome of validating one reconciled candidate.
type Verdict struct {
	Valid  bool
	Reason string
}

// Validator decides whether a reconciled candidate satisfies the search.
type Validator interface {
	Validate(ctx context.Context, search *models.Search, agg *models.RestaurantAndProfiles, view models.ReconciledRestaurant) (Verdict, error)
}

// PreferenceValidator applies the caller's tag preferences and the service
// window against the reconciled view. Restaurants without known opening
// hours are assumed open: a closed verdict needs evidence.
type PreferenceValidator struct{}

func NewPreferenceValidator() *PreferenceValidator {
	return &PreferenceValidator{}
}

func (v *PreferenceValidator) Validate(_ context.Context, search *models.Search, agg *models.RestaurantAndProfiles, view models.ReconciledRestaurant) (Verdict, error) {
	if len(agg.Profiles) == 0 {
		return Verdict{Reason: ReasonNoProfile}, nil
	}

	for _, tag := range view.Tags {
		for _, hidden := range search.Preferences.HiddenTags {
			if tag == hidden {
				return Verdict{Reason: ReasonHiddenTag}, nil
			}
		}
	}

	for _, required := range search.Preferences.RequiredTags {
		if !containsTag(view.Tags, required) {
			return Verdict{Reason: ReasonMissingRequiredTag}, nil
		}
	}

	if len(view.OpeningHours) > 0 && !coversWindow(view.OpeningHours, search.ServiceWindow) {
		return Verdict{Reason: ReasonClosed}, nil
	}

	return Verdict{Valid: true}, nil
}

func containsTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

// coversWindow reports whether any opening interval on the requested weekday
// fully contains the requested window. "HH:MM" strings compare lexically.
func coversWindow(hours []models.ServiceWindow, want models.ServiceWindow) bool {
	for _, h := range hours {
		if h.Weekday != want.Weekday {
			continue
		}
		if h.OpensAt <= want.OpensAt && h.ClosesAt >= want.ClosesAt {
			return true
		}
	}
	return false
}
