package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-finder/internal/models"
)

func validationSearch(prefs models.Preferences, window models.ServiceWindow) *models.Search {
	return &models.Search{
		ID:            "s1",
		DistanceRange: models.DistanceClose,
		ServiceWindow: window,
		Preferences:   prefs,
	}
}

func aggWithGoogleProfile() *models.RestaurantAndProfiles {
	return &models.RestaurantAndProfiles{
		Restaurant: models.Restaurant{ID: "r1", Name: "Chez Leon"},
		Profiles:   []models.RestaurantProfile{{Source: models.SourceGoogle}},
	}
}

func TestPreferenceValidator_RejectsWithoutProfiles(t *testing.T) {
	v := NewPreferenceValidator()
	search := validationSearch(models.Preferences{}, models.ServiceWindow{})
	agg := &models.RestaurantAndProfiles{Restaurant: models.Restaurant{ID: "r1"}}

	verdict, err := v.Validate(context.Background(), search, agg, models.ReconciledRestaurant{})
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonNoProfile, verdict.Reason)
}

func TestPreferenceValidator_RejectsHiddenTag(t *testing.T) {
	v := NewPreferenceValidator()
	search := validationSearch(models.Preferences{HiddenTags: []string{"fast_food"}}, models.ServiceWindow{})
	view := models.ReconciledRestaurant{Tags: []string{"restaurant", "fast_food"}}

	verdict, err := v.Validate(context.Background(), search, aggWithGoogleProfile(), view)
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonHiddenTag, verdict.Reason)
}

func TestPreferenceValidator_RejectsMissingRequiredTag(t *testing.T) {
	v := NewPreferenceValidator()
	search := validationSearch(models.Preferences{RequiredTags: []string{"vegan"}}, models.ServiceWindow{})
	view := models.ReconciledRestaurant{Tags: []string{"restaurant"}}

	verdict, err := v.Validate(context.Background(), search, aggWithGoogleProfile(), view)
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonMissingRequiredTag, verdict.Reason)
}

func TestPreferenceValidator_RejectsClosedRestaurant(t *testing.T) {
	v := NewPreferenceValidator()
	want := models.ServiceWindow{Weekday: time.Friday, OpensAt: "19:00", ClosesAt: "21:00"}
	search := validationSearch(models.Preferences{}, want)

	view := models.ReconciledRestaurant{OpeningHours: []models.ServiceWindow{
		{Weekday: time.Friday, OpensAt: "11:00", ClosesAt: "20:00"}, // closes too early
		{Weekday: time.Saturday, OpensAt: "11:00", ClosesAt: "23:00"},
	}}

	verdict, err := v.Validate(context.Background(), search, aggWithGoogleProfile(), view)
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonClosed, verdict.Reason)
}

func TestPreferenceValidator_AcceptsCoveringWindow(t *testing.T) {
	v := NewPreferenceValidator()
	want := models.ServiceWindow{Weekday: time.Friday, OpensAt: "19:00", ClosesAt: "21:00"}
	search := validationSearch(models.Preferences{}, want)

	view := models.ReconciledRestaurant{OpeningHours: []models.ServiceWindow{
		{Weekday: time.Friday, OpensAt: "18:00", ClosesAt: "23:00"},
	}}

	verdict, err := v.Validate(context.Background(), search, aggWithGoogleProfile(), view)
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
}

func TestPreferenceValidator_AssumesOpenWithoutHours(t *testing.T) {
	v := NewPreferenceValidator()
	want := models.ServiceWindow{Weekday: time.Friday, OpensAt: "19:00", ClosesAt: "21:00"}
	search := validationSearch(models.Preferences{}, want)

	verdict, err := v.Validate(context.Background(), search, aggWithGoogleProfile(), models.ReconciledRestaurant{})
	require.NoError(t, err)
	assert.True(t, verdict.Valid, "unknown opening hours must not reject")
}
