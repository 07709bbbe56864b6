package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-finder/internal/common/config"
	apperrors "restaurant-finder/internal/common/errors"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/models"
	"restaurant-finder/internal/providers"
	"restaurant-finder/internal/resilience"
)

type fakeProvider struct {
	name         string
	source       models.Source
	records      []models.ProviderRecord
	err          error
	calls        int
	lastLanguage string
}

func (f *fakeProvider) Name() string          { return f.name }
func (f *fakeProvider) Source() models.Source { return f.source }

func (f *fakeProvider) FindByID(context.Context, string, string, string) (*models.ProviderRecord, error) {
	return nil, nil
}

func (f *fakeProvider) SearchNearby(_ context.Context, _ string, _ models.Coordinates, _ int, language string) ([]models.ProviderRecord, error) {
	f.calls++
	f.lastLanguage = language
	return f.records, f.err
}

func record(source models.Source, id, name string) models.ProviderRecord {
	lat, lng := 50.85, 4.35
	return models.ProviderRecord{
		Identity:  models.ProviderIdentity{Source: source, ExternalID: id, ExternalType: "place"},
		Name:      &name,
		Latitude:  &lat,
		Longitude: &lng,
	}
}

func newSelector(t *testing.T, provs ...providers.Provider) *ProviderSelector {
	t.Helper()
	registry := providers.NewProviderRegistry()
	for _, p := range provs {
		registry.Register(p)
	}
	breakers := resilience.NewRegistry(map[string]config.FailoverConfig{
		"default": {Retry: 0, TimeoutMs: 1000, ConsecutiveFailures: 5, HalfOpenAfterMs: 30000},
	}, nil, logger.NewTestLogger(t))

	return NewProviderSelector(registry, breakers, TagRules{MaxTags: 10}, logger.NewTestLogger(t))
}

func TestSelector_FansOutInRegistrationOrder(t *testing.T) {
	google := &fakeProvider{name: "google", source: models.SourceGoogle, records: []models.ProviderRecord{
		record(models.SourceGoogle, "g1", "Chez Leon"),
	}}
	overpass := &fakeProvider{name: "overpass", source: models.SourceOverpass, records: []models.ProviderRecord{
		record(models.SourceOverpass, "o1", "Fin de Siecle"),
	}}
	selector := newSelector(t, google, overpass)

	out, err := selector.Discover(context.Background(), models.Coordinates{}, 1000, time.Second, "fr", nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Chez Leon", out[0].Name)
	assert.Equal(t, "Fin de Siecle", out[1].Name)
	assert.Equal(t, "fr", google.lastLanguage, "language hint reaches the provider")
}

func TestSelector_DropsExcludedAndDuplicateIdentities(t *testing.T) {
	dup := record(models.SourceGoogle, "g1", "Chez Leon")
	google := &fakeProvider{name: "google", source: models.SourceGoogle, records: []models.ProviderRecord{
		dup, dup,
		record(models.SourceGoogle, "g2", "Aux Armes"),
	}}
	selector := newSelector(t, google)

	exclude := []models.ProviderIdentity{
		{Source: models.SourceGoogle, ExternalID: "g2", ExternalType: "place"},
	}
	out, err := selector.Discover(context.Background(), models.Coordinates{}, 1000, time.Second, "en", exclude)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Chez Leon", out[0].Name)
}

func TestSelector_DropsRecordsWithoutNameOrCoordinates(t *testing.T) {
	nameless := record(models.SourceGoogle, "g1", "")
	floating := record(models.SourceGoogle, "g2", "Nowhere")
	floating.Latitude = nil

	google := &fakeProvider{name: "google", source: models.SourceGoogle, records: []models.ProviderRecord{
		nameless, floating,
		record(models.SourceGoogle, "g3", "La Roue d'Or"),
	}}
	selector := newSelector(t, google)

	out, err := selector.Discover(context.Background(), models.Coordinates{}, 1000, time.Second, "en", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "La Roue d'Or", out[0].Name)
}

func TestSelector_ProviderFailureAbortsBatch(t *testing.T) {
	google := &fakeProvider{name: "google", source: models.SourceGoogle, records: []models.ProviderRecord{
		record(models.SourceGoogle, "g1", "Chez Leon"),
	}}
	broken := &fakeProvider{name: "tripadvisor", source: models.SourceTripAdvisor,
		err: apperrors.NewClientError("tripadvisor", errors.New("bad key"))}
	selector := newSelector(t, google, broken)

	_, err := selector.Discover(context.Background(), models.Coordinates{}, 1000, time.Second, "en", nil)
	require.Error(t, err)

	var pe *apperrors.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, apperrors.KindClient, pe.Kind)
}

func TestSelector_AppliesTagFiltering(t *testing.T) {
	rec := record(models.SourceGoogle, "g1", "Chez Leon")
	rec.Tags = []string{"establishment", "restaurant", "belgian"}

	google := &fakeProvider{name: "google", source: models.SourceGoogle, records: []models.ProviderRecord{rec}}
	registry := providers.NewProviderRegistry().Register(google)
	breakers := resilience.NewRegistry(map[string]config.FailoverConfig{
		"default": {Retry: 0, TimeoutMs: 1000, ConsecutiveFailures: 5, HalfOpenAfterMs: 30000},
	}, nil, logger.NewTestLogger(t))

	selector := NewProviderSelector(registry, breakers, TagRules{
		HiddenTags:   []string{"establishment"},
		PriorityTags: []string{"restaurant"},
		MaxTags:      10,
	}, logger.NewTestLogger(t))

	out, err := selector.Discover(context.Background(), models.Coordinates{}, 1000, time.Second, "en", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"restaurant", "belgian"}, out[0].Tags)
}
