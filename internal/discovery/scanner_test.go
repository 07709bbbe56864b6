package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-finder/internal/common/config"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/models"
)

type fakeSelector struct {
	calls     []int // radius per call
	languages []string
	exclusion [][]models.ProviderIdentity
	results   [][]models.DiscoveredProfile
	err       error
}

func (f *fakeSelector) Discover(_ context.Context, _ models.Coordinates, radiusMeters int, _ time.Duration, language string, exclude []models.ProviderIdentity) ([]models.DiscoveredProfile, error) {
	f.calls = append(f.calls, radiusMeters)
	f.languages = append(f.languages, language)
	snapshot := make([]models.ProviderIdentity, len(exclude))
	copy(snapshot, exclude)
	f.exclusion = append(f.exclusion, snapshot)

	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	batch := f.results[0]
	f.results = f.results[1:]
	return batch, nil
}

func identity(source models.Source, id string) models.ProviderIdentity {
	return models.ProviderIdentity{Source: source, ExternalID: id, ExternalType: "place"}
}

func newTestScanner(t *testing.T, selector Selector, maxIterations int) *Scanner {
	t.Helper()
	return NewScanner(
		models.Coordinates{Latitude: 50.85, Longitude: 4.35},
		config.DistanceBand{RangeMeters: 1000, TimeoutMs: 5000},
		"close",
		config.DiscoveryConfig{RangeIncreaseMeters: 500, MaxIterations: maxIterations},
		selector,
		nil,
		"en",
		logger.NewTestLogger(t),
	)
}

func TestScanner_RadiusWidensDeterministically(t *testing.T) {
	selector := &fakeSelector{}
	scanner := newTestScanner(t, selector, 3)

	for i := 0; i < 3; i++ {
		_, err := scanner.NextRestaurants(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []int{1000, 1500, 2000}, selector.calls)
	assert.Equal(t, []string{"en", "en", "en"}, selector.languages)
}

func TestScanner_IsOverIsSticky(t *testing.T) {
	selector := &fakeSelector{}
	scanner := newTestScanner(t, selector, 2)

	assert.False(t, scanner.IsOver())
	_, _ = scanner.NextRestaurants(context.Background())
	assert.False(t, scanner.IsOver())
	_, _ = scanner.NextRestaurants(context.Background())
	assert.True(t, scanner.IsOver())

	// Once over, further pulls return empty and never reach the selector.
	for i := 0; i < 3; i++ {
		batch, err := scanner.NextRestaurants(context.Background())
		require.NoError(t, err)
		assert.Empty(t, batch)
		assert.True(t, scanner.IsOver())
	}
	assert.Len(t, selector.calls, 2)
}

func TestScanner_ExclusionIsIdempotent(t *testing.T) {
	selector := &fakeSelector{}
	scanner := newTestScanner(t, selector, 5)

	id := identity(models.SourceGoogle, "place-1")
	scanner.AddIdentityToExclude(id).AddIdentityToExclude(id).AddIdentityToExclude(id)

	_, err := scanner.NextRestaurants(context.Background())
	require.NoError(t, err)

	require.Len(t, selector.exclusion, 1)
	assert.Equal(t, []models.ProviderIdentity{id}, selector.exclusion[0])
}

func TestScanner_ExclusionComparesFullTriple(t *testing.T) {
	selector := &fakeSelector{}
	scanner := newTestScanner(t, selector, 5)

	// Same external id under a different source or type is a different entity.
	scanner.AddIdentityToExclude(identity(models.SourceGoogle, "42"))
	scanner.AddIdentityToExclude(identity(models.SourceTripAdvisor, "42"))
	scanner.AddIdentityToExclude(models.ProviderIdentity{Source: models.SourceGoogle, ExternalID: "42", ExternalType: "node"})

	_, err := scanner.NextRestaurants(context.Background())
	require.NoError(t, err)
	assert.Len(t, selector.exclusion[0], 3)
}

func TestScanner_SeedExclusionsReachSelector(t *testing.T) {
	selector := &fakeSelector{}
	seed := []models.ProviderIdentity{
		identity(models.SourceGoogle, "a"),
		identity(models.SourceOverpass, "b"),
	}
	scanner := NewScanner(
		models.Coordinates{Latitude: 50.85, Longitude: 4.35},
		config.DistanceBand{RangeMeters: 1000, TimeoutMs: 5000},
		"close",
		config.DiscoveryConfig{RangeIncreaseMeters: 500, MaxIterations: 2},
		selector,
		seed,
		"en",
		logger.NewTestLogger(t),
	)

	_, err := scanner.NextRestaurants(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, seed, selector.exclusion[0])
}

func TestScanner_SelectorFailurePropagates(t *testing.T) {
	boom := errors.New("provider blew up")
	selector := &fakeSelector{err: boom}
	scanner := newTestScanner(t, selector, 3)

	_, err := scanner.NextRestaurants(context.Background())
	assert.ErrorIs(t, err, boom)
}
