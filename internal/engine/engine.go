// internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"restaurant-finder/internal/common/config"
	apperrors "restaurant-finder/internal/common/errors"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/common/metrics"
	"restaurant-finder/internal/discovery"
	"restaurant-finder/internal/matching"
	"restaurant-finder/internal/models"
	"restaurant-finder/internal/repository"
)

// emptyBatchIdleWait is how long the loop sleeps when a discovery pass came
// back empty before asking the scanner again.
const emptyBatchIdleWait = 250 * time.Millisecond

// checkingPreviewSize caps the sampled name preview emitted per batch.
const checkingPreviewSize = 3

// EmitFunc receives one progress event. Returning an error stops the run.
type EmitFunc func(ProgressEvent) error

// Enricher is the matching pipeline boundary.
type Enricher interface {
	Enrich(ctx context.Context, discovered models.DiscoveredProfile, language string) (*models.RestaurantAndProfiles, error)
}

// ResultNotifier publishes the terminal candidate of a run. Best effort:
// implementations log failures and never surface them.
type ResultNotifier interface {
	NotifySearchResult(ctx context.Context, search *models.Search, candidate *models.SearchCandidate)
}

// SearchEngine drives the discover, enrich, validate loop for one search and
// streams progress events until exactly one result is produced.
type SearchEngine struct {
	searches   repository.SearchRepository
	candidates repository.CandidateRepository
	selector   discovery.Selector
	enricher   Enricher
	validator  Validator
	bands      config.DistanceBandsConfig
	discovery  config.DiscoveryConfig
	notifier   ResultNotifier
	logger     logger.Logger

	idleWait time.Duration
	shuffle  func(n int, swap func(i, j int))
	now      func() time.Time
}

// EngineOption customizes a SearchEngine.
type EngineOption func(*SearchEngine)

// WithNotifier attaches a best-effort result notifier.
func WithNotifier(n ResultNotifier) EngineOption {
	return func(e *SearchEngine) { e.notifier = n }
}

// WithShuffle replaces the batch permutation, used by tests to pin ordering.
func WithShuffle(shuffle func(n int, swap func(i, j int))) EngineOption {
	return func(e *SearchEngine) { e.shuffle = shuffle }
}

// WithIdleWait overrides the empty-batch wait.
func WithIdleWait(d time.Duration) EngineOption {
	return func(e *SearchEngine) { e.idleWait = d }
}

func NewSearchEngine(
	searches repository.SearchRepository,
	candidates repository.CandidateRepository,
	selector discovery.Selector,
	enricher Enricher,
	validator Validator,
	bands config.DistanceBandsConfig,
	discoveryCfg config.DiscoveryConfig,
	log logger.Logger,
	opts ...EngineOption,
) *SearchEngine {
	e := &SearchEngine{
		searches:   searches,
		candidates: candidates,
		selector:   selector,
		enricher:   enricher,
		validator:  validator,
		bands:      bands,
		discovery:  discoveryCfg,
		logger:     log.WithFields(map[string]interface{}{"component": "search-engine"}),
		idleWait:   emptyBatchIdleWait,
		shuffle:    rand.Shuffle,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SearchCandidate runs the engine in a goroutine and exposes the progress
// stream as a channel pair. The event channel closes when the run ends; the
// error channel then carries the terminal error, if any.
func (e *SearchEngine) SearchCandidate(ctx context.Context, searchID, locale string) (<-chan ProgressEvent, <-chan error) {
	events := make(chan ProgressEvent)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)

		err := e.Run(ctx, searchID, locale, func(ev ProgressEvent) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return apperrors.NewCancellationError("engine", ctx.Err())
			}
		})
		if err != nil {
			errc <- err
		}
	}()

	return events, errc
}

// Run executes one search pass, emitting progress events until exactly one
// result event (except on error or cancellation).
func (e *SearchEngine) Run(ctx context.Context, searchID, locale string, emit EmitFunc) error {
	start := e.now()

	search, latestCandidateID, err := e.searches.FindWithLatestCandidateID(ctx, searchID)
	if err != nil {
		return err
	}

	if search.Exhausted {
		return e.replayExhausted(ctx, search, latestCandidateID, emit)
	}

	final, err := e.scan(ctx, search, locale, emit)
	if err != nil {
		metrics.SearchesCompleted.WithLabelValues("error").Inc()
		return err
	}

	outcome := "rejected"
	if final != nil && final.IsReturned() {
		outcome = "returned"
	}
	metrics.SearchesCompleted.WithLabelValues(outcome).Inc()
	metrics.SearchDuration.WithLabelValues(outcome).Observe(e.now().Sub(start).Seconds())

	if e.notifier != nil && final != nil {
		e.notifier.NotifySearchResult(ctx, search, final)
	}
	return nil
}

// replayExhausted serves a search whose space was already fully scanned: no
// scanner, no matchers, just the last known outcome.
func (e *SearchEngine) replayExhausted(ctx context.Context, search *models.Search, latestCandidateID *string, emit EmitFunc) error {
	if err := emit(exhaustedEvent("search space exhausted")); err != nil {
		return err
	}

	if latestCandidateID != nil {
		candidate, err := e.candidates.FindByID(ctx, *latestCandidateID)
		if err != nil {
			return err
		}
		return emit(resultEvent(candidate))
	}

	reason := models.ReasonNoRestaurantFound
	return emit(resultEvent(&models.SearchCandidate{
		SearchID:        search.ID,
		Status:          models.CandidateRejected,
		RejectionReason: &reason,
		CreatedAt:       e.now().UTC(),
	}))
}

func (e *SearchEngine) scan(ctx context.Context, search *models.Search, locale string, emit EmitFunc) (*models.SearchCandidate, error) {
	sc, err := e.searches.FindByIDWithCandidateContext(ctx, search.ID)
	if err != nil {
		return nil, err
	}

	if err := emit(searchingEvent("searching for restaurants nearby")); err != nil {
		return nil, err
	}

	bandName := string(search.DistanceRange)
	scanner := discovery.NewScanner(
		search.Center(),
		e.bands.ForRange(bandName),
		bandName,
		e.discovery,
		e.selector,
		sc.ExcludedIdentities,
		locale,
		e.logger,
	)

	order := sc.NextOrder
	var returned *models.SearchCandidate

	for returned == nil && !scanner.IsOver() {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewCancellationError("engine", err)
		}

		batch, err := scanner.NextRestaurants(ctx)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			if scanner.IsOver() {
				break
			}
			select {
			case <-ctx.Done():
				return nil, apperrors.NewCancellationError("engine", ctx.Err())
			case <-time.After(e.idleWait):
			}
			continue
		}

		if err := emit(batchDiscoveredEvent(len(batch), fmt.Sprintf("discovered %d restaurants", len(batch)))); err != nil {
			return nil, err
		}

		e.shuffle(len(batch), func(i, j int) {
			batch[i], batch[j] = batch[j], batch[i]
		})

		if err := emit(checkingRestaurantsEvent(previewNames(batch)...)); err != nil {
			return nil, err
		}

		for _, discovered := range batch {
			if err := ctx.Err(); err != nil {
				return nil, apperrors.NewCancellationError("engine", err)
			}

			if err := emit(checkingRestaurantsEvent(discovered.Name)); err != nil {
				return nil, err
			}

			candidate, agg, err := e.evaluate(ctx, search, discovered, locale, order)
			if err != nil {
				return nil, err
			}
			order++

			for _, identity := range agg.Identities() {
				scanner.AddIdentityToExclude(identity)
			}

			if candidate.IsReturned() {
				returned = candidate
				break
			}
		}
	}

	var final *models.SearchCandidate
	if returned != nil {
		final = returned
		if err := emit(resultEvent(final)); err != nil {
			return nil, err
		}
	} else {
		final, err = e.recoverFallback(ctx, search, order, emit)
		if err != nil {
			return nil, err
		}
	}

	if final == nil || !final.IsReturned() {
		if err := e.searches.MarkSearchAsExhausted(ctx, search.ID); err != nil {
			return nil, err
		}
	}
	return final, nil
}

// evaluate runs one discovered entity through enrichment and validation and
// persists the outcome as the next candidate.
func (e *SearchEngine) evaluate(ctx context.Context, search *models.Search, discovered models.DiscoveredProfile, locale string, order int) (*models.SearchCandidate, *models.RestaurantAndProfiles, error) {
	agg, err := e.enricher.Enrich(ctx, discovered, locale)
	if err != nil {
		return nil, nil, err
	}

	view := matching.Reconcile(agg)
	verdict, err := e.validator.Validate(ctx, search, agg, view)
	if err != nil {
		return nil, nil, err
	}

	candidate := &models.SearchCandidate{
		SearchID:     search.ID,
		Order:        order,
		Status:       models.CandidateReturned,
		RestaurantID: &agg.Restaurant.ID,
	}
	if !verdict.Valid {
		candidate.Status = models.CandidateRejected
		reason := verdict.Reason
		candidate.RejectionReason = &reason
	}

	if err := e.candidates.Create(ctx, candidate); err != nil {
		return nil, nil, err
	}
	metrics.CandidatesEvaluated.WithLabelValues(string(candidate.Status)).Inc()

	e.logger.Debug("candidate evaluated", map[string]interface{}{
		"search_id":     search.ID,
		"restaurant_id": agg.Restaurant.ID,
		"order":         candidate.Order,
		"status":        string(candidate.Status),
	})
	return candidate, agg, nil
}

// recoverFallback tries to re-materialize the best previously rejected
// candidate; failing that, it persists the terminal rejected entry.
func (e *SearchEngine) recoverFallback(ctx context.Context, search *models.Search, order int, emit EmitFunc) (*models.SearchCandidate, error) {
	if err := emit(lookingForFallbacksEvent("looking for fallbacks among rejected candidates")); err != nil {
		return nil, err
	}

	fallback, err := e.candidates.FindBestRejectedCandidateThatCouldServeAsFallback(ctx, search.ID)
	if err != nil {
		return nil, err
	}

	var final *models.SearchCandidate
	if fallback != nil {
		final, err = e.candidates.RecoverCandidate(ctx, fallback, order)
		if err != nil {
			return nil, err
		}
	} else {
		reason := models.ReasonNoRestaurantFound
		final = &models.SearchCandidate{
			SearchID:        search.ID,
			Order:           order,
			Status:          models.CandidateRejected,
			RejectionReason: &reason,
		}
		if err := e.candidates.Create(ctx, final); err != nil {
			return nil, err
		}
	}

	if err := emit(resultEvent(final)); err != nil {
		return nil, err
	}
	return final, nil
}

func previewNames(batch []models.DiscoveredProfile) []string {
	n := len(batch)
	if n > checkingPreviewSize {
		n = checkingPreviewSize
	}
	names := make([]string, 0, n)
	for _, d := range batch[:n] {
		names = append(names, d.Name)
	}
	return names
}
