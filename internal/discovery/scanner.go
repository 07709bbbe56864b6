// internal/discovery/scanner.go
package discovery

import (
	"context"
	"time"

	"restaurant-finder/internal/common/config"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/common/metrics"
	"restaurant-finder/internal/models"
)

// Scanner iterates over a growing radius around a center point, asking the
// strategy-selection layer for candidates and excluding identities already
// seen this session.
type Scanner struct {
	center        models.Coordinates
	initialRadius int
	timeout       time.Duration
	cfg           config.DiscoveryConfig
	selector      Selector
	language      string
	logger        logger.Logger
	band          string

	excluded  []models.ProviderIdentity
	iteration int
}

func NewScanner(center models.Coordinates, band config.DistanceBand, bandName string, cfg config.DiscoveryConfig, selector Selector, seedExclusions []models.ProviderIdentity, language string, log logger.Logger) *Scanner {
	s := &Scanner{
		center:        center,
		initialRadius: band.RangeMeters,
		timeout:       band.Timeout(),
		cfg:           cfg,
		selector:      selector,
		language:      language,
		band:          bandName,
		logger:        log.WithFields(map[string]interface{}{"component": "discovery-scanner"}),
	}
	for _, id := range seedExclusions {
		s.AddIdentityToExclude(id)
	}
	return s
}

// IsOver reports whether the discovery space is exhausted. Sticky: once the
// iteration counter reaches the configured maximum it never resets.
func (s *Scanner) IsOver() bool {
	return s.iteration >= s.cfg.MaxIterations
}

// NextRestaurants pulls the next discovery batch. Once over, it returns an
// empty batch without any provider call. Failures from the strategy layer
// propagate to the caller unchanged.
func (s *Scanner) NextRestaurants(ctx context.Context) ([]models.DiscoveredProfile, error) {
	if s.IsOver() {
		return nil, nil
	}

	s.iteration++
	radius := s.initialRadius + (s.iteration-1)*s.cfg.RangeIncreaseMeters
	metrics.DiscoveryIterations.WithLabelValues(s.band).Inc()

	s.logger.Debug("discovery iteration", map[string]interface{}{
		"iteration": s.iteration,
		"radius":    radius,
		"excluded":  len(s.excluded),
	})

	return s.selector.Discover(ctx, s.center, radius, s.timeout, s.language, s.excluded)
}

// AddIdentityToExclude registers an identity so it is never re-discovered in
// this session. Idempotent on (source, externalId, externalType) equality;
// returns the scanner for chaining.
func (s *Scanner) AddIdentityToExclude(identity models.ProviderIdentity) *Scanner {
	for _, existing := range s.excluded {
		if existing.Equal(identity) {
			return s
		}
	}
	s.excluded = append(s.excluded, identity)
	return s
}
