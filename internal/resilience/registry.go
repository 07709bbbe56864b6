// internal/resilience/registry.go
package resilience

import (
	"sync"

	"restaurant-finder/internal/common/config"
	"restaurant-finder/internal/common/logger"
)

// Registry owns the breaker instances, one per named outbound dependency.
// It is constructed at application start-up and passed by reference; there
// is no package-level state. Breakers are created lazily on first use with
// the failover configuration registered under their name, falling back to
// the "default" entry.
type Registry struct {
	configs map[string]config.FailoverConfig
	store   StateStore
	logger  logger.Logger
	opts    []Option

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewRegistry(configs map[string]config.FailoverConfig, store StateStore, log logger.Logger, opts ...Option) *Registry {
	return &Registry{
		configs:  configs,
		store:    store,
		logger:   log,
		opts:     opts,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for a name, creating it on first use.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	cfg, ok := r.configs[name]
	if !ok {
		cfg = r.configs["default"]
	}

	opts := r.opts
	if r.store != nil {
		opts = append([]Option{WithStateStore(r.store)}, opts...)
	}
	b := NewCircuitBreaker(name, cfg, r.logger, opts...)
	r.breakers[name] = b
	return b
}
