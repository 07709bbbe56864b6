// internal/resilience/breaker.go
package resilience

import (
	"context"
	"sync"
	"time"

	"restaurant-finder/internal/common/config"
	apperrors "restaurant-finder/internal/common/errors"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/common/metrics"
)

// State is the circuit state of one named breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerState is the mutable state of one named breaker. Failures resets to
// zero only on success; OPEN always carries a NextAttempt in the future at
// the moment it was set.
type BreakerState struct {
	Failures    int       `json:"failures"`
	NextAttempt time.Time `json:"nextAttempt"`
	State       State     `json:"state"`
}

// Operation is a fallible, cancellable call guarded by a breaker.
type Operation func(ctx context.Context) error

// CircuitBreaker wraps an operation with retry, circuit state and a
// per-attempt timeout, composed retry -> circuit -> timeout -> operation.
type CircuitBreaker struct {
	name   string
	cfg    config.FailoverConfig
	store  StateStore
	logger logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    BreakerState
	hydrated bool
}

// Option customizes a breaker.
type Option func(*CircuitBreaker)

// WithStateStore attaches a shared keyed store. State is hydrated once on
// first execution and written back after every change, best effort.
func WithStateStore(store StateStore) Option {
	return func(b *CircuitBreaker) { b.store = store }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *CircuitBreaker) { b.now = now }
}

// WithSleep injects the backoff sleeper, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(b *CircuitBreaker) { b.sleep = sleep }
}

func NewCircuitBreaker(name string, cfg config.FailoverConfig, log logger.Logger, opts ...Option) *CircuitBreaker {
	b := &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"breaker": name}),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's registry key.
func (b *CircuitBreaker) Name() string {
	return b.name
}

// State returns a snapshot of the current breaker state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op under the breaker policy: attempts = retry+1, exponential
// backoff of 2^attempt * 100ms before each retry, a cancellation is rethrown
// immediately and never retried, and a non-retriable failure ends the loop.
func (b *CircuitBreaker) Execute(ctx context.Context, op Operation) error {
	b.hydrateOnce(ctx)

	attempts := b.cfg.Retry + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			if err := b.sleep(ctx, delay); err != nil {
				return apperrors.NewCancellationError(b.name, err)
			}
		}

		err := b.attempt(ctx, op)
		if err == nil {
			return nil
		}
		if apperrors.IsCancellation(err) {
			return err
		}
		lastErr = err
		if !apperrors.IsRetriable(err) {
			return err
		}
	}

	return lastErr
}

// attempt applies the circuit gate and the timeout wrapper around one call.
func (b *CircuitBreaker) attempt(ctx context.Context, op Operation) error {
	wasHalfOpen, err := b.enter()
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout())
	defer cancel()

	opErr := op(opCtx)
	if opErr == nil {
		b.recordSuccess()
		return nil
	}

	// The caller's token wins over the breaker timeout: a caller-driven
	// cancellation is not a circuit failure.
	if ctx.Err() != nil && opCtx.Err() != nil {
		return apperrors.NewCancellationError(b.name, ctx.Err())
	}
	if apperrors.IsCancellation(opErr) {
		return opErr
	}
	if opCtx.Err() == context.DeadlineExceeded {
		opErr = apperrors.NewTimeoutError(b.name)
	}

	b.recordFailure(wasHalfOpen)
	return opErr
}

// enter checks the circuit gate. While OPEN it either transitions to
// HALF_OPEN (cooldown elapsed) or fails fast without invoking the operation.
func (b *CircuitBreaker) enter() (wasHalfOpen bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state.State {
	case StateOpen:
		if now.After(b.state.NextAttempt) {
			b.state.State = StateHalfOpen
			b.transitionLocked(StateHalfOpen)
			return true, nil
		}
		remaining := b.state.NextAttempt.Sub(now)
		return false, apperrors.NewCircuitOpenError(b.name, remaining)
	case StateHalfOpen:
		return true, nil
	default:
		return false, nil
	}
}

func (b *CircuitBreaker) recordSuccess() {
	b.mu.Lock()
	changed := b.state.Failures != 0 || b.state.State != StateClosed
	b.state.Failures = 0
	b.state.State = StateClosed
	b.state.NextAttempt = time.Time{}
	if changed {
		b.transitionLocked(StateClosed)
	}
	snapshot := b.state
	b.mu.Unlock()

	if changed {
		b.persist(snapshot)
	}
}

// recordFailure counts one non-cancellation failure. The circuit opens at
// the consecutive-failure threshold, or immediately after a failed
// half-open trial.
func (b *CircuitBreaker) recordFailure(wasHalfOpen bool) {
	b.mu.Lock()
	b.state.Failures++
	if b.state.Failures >= b.cfg.ConsecutiveFailures || wasHalfOpen {
		b.state.State = StateOpen
		b.state.NextAttempt = b.now().Add(b.cfg.HalfOpenAfter())
		b.transitionLocked(StateOpen)
	}
	snapshot := b.state
	b.mu.Unlock()

	b.persist(snapshot)
}

func (b *CircuitBreaker) transitionLocked(to State) {
	metrics.BreakerTransitions.WithLabelValues(b.name, to.String()).Inc()
	b.logger.Info("circuit breaker transition", map[string]interface{}{
		"state":    to.String(),
		"failures": b.state.Failures,
	})
}

// hydrateOnce loads shared state on the first execution only. Read failures
// are logged and ignored, falling back to the zero (CLOSED) state.
func (b *CircuitBreaker) hydrateOnce(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hydrated || b.store == nil {
		b.hydrated = true
		return
	}
	b.hydrated = true

	state, err := b.store.Load(ctx, b.name)
	if err != nil {
		b.logger.Warn("failed to hydrate breaker state, starting closed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if state != nil {
		b.state = *state
	}
}

// persist writes state back fire-and-forget; write failures never surface.
func (b *CircuitBreaker) persist(state BreakerState) {
	if b.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.store.Save(ctx, b.name, state); err != nil {
			b.logger.Warn("failed to persist breaker state", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
}

// Execute runs op under the breaker and returns its typed result.
func Execute[T any](ctx context.Context, b *CircuitBreaker, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// backoffDelay is 2^attempt * 100ms: 200ms before the first retry, 400ms
// before the second, and so on.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
