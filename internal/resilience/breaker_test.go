package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-finder/internal/common/config"
	apperrors "restaurant-finder/internal/common/errors"
	"restaurant-finder/internal/common/logger"
)

func testFailoverConfig() config.FailoverConfig {
	return config.FailoverConfig{
		Retry:               0,
		TimeoutMs:           1000,
		ConsecutiveFailures: 3,
		HalfOpenAfterMs:     30000,
	}
}

func newTestBreaker(t *testing.T, cfg config.FailoverConfig, opts ...Option) *CircuitBreaker {
	t.Helper()
	return NewCircuitBreaker("test", cfg, logger.NewTestLogger(t), opts...)
}

// noSleep skips backoff waits so retry tests run instantly.
func noSleep(delays *[]time.Duration) Option {
	return WithSleep(func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := newTestBreaker(t, testFailoverConfig())
	boom := apperrors.NewServerError("test", errors.New("boom"))

	for i := 0; i < 3; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return boom })
		require.Error(t, err)
	}

	state := b.State()
	assert.Equal(t, StateOpen, state.State)
	assert.Equal(t, 3, state.Failures)
}

func TestBreaker_FailsFastWithoutInvokingOperation(t *testing.T) {
	b := newTestBreaker(t, testFailoverConfig())
	boom := apperrors.NewServerError("test", errors.New("boom"))

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), func(context.Context) error { return boom })
	}
	require.Equal(t, StateOpen, b.State().State)

	invoked := false
	err := b.Execute(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, invoked)
	assert.True(t, apperrors.IsCircuitOpen(err))

	var pe *apperrors.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Greater(t, pe.RetryAfter, time.Duration(0))
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	now := time.Now()
	clock := &now
	var mu sync.Mutex
	b := newTestBreaker(t, testFailoverConfig(), WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return *clock
	}))

	boom := apperrors.NewServerError("test", errors.New("boom"))
	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), func(context.Context) error { return boom })
	}
	require.Equal(t, StateOpen, b.State().State)

	// Cooldown elapses, the trial call succeeds.
	mu.Lock()
	*clock = now.Add(31 * time.Second)
	mu.Unlock()

	err := b.Execute(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)

	state := b.State()
	assert.Equal(t, StateClosed, state.State)
	assert.Equal(t, 0, state.Failures)
}

func TestBreaker_HalfOpenFailureReopensImmediately(t *testing.T) {
	now := time.Now()
	current := now
	clock := &current
	var mu sync.Mutex
	cfg := testFailoverConfig()
	cfg.ConsecutiveFailures = 100 // threshold must not matter while half-open
	b := newTestBreaker(t, cfg, WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return *clock
	}))

	// Force OPEN via direct failures.
	boom := apperrors.NewServerError("test", errors.New("boom"))
	b.mu.Lock()
	b.state = BreakerState{Failures: 100, State: StateOpen, NextAttempt: now.Add(30 * time.Second)}
	b.hydrated = true
	b.mu.Unlock()

	mu.Lock()
	*clock = now.Add(31 * time.Second)
	mu.Unlock()

	err := b.Execute(context.Background(), func(context.Context) error { return boom })
	require.Error(t, err)

	state := b.State()
	assert.Equal(t, StateOpen, state.State)
	assert.True(t, state.NextAttempt.After(now.Add(31*time.Second)))
}

func TestBreaker_RetryBackoffDelays(t *testing.T) {
	cfg := testFailoverConfig()
	cfg.Retry = 2

	var delays []time.Duration
	b := newTestBreaker(t, cfg, noSleep(&delays))

	calls := 0
	err := b.Execute(context.Background(), func(context.Context) error {
		calls++
		return apperrors.NewServerError("test", fmt.Errorf("attempt %d", calls))
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, delays)
}

func TestBreaker_CancellationNeverCounted(t *testing.T) {
	b := newTestBreaker(t, testFailoverConfig())

	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		err := b.Execute(ctx, func(ctx context.Context) error {
			cancel()
			return apperrors.NewCancellationError("test", ctx.Err())
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCancellation(err))
	}

	state := b.State()
	assert.Equal(t, StateClosed, state.State)
	assert.Equal(t, 0, state.Failures)
}

func TestBreaker_CancellationNotRetried(t *testing.T) {
	cfg := testFailoverConfig()
	cfg.Retry = 5

	var delays []time.Duration
	b := newTestBreaker(t, cfg, noSleep(&delays))

	calls := 0
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return apperrors.NewCancellationError("test", context.Canceled)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestBreaker_NonRetriableErrorEndsLoop(t *testing.T) {
	cfg := testFailoverConfig()
	cfg.Retry = 3

	var delays []time.Duration
	b := newTestBreaker(t, cfg, noSleep(&delays))

	calls := 0
	err := b.Execute(context.Background(), func(context.Context) error {
		calls++
		return apperrors.NewClientError("test", errors.New("bad request"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBreaker_UntypedErrorIsRetriable(t *testing.T) {
	cfg := testFailoverConfig()
	cfg.Retry = 1

	var delays []time.Duration
	b := newTestBreaker(t, cfg, noSleep(&delays))

	calls := 0
	_ = b.Execute(context.Background(), func(context.Context) error {
		calls++
		return errors.New("something opaque")
	})

	assert.Equal(t, 2, calls)
}

func TestBreaker_AttemptTimeoutBecomesTimeoutError(t *testing.T) {
	cfg := testFailoverConfig()
	cfg.TimeoutMs = 10

	b := newTestBreaker(t, cfg)

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, err)
	var pe *apperrors.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, apperrors.KindTimeout, pe.Kind)
	assert.Equal(t, 1, b.State().Failures)
}

func TestBreaker_CallerCancellationWinsOverTimeout(t *testing.T) {
	b := newTestBreaker(t, testFailoverConfig())

	ctx, cancel := context.WithCancel(context.Background())
	err := b.Execute(ctx, func(opCtx context.Context) error {
		cancel()
		<-opCtx.Done()
		return opCtx.Err()
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsCancellation(err))
	assert.Equal(t, 0, b.State().Failures)
}

func TestGenericExecute_ReturnsTypedResult(t *testing.T) {
	b := newTestBreaker(t, testFailoverConfig())

	got, err := Execute(context.Background(), b, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = Execute(context.Background(), b, func(context.Context) (int, error) {
		return 0, apperrors.NewServerError("test", errors.New("boom"))
	})
	require.Error(t, err)
}
