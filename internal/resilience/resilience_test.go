package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
)

var errBackend = errors.New("connection refused")

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute})
	cb.now = func() time.Time { return now }

	var transitions []string
	cb.OnStateChange(func(name string, from, to CircuitBreakerState) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	})

	fail := func() error { return errBackend }
	ok := func() error { return nil }

	assert.ErrorIs(t, cb.Call(fail), errBackend)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Call(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	calls := 0
	assert.ErrorIs(t, cb.Call(func() error { calls++; return nil }), ErrCircuitOpen)
	assert.Equal(t, 0, calls)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, cb.Call(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State(), "a failed trial reopens")

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{
		"redis:closed->open",
		"redis:open->half_open",
		"redis:half_open->open",
		"redis:open->half_open",
		"redis:half_open->closed",
	}, transitions)
}

func TestCircuitBreakerStatsAndReset(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Call(func() error { return errBackend })

	stats := cb.Stats()
	assert.Equal(t, "open", stats["state"])
	assert.Contains(t, stats, "next_attempt")

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	config := DefaultRetryConfig()
	config.InitialDelay = time.Millisecond

	attempts := 0
	err := RetryWithConfig(context.Background(), config, func(context.Context) error {
		attempts++
		return apperrors.NewValidationError("bad chart", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)

	attempts = 0
	err = RetryWithConfig(context.Background(), config, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return apperrors.NewUnavailableError("redis", errBackend)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryHonoursContext(t *testing.T) {
	config := DefaultRetryConfig()
	config.InitialDelay = time.Hour
	config.RetryableErrors = func(error) bool { return true }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := RetryWithConfig(ctx, config, func(context.Context) error { return errBackend })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalculateDelay(t *testing.T) {
	config := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}
	assert.Equal(t, 100*time.Millisecond, calculateDelay(config, 0))
	assert.Equal(t, 400*time.Millisecond, calculateDelay(config, 2))
	assert.Equal(t, time.Second, calculateDelay(config, 10))
}
