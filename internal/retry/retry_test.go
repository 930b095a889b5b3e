package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restackio/restack/internal/errclass"
)

// recordingSleep captures requested delays without waiting.
func recordingSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func retryableErr(msg string) error {
	return errors.New(msg + ": connection refused")
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	m := NewManager(WithSleep(recordingSleep(&[]time.Duration{})))
	res := Do(context.Background(), m, Options{MaxRetries: 3, BaseDelay: time.Second}, "op",
		func(ctx context.Context) (string, error) { return "ok", nil })

	require.True(t, res.Success)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, 1, res.Attempts)
	assert.Nil(t, res.Err)
}

func TestDo_FailsKTimesThenSucceeds(t *testing.T) {
	var delays []time.Duration
	m := NewManager(WithSleep(recordingSleep(&delays)))

	k := 3
	calls := 0
	res := Do(context.Background(), m, Options{MaxRetries: 3, BaseDelay: 10 * time.Millisecond}, "op",
		func(ctx context.Context) (int, error) {
			calls++
			if calls <= k {
				return 0, retryableErr("transient")
			}
			return 42, nil
		})

	require.True(t, res.Success)
	assert.Equal(t, k+1, res.Attempts)
	assert.Equal(t, 42, res.Value)
	assert.Len(t, delays, k)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var delays []time.Duration
	m := NewManager(WithSleep(recordingSleep(&delays)))

	res := Do(context.Background(), m, Options{MaxRetries: 2, BaseDelay: time.Millisecond}, "op",
		func(ctx context.Context) (int, error) { return 0, retryableErr("always") })

	require.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts) // maxRetries + 1
	require.NotNil(t, res.Err)
	assert.Equal(t, errclass.CategoryNetwork, res.Err.Category)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	var delays []time.Duration
	m := NewManager(WithSleep(recordingSleep(&delays)))

	calls := 0
	res := Do(context.Background(), m, Options{MaxRetries: 5, BaseDelay: time.Millisecond}, "op",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("401 unauthorized")
		})

	require.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
	assert.Equal(t, errclass.CategoryAuth, res.Err.Category)
}

func TestDo_ExponentialBackoffSequence(t *testing.T) {
	var delays []time.Duration
	m := NewManager(WithSleep(recordingSleep(&delays)))

	res := Do(context.Background(), m, Options{
		MaxRetries:         4,
		BaseDelay:          1000 * time.Millisecond,
		ExponentialBackoff: true,
		MaxDelay:           3000 * time.Millisecond,
	}, "op", func(ctx context.Context) (int, error) { return 0, retryableErr("always") })

	require.False(t, res.Success)
	assert.Equal(t, 5, res.Attempts)
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		3000 * time.Millisecond,
		3000 * time.Millisecond,
	}
	assert.Equal(t, want, delays)
}

func TestDo_FixedDelayWithoutBackoff(t *testing.T) {
	var delays []time.Duration
	m := NewManager(WithSleep(recordingSleep(&delays)))

	Do(context.Background(), m, Options{MaxRetries: 3, BaseDelay: 250 * time.Millisecond}, "op",
		func(ctx context.Context) (int, error) { return 0, retryableErr("always") })

	for _, d := range delays {
		assert.Equal(t, 250*time.Millisecond, d)
	}
}

func TestDo_JitterBounds(t *testing.T) {
	// Sweep the random source across [0,1) and check every observed delay
	// lands in [base/2, base].
	for _, r := range []float64{0, 0.25, 0.5, 0.75, 0.999} {
		var delays []time.Duration
		m := NewManager(WithSleep(recordingSleep(&delays)), WithRand(func() float64 { return r }))

		Do(context.Background(), m, Options{MaxRetries: 2, BaseDelay: 1000 * time.Millisecond, Jitter: true}, "op",
			func(ctx context.Context) (int, error) { return 0, retryableErr("always") })

		for _, d := range delays {
			assert.GreaterOrEqual(t, d, 500*time.Millisecond)
			assert.LessOrEqual(t, d, 1000*time.Millisecond)
		}
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	res := Do(ctx, m, Options{MaxRetries: 3, BaseDelay: time.Second}, "op",
		func(ctx context.Context) (int, error) { return 0, retryableErr("always") })

	require.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, errclass.CategoryTimeout, res.Err.Category)
}

func TestDo_PreclassifiedErrorRespected(t *testing.T) {
	app := errclass.New("CUSTOM", "already classified")
	app.Retryable = false

	calls := 0
	m := NewManager(WithSleep(recordingSleep(&[]time.Duration{})))
	res := Do(context.Background(), m, Options{MaxRetries: 5, BaseDelay: time.Millisecond}, "op",
		func(ctx context.Context) (int, error) {
			calls++
			return 0, app
		})

	assert.Equal(t, 1, calls)
	assert.Equal(t, "CUSTOM", res.Err.Code)
}
