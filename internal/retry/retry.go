// Package retry wraps operations with bounded retries, exponential backoff,
// jitter, and a maximum delay. Classification decides retryability.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/restackio/restack/internal/errclass"
)

// Options governs one retry-wrapped operation.
type Options struct {
	MaxRetries         int           // retries after the first attempt; total attempts = MaxRetries+1
	BaseDelay          time.Duration
	ExponentialBackoff bool
	MaxDelay           time.Duration // 0 means no clamp
	Jitter             bool          // scale each delay by a uniform factor in [0.5, 1.0)
}

// Result is the outcome of a retry-wrapped operation.
type Result[T any] struct {
	Success   bool
	Value     T
	Err       *errclass.AppError
	Attempts  int
	TotalTime time.Duration
}

// SleepFunc suspends for d or returns early with ctx's error.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Manager executes operations with retry. The sleep and random source are
// injectable so backoff timing tests run without wall-clock waits.
type Manager struct {
	sleep SleepFunc
	randF func() float64
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithSleep(f SleepFunc) Option        { return func(m *Manager) { m.sleep = f } }
func WithRand(f func() float64) Option    { return func(m *Manager) { m.randF = f } }
func WithClock(f func() time.Time) Option { return func(m *Manager) { m.now = f } }

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
		randF: rand.Float64,
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Delay computes the pre-attempt delay after `attempt` failures (1-based).
func (o Options) Delay(attempt int, randF func() float64) time.Duration {
	d := o.BaseDelay
	if o.ExponentialBackoff {
		d = o.BaseDelay << (attempt - 1)
	}
	if o.MaxDelay > 0 && d > o.MaxDelay {
		d = o.MaxDelay
	}
	if o.Jitter && randF != nil {
		factor := 0.5 + randF()*0.5
		d = time.Duration(float64(d) * factor)
	}
	return d
}

// Do attempts op once, then retries recoverable failures up to
// opts.MaxRetries times. Failures are classified before every retry
// decision; non-retryable errors stop immediately. On exhaustion the result
// carries the last classified error and the true attempt count.
func Do[T any](ctx context.Context, m *Manager, opts Options, operation string, op func(ctx context.Context) (T, error)) Result[T] {
	start := m.now()
	var lastErr *errclass.AppError

	attempt := 0
	for {
		attempt++
		value, err := op(ctx)
		if err == nil {
			return Result[T]{
				Success:   true,
				Value:     value,
				Attempts:  attempt,
				TotalTime: m.now().Sub(start),
			}
		}

		lastErr = errclass.Classify(err, operation)
		if !lastErr.Retryable || attempt > opts.MaxRetries {
			break
		}

		delay := opts.Delay(attempt, m.randF)
		if delay > 0 {
			if sleepErr := m.sleep(ctx, delay); sleepErr != nil {
				lastErr = errclass.Classify(sleepErr, operation)
				break
			}
		}
	}

	var zero T
	return Result[T]{
		Success:   false,
		Value:     zero,
		Err:       lastErr,
		Attempts:  attempt,
		TotalTime: m.now().Sub(start),
	}
}
