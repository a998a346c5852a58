package readiness

import (
	"context"
	"errors"
	"time"
)

// Outcome is the result of a readiness wait.
type Outcome uint8

const (
	// Ready means the device responded, or the settle delay elapsed.
	Ready Outcome = iota

	// TimedOut means no acknowledgment arrived within the timeout.
	TimedOut

	// ConnectionLost means the connection failed during the wait.
	ConnectionLost

	// Cancelled means the caller's context was cancelled during the wait.
	Cancelled
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Ready:
		return "READY"
	case TimedOut:
		return "TIMED_OUT"
	case ConnectionLost:
		return "CONNECTION_LOST"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Result describes one completed wait.
type Result struct {
	Outcome Outcome

	// Err is the error that ended the wait, nil when Ready.
	Err error

	// Elapsed is the time spent waiting, as measured by the waiter's clock.
	Elapsed time.Duration
}

// Clock abstracts time for the waiter.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Config configures a Waiter.
type Config struct {
	// Verify enables settle delays. Acknowledged waits ignore it.
	Verify bool

	// Clock measures waits. Nil means SystemClock.
	Clock Clock
}

// Waiter enforces readiness waits for one session.
type Waiter struct {
	verify bool
	clock  Clock
}

// NewWaiter creates a waiter.
func NewWaiter(cfg Config) *Waiter {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &Waiter{verify: cfg.Verify, clock: clock}
}

// Clock returns the waiter's clock.
func (w *Waiter) Clock() Clock {
	return w.clock
}

// AwaitAcknowledged runs exchange and waits for it to finish, bounded by
// timeout. exchange receives a context that expires with the timeout and must
// return nil once the device acknowledged.
//
// A non-positive timeout yields TimedOut without calling exchange.
func (w *Waiter) AwaitAcknowledged(ctx context.Context, timeout time.Duration, exchange func(context.Context) error) Result {
	start := w.clock.Now()
	result := func(o Outcome, err error) Result {
		return Result{Outcome: o, Err: err, Elapsed: w.clock.Now().Sub(start)}
	}

	if err := ctx.Err(); err != nil {
		return result(classify(ctx, err), err)
	}
	if timeout <= 0 {
		return result(TimedOut, context.DeadlineExceeded)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- exchange(waitCtx)
	}()

	select {
	case err := <-done:
		if err == nil {
			return result(Ready, nil)
		}
		return result(classify(ctx, err), err)
	case <-waitCtx.Done():
		err := waitCtx.Err()
		return result(classify(ctx, err), err)
	}
}

// classify maps an exchange error to an outcome. parent is the caller's
// context; a cancellation there wins over everything else.
func classify(parent context.Context, err error) Outcome {
	if errors.Is(parent.Err(), context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimedOut
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	return ConnectionLost
}

// Settle blocks for d without sending anything. It is a no-op when
// verification is disabled or d is not positive.
func (w *Waiter) Settle(ctx context.Context, d time.Duration) Result {
	if !w.verify || d <= 0 {
		return Result{Outcome: Ready}
	}

	start := w.clock.Now()
	select {
	case <-w.clock.After(d):
		return Result{Outcome: Ready, Elapsed: w.clock.Now().Sub(start)}
	case <-ctx.Done():
		return Result{Outcome: classify(ctx, ctx.Err()), Err: ctx.Err(), Elapsed: w.clock.Now().Sub(start)}
	}
}

// Pause blocks for d regardless of the verification setting.
func (w *Waiter) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-w.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
