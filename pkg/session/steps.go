package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/pixelblaze-tools/pb-go/pkg/policy"
	"github.com/pixelblaze-tools/pb-go/pkg/readiness"
	"github.com/pixelblaze-tools/pb-go/pkg/wire"
)

// acknowledged runs an exchange the device answers and waits for it.
// It returns whether the device answered; a timeout is recorded as a
// warning, anything else that stops the wait is returned.
func (r *run) acknowledged(ctx context.Context, what string, exchange func(context.Context) error) (bool, error) {
	res := r.waiter.AwaitAcknowledged(ctx, r.o.cfg.Timeout, exchange)
	r.waited += res.Elapsed
	r.o.logger.Debug("acknowledged wait", "step", what, "outcome", res.Outcome, "elapsed", res.Elapsed)

	switch res.Outcome {
	case readiness.Ready:
		return true, nil
	case readiness.TimedOut:
		r.warn(fmt.Errorf("%w: no acknowledgment for %s within %s", ErrTimedOut, what, r.o.cfg.Timeout))
		return false, nil
	case readiness.Cancelled:
		return false, ErrCancelled
	default:
		return false, translate(res.Err)
	}
}

// fireAndForget writes fields and settles when rule asks for it.
func (r *run) fireAndForget(ctx context.Context, rule policy.Rule, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return translate(err)
	}
	if err := r.dev.WriteFireAndForget(fields); err != nil {
		return translate(err)
	}
	if !rule.Settle {
		return nil
	}
	res := r.waiter.Settle(ctx, r.o.cfg.SettleDelay)
	r.waited += res.Elapsed
	if res.Outcome != readiness.Ready {
		return translate(res.Err)
	}
	return nil
}

// read runs an idempotent read bounded by the configured timeout.
func (r *run) read(ctx context.Context, what string, fn func(context.Context) error) error {
	rctx, cancel := context.WithTimeout(ctx, r.o.cfg.Timeout)
	defer cancel()

	if err := fn(rctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ErrCancelled
		}
		err = translate(err)
		if errors.Is(err, ErrTimedOut) {
			return fmt.Errorf("%w: reading %s", err, what)
		}
		return err
	}
	return nil
}

// writeStep performs one write of a verified write and its wait. It
// returns whether the write was confirmed well enough to read it back.
type writeStep func(ctx context.Context) (bool, error)

// readStep reads the value a verified write changed.
type readStep func(ctx context.Context) (float64, error)

// verified runs the write-wait-verify cycle bounded by a RetryState.
func (r *run) verified(ctx context.Context, rule policy.Rule, what string, target, tolerance float64, w writeStep, rb readStep) error {
	verify := rule.Verifiable && r.o.cfg.Verify
	state := NewRetryState(target, tolerance, rule.MaxRetries)

	for state.Next() {
		if state.Retried() {
			r.progressf("Retrying %s...", what)
		}
		ok, err := w(ctx)
		if err != nil {
			return err
		}
		if !ok || !verify {
			return nil
		}

		r.setState(stateVerifying, what)
		v, err := rb(ctx)
		if err != nil {
			if errors.Is(err, ErrTimedOut) {
				r.warn(fmt.Errorf("could not verify %s: %w", what, err))
				return nil
			}
			return err
		}
		if state.Observe(v) {
			return nil
		}
		r.o.logger.Debug("verification mismatch", "step", what, "attempt", state.Attempts, "want", target, "got", v)
	}

	r.warn(fmt.Errorf("%w: %s is %v, wanted %v", ErrVerificationMismatch, what, state.LastObserved, state.Target))
	return nil
}

// brightness writes a brightness level as the operation op.
func (r *run) brightness(ctx context.Context, op policy.Operation, level float64) error {
	rule := policy.Classify(op)
	return r.verified(ctx, rule, "brightness", level, BrightnessTolerance,
		func(ctx context.Context) (bool, error) {
			err := r.fireAndForget(ctx, rule, map[string]any{
				wire.KeyBrightness: level,
				wire.KeySave:       r.req.Save,
			})
			return err == nil, err
		},
		func(ctx context.Context) (float64, error) {
			var v float64
			err := r.read(ctx, "brightness", func(ctx context.Context) error {
				s, err := r.dev.ReadSettings(ctx)
				if err == nil {
					v = s.Brightness
				}
				return err
			})
			return v, err
		})
}

// pixelCount writes the pixel count.
func (r *run) pixelCount(ctx context.Context, n int) error {
	rule := policy.Classify(policy.OpPixelCountSet)
	return r.verified(ctx, rule, "pixel count", float64(n), 0,
		func(ctx context.Context) (bool, error) {
			return r.acknowledged(ctx, "pixel count", func(ctx context.Context) error {
				return r.dev.WriteAcknowledged(ctx, map[string]any{
					wire.KeyPixelCount: n,
					wire.KeySave:       r.req.Save,
				})
			})
		},
		func(ctx context.Context) (float64, error) {
			var v int
			err := r.read(ctx, "pixel count", func(ctx context.Context) error {
				s, err := r.dev.ReadSettings(ctx)
				if err == nil {
					v = s.PixelCount
				}
				return err
			})
			return float64(v), err
		})
}

// runSequencer starts or pauses the sequencer.
func (r *run) runSequencer(ctx context.Context, play bool) error {
	what := "sequencer pause"
	if play {
		what = "sequencer play"
	}
	_, err := r.acknowledged(ctx, what, func(ctx context.Context) error {
		return r.dev.WriteAcknowledged(ctx, map[string]any{
			wire.KeyRunSequencer: play,
			wire.KeySave:         r.req.Save,
		})
	})
	return err
}

// activate switches to a stored pattern.
func (r *run) activate(ctx context.Context, id string) error {
	_, err := r.acknowledged(ctx, "pattern switch", func(ctx context.Context) error {
		return r.dev.WriteAcknowledged(ctx, map[string]any{
			wire.KeyActiveProgramID: id,
			wire.KeySave:            r.req.Save,
		})
	})
	return err
}

func (r *run) patterns(ctx context.Context) (map[string]string, error) {
	var patterns map[string]string
	err := r.read(ctx, "pattern list", func(ctx context.Context) error {
		var err error
		patterns, err = r.dev.ListPatterns(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("%w: no patterns stored on the device", ErrNotFound)
	}
	return patterns, nil
}
