package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelblaze-tools/pb-go/pkg/readiness"
)

// ping sends PingCount pings, one at a time, PingInterval apart.
// Round trips are measured by the waiter's clock.
func (r *run) ping(ctx context.Context) (Result, error) {
	n := r.req.PingCount
	stats := &PingStats{}
	r.progressf("Pinging Pixelblaze...")

	for i := 1; i <= n; i++ {
		if i > 1 {
			if err := r.waiter.Pause(ctx, PingInterval); err != nil {
				return Result{}, translate(err)
			}
		}

		stats.Sent++
		res := r.waiter.AwaitAcknowledged(ctx, r.o.cfg.Timeout, r.dev.SendPing)
		r.waited += res.Elapsed

		switch res.Outcome {
		case readiness.Ready:
			stats.add(res.Elapsed)
			r.progressf("Ping %d: %.2fms", i, millis(res.Elapsed))
		case readiness.TimedOut:
			r.progressf("Ping %d: timeout", i)
		case readiness.Cancelled:
			return Result{}, ErrCancelled
		default:
			r.progressf("Ping %d: error - %v", i, res.Err)
			return Result{}, translate(res.Err)
		}
	}

	if stats.Received == 0 {
		r.progressf("All pings failed")
		return Result{}, fmt.Errorf("%w: no reply to %d ping(s)", ErrTimedOut, n)
	}
	if lost := stats.Lost(); lost > 0 {
		r.warn(fmt.Errorf("%w: %d of %d ping(s) unanswered", ErrTimedOut, lost, n))
	}
	return Result{Ping: stats}, nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
