// Package pace provides the clock and token-bucket pacing used for the
// fixed waits in the pipeline: the pause between description calls and the
// propagation delay after publishing frames.
package pace

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pacer enforces a minimum interval between the end of one call and the
// start of the next. Wait gates a call and Done marks it finished; the
// interval restarts at Done however long the call took.
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
	clock    Clock
}

func NewPacer(interval time.Duration, clock Clock) *Pacer {
	if clock == nil {
		clock = RealClock{}
	}
	p := &Pacer{interval: interval, clock: clock}
	if interval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return p
}

// Wait blocks until the interval since the last Done has passed. Before the
// first Done it returns immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	missing := 1 - p.limiter.TokensAt(p.clock.Now())
	if missing <= 0 {
		return ctx.Err()
	}
	return p.clock.Sleep(ctx, time.Duration(missing*float64(p.interval)))
}

// Done records that a gated call has finished, successfully or not.
func (p *Pacer) Done() {
	if p.limiter == nil {
		return
	}
	p.limiter.AllowN(p.clock.Now(), 1)
}
