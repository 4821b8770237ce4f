package uiverify

import (
	"context"
	"errors"
	"time"

	"github.com/thesyncim/uiverify/pkg/uiverify/internal"
)

// Clock is the time source used to measure waits.
type Clock = internal.Clock

// errPollTimeout is returned by poll when cond never held.
var errPollTimeout = errors.New("poll timeout")

// poll evaluates cond every interval until it returns true, returns an
// error, the context ends or timeout elapses on clock. It returns the
// elapsed time of the last evaluation.
func poll(ctx context.Context, clock Clock, timeout, interval time.Duration, cond func(ctx context.Context) (bool, error)) (time.Duration, error) {
	start := clock.Now()
	for {
		ok, err := cond(ctx)
		elapsed := clock.Now().Sub(start)
		if err != nil {
			return elapsed, err
		}
		if ok {
			return elapsed, nil
		}
		if elapsed >= timeout {
			return elapsed, errPollTimeout
		}
		if err := sleep(ctx, interval); err != nil {
			return elapsed, err
		}
	}
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
