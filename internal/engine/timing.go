package engine

import (
	"context"
	"math"
	"time"
)

// Timing holds the base durations of the suspension points, before speed
// scaling.
type Timing struct {
	// Stage is the wait between an item entering pending and becoming ready.
	Stage time.Duration
	// Execute is how long an item occupies the call stack.
	Execute time.Duration
	// Turn is the wait before each drain phase.
	Turn time.Duration
	// Poll is the re-check interval while paused. It is not speed-scaled.
	Poll time.Duration
}

// DefaultTiming returns the pacing of the interactive visualizer.
func DefaultTiming() Timing {
	return Timing{
		Stage:   800 * time.Millisecond,
		Execute: 800 * time.Millisecond,
		Turn:    600 * time.Millisecond,
		Poll:    50 * time.Millisecond,
	}
}

// Sleeper suspends the phase loop. Sleep returns early with ctx.Err() when
// ctx is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a time.Timer.
type TimerSleeper struct{}

// Sleep waits for d or until ctx is done.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
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

// scale divides base by speed. speed is validated positive by SetSpeed.
// Results beyond the Duration range saturate rather than wrap.
func scale(base time.Duration, speed float64) time.Duration {
	f := float64(base) / speed
	if f >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}
