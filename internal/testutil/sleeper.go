package testutil

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// InstantSleeper returns immediately from every Sleep.
//
// Implements engine.Sleeper. Runs complete as fast as the scheduler allows,
// with identical snapshot sequences to a wall-clock run.
type InstantSleeper struct{}

// Sleep yields the processor and returns ctx.Err().
func (InstantSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	runtime.Gosched()
	return ctx.Err()
}

// RecordingSleeper returns immediately and records every requested duration.
//
// Thread-safety: safe for concurrent use via internal mutex.
type RecordingSleeper struct {
	mu        sync.Mutex
	durations []time.Duration
}

// NewRecordingSleeper creates an empty recorder.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d and returns ctx.Err().
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.durations = append(s.durations, d)
	s.mu.Unlock()
	runtime.Gosched()
	return ctx.Err()
}

// Durations returns a copy of the recorded durations in call order.
func (s *RecordingSleeper) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.durations...)
}

// Total returns the sum of the recorded durations.
func (s *RecordingSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Durations() {
		total += d
	}
	return total
}

// GateSleeper blocks every Sleep until the test calls Release.
//
// It lets a test hold the phase loop at a suspension point, act on the
// engine, then let the loop continue. With IgnoreCancel set, Sleep keeps
// blocking after its context is cancelled, so a resumed suspension can
// outlive a reset.
type GateSleeper struct {
	IgnoreCancel bool

	gate     chan struct{}
	opened   chan struct{}
	openOnce sync.Once
	waiting  atomic.Int32

	mu        sync.Mutex
	durations []time.Duration
}

// NewGateSleeper creates a closed gate.
func NewGateSleeper() *GateSleeper {
	return &GateSleeper{gate: make(chan struct{}), opened: make(chan struct{})}
}

// Sleep blocks until Release or Open (or ctx cancellation unless
// IgnoreCancel).
func (s *GateSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.durations = append(s.durations, d)
	s.mu.Unlock()

	s.waiting.Add(1)
	defer s.waiting.Add(-1)

	var cancelled <-chan struct{}
	if !s.IgnoreCancel {
		cancelled = ctx.Done()
	}
	select {
	case <-s.gate:
		return nil
	case <-s.opened:
		return nil
	case <-cancelled:
		return ctx.Err()
	}
}

// Release lets exactly one blocked Sleep return. It blocks until a sleeper
// takes the release.
func (s *GateSleeper) Release() {
	s.gate <- struct{}{}
}

// Open lets every current and future Sleep return immediately.
func (s *GateSleeper) Open() {
	s.openOnce.Do(func() { close(s.opened) })
}

// Waiting reports how many Sleep calls are currently blocked.
func (s *GateSleeper) Waiting() int {
	return int(s.waiting.Load())
}

// Durations returns a copy of the requested durations in call order.
func (s *GateSleeper) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.durations...)
}
