package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/asitkr/event-loop-visualizer/internal/extract"
	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

// DefaultSpeed is the speed factor of a new engine.
const DefaultSpeed = 1.0

// Engine is the scheduler state machine.
//
// Thread-safety model:
//   - Run, Reset, TogglePause, SetSpeed, Snapshot, Wait: safe from any goroutine
//   - the phase loop of a run executes on its own goroutine; it is the only
//     writer of the structures while the run's epoch is current
//
// INVARIANTS:
//   - the call stack holds at most one item at every snapshot
//   - every live item sits in exactly one structure
//   - the log only grows and step only increases within an epoch
type Engine struct {
	mu sync.Mutex
	// notifyMu serializes observer delivery so snapshots arrive in
	// transition order even though observers run without mu.
	notifyMu sync.Mutex

	logger    *slog.Logger
	extractor *extract.Extractor
	timing    Timing
	sleeper   Sleeper
	policy    DrainPolicy
	runIDs    RunIDGenerator
	observers []Observer
	checks    bool

	ids    *Clock // item IDs, never reset
	epochs *Clock

	epoch   uint64
	seq     int64
	phase   ir.Phase
	runID   string
	speed   float64
	running bool
	paused  bool
	step    int
	backlog []ir.Operation

	callStack     itemQueue
	pending       itemQueue
	continuations itemQueue
	callbacks     itemQueue
	log           []string

	last   ir.Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTiming sets the base suspension durations. A non-positive Poll keeps
// the default poll interval.
func WithTiming(t Timing) Option {
	return func(e *Engine) {
		if t.Poll <= 0 {
			t.Poll = DefaultTiming().Poll
		}
		e.timing = t
	}
}

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		if s != nil {
			e.sleeper = s
		}
	}
}

// WithSpeed sets the initial speed factor. Invalid factors are ignored; use
// SetSpeed to get the validation error.
func WithSpeed(f float64) Option {
	return func(e *Engine) {
		if ValidSpeed(f) {
			e.speed = f
		}
	}
}

// WithDrainPolicy selects when the drain phase may run.
func WithDrainPolicy(p DrainPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithInvariantChecks validates every snapshot before it is published and
// panics with *ir.InvariantError on a violation.
func WithInvariantChecks() Option {
	return func(e *Engine) {
		e.checks = true
	}
}

// WithObserver registers an observer. Observers are notified in
// registration order.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// WithExtractor replaces the default operation extractor.
func WithExtractor(x *extract.Extractor) Option {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// New creates an idle engine with empty state.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:    slog.Default(),
		extractor: extract.New(),
		timing:    DefaultTiming(),
		sleeper:   TimerSleeper{},
		policy:    DrainAfterScript,
		runIDs:    UUIDv7Generator{},
		ids:       NewClock(),
		epochs:    NewClock(),
		phase:     ir.PhaseIdle,
		speed:     DefaultSpeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the configured drain policy.
func (e *Engine) Policy() DrainPolicy {
	return e.policy
}

// Timing returns the configured base durations.
func (e *Engine) Timing() Timing {
	return e.timing
}

// Run resets the engine, extracts the operations of program and starts the
// phase loop on a new goroutine. The returned channel is closed once that
// loop has exited and its observers have been notified, whether the run
// completed or was cancelled.
func (e *Engine) Run(program string) <-chan struct{} {
	ops := e.extractor.Extract(program)

	e.mu.Lock()
	if e.running {
		e.logger.Debug("run superseded", "run_id", e.runID, "epoch", e.epoch)
	}
	e.resetLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.runID = e.runIDs.Generate()
	e.backlog = ops
	e.running = true

	info := RunInfo{
		RunID:       e.runID,
		Epoch:       e.epoch,
		Program:     program,
		ProgramHash: ir.ProgramHash(program),
		Operations:  slices.Clone(ops),
		Policy:      e.policy,
		Speed:       e.speed,
	}
	snap := e.emitLocked(ir.PhaseStart)
	e.unlockAndNotify(func(o Observer) {
		o.OnRunStart(info)
		o.OnSnapshot(snap)
	})

	e.logger.Info("run started",
		"run_id", info.RunID,
		"epoch", info.Epoch,
		"operations", len(ops),
		"policy", string(info.Policy),
	)

	go e.loop(ctx, info.Epoch, info.RunID, done)
	return done
}

// Reset cancels any in-flight run and clears every structure and the
// backlog. Calling it repeatedly yields the same empty state.
func (e *Engine) Reset() {
	e.mu.Lock()
	cancelled := e.running
	e.resetLocked()
	snap := e.emitLocked(ir.PhaseReset)
	e.unlockAndNotify(func(o Observer) {
		o.OnSnapshot(snap)
	})

	e.logger.Info("engine reset", "epoch", snap.Epoch, "cancelled_run", cancelled)
}

// resetLocked clears state and invalidates suspensions of the current epoch.
// Caller must hold e.mu.
func (e *Engine) resetLocked() {
	e.epoch = uint64(e.epochs.Next())
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.seq = 0
	e.runID = ""
	e.running = false
	e.paused = false
	e.step = 0
	e.backlog = nil
	e.callStack.Clear()
	e.pending.Clear()
	e.continuations.Clear()
	e.callbacks.Clear()
	e.log = nil
	e.last = ir.Snapshot{}
}

// TogglePause flips the pause gate and returns the new value. It never
// touches the structures and publishes no snapshot; see Observer.
func (e *Engine) TogglePause() bool {
	e.mu.Lock()
	e.paused = !e.paused
	paused := e.paused
	e.mu.Unlock()

	e.logger.Debug("pause toggled", "paused", paused)
	return paused
}

// SetSpeed changes the factor applied to every suspension scheduled from now
// on. Waits already in progress keep their duration.
func (e *Engine) SetSpeed(factor float64) error {
	if !ValidSpeed(factor) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, factor)
	}
	e.mu.Lock()
	e.speed = factor
	e.mu.Unlock()
	return nil
}

// ValidSpeed reports whether f is a usable speed factor: positive and finite.
func ValidSpeed(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() ir.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Wait blocks until the phase loop of the most recent run has exited.
// It returns immediately if no run was ever started.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) snapshotLocked() ir.Snapshot {
	return ir.Snapshot{
		RunID:             e.runID,
		Epoch:             e.epoch,
		Seq:               e.seq,
		Phase:             e.phase,
		CallStack:         e.callStack.Items(),
		Pending:           e.pending.Items(),
		ContinuationQueue: e.continuations.Items(),
		CallbackQueue:     e.callbacks.Items(),
		Log:               append(make([]string, 0, len(e.log)), e.log...),
		Step:              e.step,
		Backlog:           len(e.backlog),
		Running:           e.running,
		Paused:            e.paused,
		Speed:             e.speed,
	}
}

// emitLocked records a transition and returns its snapshot.
// Caller must hold e.mu.
func (e *Engine) emitLocked(phase ir.Phase) ir.Snapshot {
	e.seq++
	e.phase = phase
	snap := e.snapshotLocked()
	if e.checks {
		if err := snap.CheckInvariants(); err != nil {
			panic(err)
		}
		if err := ir.CheckTransition(e.last, snap); err != nil {
			panic(err)
		}
	}
	e.last = snap
	return snap
}

// unlockAndNotify releases e.mu and delivers to every observer. notifyMu is
// taken before e.mu is released so deliveries keep transition order.
func (e *Engine) unlockAndNotify(notify func(Observer)) {
	e.notifyMu.Lock()
	e.mu.Unlock()
	defer e.notifyMu.Unlock()
	for _, o := range e.observers {
		notify(o)
	}
}

// loop drives one run and publishes its end.
func (e *Engine) loop(ctx context.Context, epoch uint64, runID string, done chan struct{}) {
	defer close(done)

	completed := e.drive(ctx, epoch)

	e.mu.Lock()
	result := RunResult{RunID: runID, Epoch: epoch}
	var snap ir.Snapshot
	if completed && e.epoch == epoch {
		e.running = false
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		snap = e.emitLocked(ir.PhaseFinish)
		result.Completed = true
		result.Log = snap.Log
		result.Steps = snap.Step
	}
	e.unlockAndNotify(func(o Observer) {
		if result.Completed {
			o.OnSnapshot(snap)
		}
		o.OnRunEnd(result)
	})

	if result.Completed {
		e.logger.Info("run finished", "run_id", runID, "steps", result.Steps, "log_entries", len(result.Log))
	} else {
		e.logger.Info("run cancelled", "run_id", runID, "epoch", epoch)
	}
}

// drive executes the phase loop. It returns false as soon as the epoch goes
// stale or the run context is cancelled.
func (e *Engine) drive(ctx context.Context, epoch uint64) bool {
	for {
		item, staged, live := e.stage(epoch)
		if !live {
			return false
		}
		if !staged {
			break
		}

		if item.Kind.IsPending() {
			if !e.wait(ctx, epoch, e.timing.Stage) {
				return false
			}
			if !e.transition(epoch, ir.PhaseReady, func() bool { return e.readyLocked(item.ID) }) {
				return false
			}
		} else {
			if !e.wait(ctx, epoch, e.timing.Execute) {
				return false
			}
			if !e.transition(epoch, ir.PhaseSettle, e.completeTopLocked) {
				return false
			}
		}

		if e.policy.drainsDuringBacklog() || e.backlogEmpty() {
			if !e.turn(ctx, epoch) {
				return false
			}
		}
	}

	// Nothing is left behind in a ready queue.
	for e.hasReady() {
		if !e.turn(ctx, epoch) {
			return false
		}
	}
	return e.current(epoch)
}

// stage dequeues the next operation and places its item. staged is false
// when the backlog is empty; live is false when the epoch is stale.
func (e *Engine) stage(epoch uint64) (item ir.ScheduledItem, staged, live bool) {
	live = e.transition(epoch, ir.PhaseStage, func() bool {
		if len(e.backlog) == 0 {
			return false
		}
		op := e.backlog[0]
		e.backlog = e.backlog[1:]
		e.step++

		item = ir.ScheduledItem{
			ID:    e.ids.Next(),
			Name:  op.Label,
			Kind:  ir.StagedKind(op),
			Delay: op.Delay,
		}
		if item.Kind.IsPending() {
			e.pending.Push(item)
		} else {
			e.callStack.Push(item)
		}
		staged = true
		return true
	})
	return item, staged, live
}

// turn is one event-loop turn: drain a ready item and run it to completion.
func (e *Engine) turn(ctx context.Context, epoch uint64) bool {
	if !e.wait(ctx, epoch, e.timing.Turn) {
		return false
	}
	moved := false
	if !e.transition(epoch, ir.PhaseDrain, func() bool {
		moved = e.drainOneLocked()
		return moved
	}) {
		return false
	}
	if !moved {
		return true
	}
	if !e.wait(ctx, epoch, e.timing.Execute) {
		return false
	}
	return e.transition(epoch, ir.PhaseComplete, e.completeTopLocked)
}

// readyLocked moves a pending item to the queue for its kind.
func (e *Engine) readyLocked(id int64) bool {
	it, ok := e.pending.Remove(id)
	if !ok {
		return false
	}
	it.Kind = ir.ReadyKind(it.Kind)
	if it.Kind == ir.KindContinuation {
		e.continuations.Push(it)
	} else {
		e.callbacks.Push(it)
	}
	return true
}

// drainOneLocked moves the head of the continuation queue, or failing that
// the callback queue, onto the call stack.
func (e *Engine) drainOneLocked() bool {
	it, ok := e.continuations.Pop()
	if !ok {
		it, ok = e.callbacks.Pop()
	}
	if !ok {
		return false
	}
	e.callStack.Push(it)
	return true
}

// completeTopLocked pops the call stack and logs the item's name.
func (e *Engine) completeTopLocked() bool {
	it, ok := e.callStack.Pop()
	if !ok {
		return false
	}
	e.log = append(e.log, it.Name)
	return true
}

// transition applies fn under the lock if epoch is still current, and
// publishes a snapshot when fn reports a change. It returns false only for a
// stale epoch.
func (e *Engine) transition(epoch uint64, phase ir.Phase, fn func() bool) bool {
	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		e.logger.Debug("stale suspension discarded", "epoch", epoch, "phase", string(phase))
		return false
	}
	if !fn() {
		e.mu.Unlock()
		return true
	}
	snap := e.emitLocked(phase)
	e.unlockAndNotify(func(o Observer) {
		o.OnSnapshot(snap)
	})
	return true
}

// wait is a suspension point. While paused it polls at the unscaled poll
// interval; otherwise it sleeps base scaled by the current speed.
func (e *Engine) wait(ctx context.Context, epoch uint64, base time.Duration) bool {
	for {
		e.mu.Lock()
		live, paused, speed := e.epoch == epoch, e.paused, e.speed
		e.mu.Unlock()

		if !live {
			e.logger.Debug("stale suspension discarded", "epoch", epoch)
			return false
		}
		if !paused {
			if err := e.sleeper.Sleep(ctx, scale(base, speed)); err != nil {
				return false
			}
			return e.current(epoch)
		}
		if err := e.sleeper.Sleep(ctx, e.timing.Poll); err != nil {
			return false
		}
	}
}

func (e *Engine) current(epoch uint64) bool {
	e.mu.Lock()
	live := e.epoch == epoch
	e.mu.Unlock()
	if !live {
		e.logger.Debug("stale suspension discarded", "epoch", epoch)
	}
	return live
}

func (e *Engine) backlogEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.backlog) == 0
}

func (e *Engine) hasReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.continuations.Len() > 0 || e.callbacks.Len() > 0
}
