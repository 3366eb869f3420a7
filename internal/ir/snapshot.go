package ir

import (
	"fmt"
	"slices"
)

// Phase names the state transition that produced a snapshot.
type Phase string

const (
	PhaseIdle     Phase = "idle"     // freshly constructed engine
	PhaseReset    Phase = "reset"    // structures cleared
	PhaseStart    Phase = "start"    // backlog loaded, running
	PhaseStage    Phase = "stage"    // item created on the stack or in pending
	PhaseReady    Phase = "ready"    // pending item moved to its ready queue
	PhaseSettle   Phase = "settle"   // synchronous item popped and logged
	PhaseDrain    Phase = "drain"    // ready item moved onto the stack
	PhaseComplete Phase = "complete" // drained item popped and logged
	PhaseFinish   Phase = "finish"   // backlog and queues exhausted
)

// Snapshot is a read-only copy of the complete engine state.
//
// Every slice is owned by the snapshot. Consumers may keep snapshots
// indefinitely; later transitions never change them.
type Snapshot struct {
	RunID string `json:"run_id"`
	Epoch uint64 `json:"epoch"`
	Seq   int64  `json:"seq"`
	Phase Phase  `json:"phase"`

	CallStack         []ScheduledItem `json:"call_stack"`
	Pending           []ScheduledItem `json:"pending"`
	ContinuationQueue []ScheduledItem `json:"continuation_queue"`
	CallbackQueue     []ScheduledItem `json:"callback_queue"`
	Log               []string        `json:"log"`

	Step    int  `json:"step"`
	Backlog int  `json:"backlog"`
	Running bool `json:"running"`
	Paused  bool `json:"paused"`

	// Speed is not part of the canonical form (floats are not canonical).
	Speed float64 `json:"-"`
}

// Clone returns a deep copy. Nil slices become empty slices so that the
// JSON and canonical forms are stable.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.CallStack = cloneItems(s.CallStack)
	out.Pending = cloneItems(s.Pending)
	out.ContinuationQueue = cloneItems(s.ContinuationQueue)
	out.CallbackQueue = cloneItems(s.CallbackQueue)
	out.Log = append(make([]string, 0, len(s.Log)), s.Log...)
	return out
}

func cloneItems(items []ScheduledItem) []ScheduledItem {
	return append(make([]ScheduledItem, 0, len(items)), items...)
}

// Top returns the item on the call stack, if any.
func (s Snapshot) Top() (ScheduledItem, bool) {
	if len(s.CallStack) == 0 {
		return ScheduledItem{}, false
	}
	return s.CallStack[len(s.CallStack)-1], true
}

// PendingTimers returns the staged timer items in staging order.
func (s Snapshot) PendingTimers() []ScheduledItem {
	return filterKind(s.Pending, KindPendingTimer)
}

// PendingContinuations returns the staged continuation items in staging order.
func (s Snapshot) PendingContinuations() []ScheduledItem {
	return filterKind(s.Pending, KindPendingContinuation)
}

func filterKind(items []ScheduledItem, kind Kind) []ScheduledItem {
	out := []ScheduledItem{}
	for _, it := range items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// Items returns every live item across all structures.
func (s Snapshot) Items() []ScheduledItem {
	out := make([]ScheduledItem, 0, len(s.CallStack)+len(s.Pending)+len(s.ContinuationQueue)+len(s.CallbackQueue))
	out = append(out, s.CallStack...)
	out = append(out, s.Pending...)
	out = append(out, s.ContinuationQueue...)
	out = append(out, s.CallbackQueue...)
	return out
}

// Empty reports whether no item is live and the log is empty.
func (s Snapshot) Empty() bool {
	return len(s.Items()) == 0 && len(s.Log) == 0 && s.Step == 0 && s.Backlog == 0
}

// InvariantError reports a violated engine invariant. It always indicates an
// implementation bug, never bad input.
type InvariantError struct {
	Rule   string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Rule, e.Detail)
}

// Invariant rule names.
const (
	RuleStackDepth   = "stack_depth"
	RuleUniqueItem   = "unique_item"
	RulePendingKind  = "pending_kind"
	RuleQueueKind    = "queue_kind"
	RuleLogGrowth    = "log_growth"
	RuleStepMonotone = "step_monotone"
	RuleItemOrder    = "item_order"
)

// CheckInvariants validates the structural invariants of a single snapshot.
func (s Snapshot) CheckInvariants() error {
	if len(s.CallStack) > 1 {
		return &InvariantError{Rule: RuleStackDepth, Detail: fmt.Sprintf("call stack holds %d items", len(s.CallStack))}
	}

	seen := make(map[int64]bool)
	for _, it := range s.Items() {
		if seen[it.ID] {
			return &InvariantError{Rule: RuleUniqueItem, Detail: fmt.Sprintf("item %d present more than once", it.ID)}
		}
		seen[it.ID] = true
	}

	for _, it := range s.Pending {
		if !it.Kind.IsPending() {
			return &InvariantError{Rule: RulePendingKind, Detail: fmt.Sprintf("item %d in pending has kind %q", it.ID, it.Kind)}
		}
	}
	for _, it := range s.ContinuationQueue {
		if it.Kind != KindContinuation {
			return &InvariantError{Rule: RuleQueueKind, Detail: fmt.Sprintf("item %d in continuation queue has kind %q", it.ID, it.Kind)}
		}
	}
	for _, it := range s.CallbackQueue {
		if it.Kind != KindTimer {
			return &InvariantError{Rule: RuleQueueKind, Detail: fmt.Sprintf("item %d in callback queue has kind %q", it.ID, it.Kind)}
		}
	}

	// Queues are FIFO in creation order.
	for _, q := range [][]ScheduledItem{s.Pending, s.ContinuationQueue, s.CallbackQueue} {
		for i := 1; i < len(q); i++ {
			if q[i].ID <= q[i-1].ID {
				return &InvariantError{Rule: RuleItemOrder, Detail: fmt.Sprintf("item %d queued behind newer item %d", q[i].ID, q[i-1].ID)}
			}
		}
	}
	return nil
}

// CheckTransition validates the invariants that relate two consecutive
// snapshots of the same run: the log only grows and step only increases.
// Snapshots from different epochs are not comparable and always pass.
func CheckTransition(prev, next Snapshot) error {
	if prev.Epoch != next.Epoch {
		return nil
	}
	if next.Step < prev.Step {
		return &InvariantError{Rule: RuleStepMonotone, Detail: fmt.Sprintf("step went from %d to %d", prev.Step, next.Step)}
	}
	if len(next.Log) < len(prev.Log) || !slices.Equal(prev.Log, next.Log[:len(prev.Log)]) {
		return &InvariantError{Rule: RuleLogGrowth, Detail: fmt.Sprintf("log %v is not an extension of %v", next.Log, prev.Log)}
	}
	return nil
}

// CanonicalMap converts the snapshot into plain values for MarshalCanonical.
// Keys match the JSON tags so the canonical bytes decode back into a Snapshot.
func (s Snapshot) CanonicalMap() map[string]any {
	log := make([]any, len(s.Log))
	for i, l := range s.Log {
		log[i] = l
	}
	return map[string]any{
		"run_id":             s.RunID,
		"epoch":              int64(s.Epoch),
		"seq":                s.Seq,
		"phase":              string(s.Phase),
		"call_stack":         itemsToCanonical(s.CallStack),
		"pending":            itemsToCanonical(s.Pending),
		"continuation_queue": itemsToCanonical(s.ContinuationQueue),
		"callback_queue":     itemsToCanonical(s.CallbackQueue),
		"log":                log,
		"step":               int64(s.Step),
		"backlog":            int64(s.Backlog),
		"running":            s.Running,
		"paused":             s.Paused,
	}
}

func itemsToCanonical(items []ScheduledItem) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = map[string]any{
			"id":    it.ID,
			"name":  it.Name,
			"kind":  string(it.Kind),
			"delay": int64(it.Delay),
		}
	}
	return out
}
