package ir

import (
	"fmt"
	"time"
)

// Category classifies an extracted Operation.
// The set is closed: every Operation is exactly one of these.
type Category int

const (
	// CategoryImmediate runs synchronously on the call stack.
	CategoryImmediate Category = iota + 1
	// CategoryDeferred is a timer-style callback; it is staged, then queued
	// on the low-priority callback queue.
	CategoryDeferred
	// CategoryContinuation is a promise-style callback; it is staged, then
	// queued on the high-priority continuation queue.
	CategoryContinuation
)

// String returns the lower-case category name used in CLI and trace output.
func (c Category) String() string {
	switch c {
	case CategoryImmediate:
		return "immediate"
	case CategoryDeferred:
		return "deferred"
	case CategoryContinuation:
		return "continuation"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Default labels for operations whose text is not taken from the program.
const (
	LabelPrintFallback = "log"
	LabelDeferred      = "setTimeout callback"
	LabelContinuation  = "Promise.then callback"
)

// Operation is one abstract unit of work derived from program text.
//
// Operations are values: the extractor builds them once and nothing mutates
// them afterwards. Their order in a slice is program order.
type Operation struct {
	Category Category `json:"category"`

	// Label is what ends up in the execution log when the operation completes.
	Label string `json:"label"`

	// Delay is only meaningful for CategoryDeferred. It is displayed while the
	// item is staged and never affects scheduling order.
	Delay time.Duration `json:"delay"`

	// Line is the 1-based source line the form was recognized on.
	Line int `json:"line"`
}

// Immediate builds an Immediate operation.
func Immediate(label string, line int) Operation {
	return Operation{Category: CategoryImmediate, Label: label, Line: line}
}

// Deferred builds a Deferred operation with the generic timer label.
// Negative delays are clamped to zero.
func Deferred(delay time.Duration, line int) Operation {
	if delay < 0 {
		delay = 0
	}
	return Operation{Category: CategoryDeferred, Label: LabelDeferred, Delay: delay, Line: line}
}

// Continuation builds a Continuation operation with the generic label.
func Continuation(line int) Operation {
	return Operation{Category: CategoryContinuation, Label: LabelContinuation, Line: line}
}

// Kind tags where a ScheduledItem currently lives.
type Kind string

const (
	KindSync                Kind = "sync"
	KindPendingTimer        Kind = "pending-timer"
	KindPendingContinuation Kind = "pending-continuation"
	KindTimer               Kind = "timer"
	KindContinuation        Kind = "continuation"
)

// IsPending reports whether the kind belongs in the staging area.
func (k Kind) IsPending() bool {
	return k == KindPendingTimer || k == KindPendingContinuation
}

// ScheduledItem is the runtime instance of an Operation while it sits in one
// of the engine's visible structures.
type ScheduledItem struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Kind  Kind          `json:"kind"`
	Delay time.Duration `json:"delay"`
}

// StagedKind returns the kind an item created for op starts with.
func StagedKind(op Operation) Kind {
	switch op.Category {
	case CategoryDeferred:
		return KindPendingTimer
	case CategoryContinuation:
		return KindPendingContinuation
	default:
		return KindSync
	}
}

// ReadyKind maps a pending kind to the kind it carries once queued.
// Non-pending kinds are returned unchanged.
func ReadyKind(k Kind) Kind {
	switch k {
	case KindPendingTimer:
		return KindTimer
	case KindPendingContinuation:
		return KindContinuation
	default:
		return k
	}
}
