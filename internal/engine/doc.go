// Package engine implements the loopviz scheduler engine.
//
// The engine takes the operations extracted from a program and advances them,
// one at a time, through the structures of a single-threaded event loop: the
// call stack, the pending (staging) area, the continuation queue and the
// callback queue. Every state transition produces an ir.Snapshot.
//
// ARCHITECTURE:
//
// Single-Writer Phase Loop:
// Each run is driven by exactly one goroutine. All mutation goes through
// Engine.transition, which holds the engine mutex, checks the run's epoch and
// emits a snapshot. Control calls (Reset, TogglePause, SetSpeed) and the
// Snapshot accessor may be used from any goroutine.
//
// Per-Operation Flow:
//  1. stage: step++, create the item (call stack or pending)
//  2. ready / settle: pending item moves to its queue, or the synchronous
//     item is popped and logged
//  3. drain: one ready item moves onto the call stack, continuations first
//  4. complete: the drained item is popped and logged
//
// After the backlog is exhausted, drain turns continue until both ready
// queues are empty.
//
// CRITICAL PATTERNS:
//
// Epochs:
// Reset and Run bump the epoch. A suspension that resumes under an older
// epoch is discarded before it can touch state.
//
// Logical Clock:
// Item IDs come from a per-engine Clock, never reset, so IDs are unique
// across runs of the same engine and independent between engines.
//
// Suspension Points:
// Every wait goes through the Sleeper interface. Tests substitute an
// instant or recording sleeper to run the loop without wall-clock delays.
package engine
