// Package ir provides the data model shared by every loopviz package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Operations are immutable once extracted
//   - Snapshots are deep copies; holding one never aliases engine state
//   - All JSON tags use snake_case
//   - Ordering uses logical counters (item id, step, seq), never wall-clock time
package ir
