// Package testutil provides deterministic stand-ins for the engine's
// wall-clock dependencies: sleepers that never block on real time and a
// fixed run id source.
package testutil
