package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidSpeed is returned by SetSpeed for non-positive or non-finite factors.
var ErrInvalidSpeed = errors.New("speed factor must be a positive number")

// ErrUnknownDrainPolicy is returned by ParseDrainPolicy.
var ErrUnknownDrainPolicy = errors.New("unknown drain policy")

// DrainPolicy decides on which phase-loop iterations the drain phase may
// move a ready item onto the call stack.
type DrainPolicy string

const (
	// DrainAfterScript drains only once the backlog is exhausted, i.e. after
	// the synchronous script has finished. This is the event-loop ordering.
	DrainAfterScript DrainPolicy = "after-script"

	// DrainEveryTurn drains one ready item on every iteration.
	DrainEveryTurn DrainPolicy = "every-turn"
)

// ParseDrainPolicy validates a policy name. The empty string selects
// DrainAfterScript.
func ParseDrainPolicy(s string) (DrainPolicy, error) {
	switch DrainPolicy(s) {
	case "", DrainAfterScript:
		return DrainAfterScript, nil
	case DrainEveryTurn:
		return DrainEveryTurn, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrUnknownDrainPolicy, s, DrainAfterScript, DrainEveryTurn)
	}
}

// drainsDuringBacklog reports whether the drain phase runs while operations
// remain in the backlog.
func (p DrainPolicy) drainsDuringBacklog() bool {
	return p == DrainEveryTurn
}
