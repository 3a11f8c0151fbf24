// Package sim provides the simulation clock that drives every frame.
package sim

import "fmt"

// State represents whether simulation time is advancing.
type State string

const (
	// StateRunning indicates simulation time advances with wall time.
	StateRunning State = "running"
	// StatePaused indicates simulation time is frozen.
	StatePaused State = "paused"
)

// ParseState converts an API string to a State.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateRunning, StatePaused:
		return State(s), nil
	}
	return "", fmt.Errorf("unknown clock state: %q", s)
}
