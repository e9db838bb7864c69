// Package simctl orchestrates the engine process and its protocol session:
// retry-bounded startup, step execution, collision query, and teardown.
package simctl

// State represents the current state of a SimControl instance.
type State int

const (
	// StateIdle is the initial state before Start has succeeded.
	StateIdle State = iota

	// StateStarting indicates a start attempt (spawn + connect) is in flight.
	StateStarting

	// StateRunning indicates the engine is up and the session is live.
	StateRunning

	// StateClosed indicates the instance has been torn down.
	StateClosed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state permits no further transitions.
func (s State) IsTerminal() bool {
	return s == StateClosed
}
