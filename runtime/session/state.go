package session

// State is the assistant lifecycle: idle → starting → active → stopping → idle.
type State int

// Lifecycle states.
const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateStopping
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}
