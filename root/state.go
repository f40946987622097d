package root

// State is a root's lifecycle state.
type State int32

const (
	StateNew State = iota
	StateActiveRunning
	StateActiveIdle
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActiveRunning:
		return "active-running"
	case StateActiveIdle:
		return "active-idle"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// IsActive reports whether the root's goroutine is running.
func (s State) IsActive() bool {
	return s == StateActiveRunning || s == StateActiveIdle
}
