package pipeline

// State is the orchestrator's position in the capture cycle.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateExtracting
	StatePersisting
	StateSavingContact
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateExtracting:
		return "extracting"
	case StatePersisting:
		return "persisting"
	case StateSavingContact:
		return "saving_contact"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TransitionHook observes state changes of the current cycle.
type TransitionHook func(cycleID string, from, to State)
