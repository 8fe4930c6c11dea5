package inbox

// State is the listener's connection state.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateProcessing
	StateError
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Terminal reports whether the connection is finished.
func (s State) Terminal() bool {
	return s == StateError || s == StateEnded
}
