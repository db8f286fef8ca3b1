package lifecycle

// State is a pipeline lifecycle state, ordered from torn-down to running.
type State int

const (
	// StateNull means the pipeline holds no resources
	StateNull State = iota
	// StateReady means the pipeline is configured but not negotiated
	StateReady
	// StatePaused means the pipeline is prerolled and can render a frame
	StatePaused
	// StatePlaying means the clock is running and data is flowing
	StatePlaying
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Result is the outcome of a transition request.
type Result int

const (
	// ResultCompleted means the engine switched states synchronously
	ResultCompleted Result = iota
	// ResultPending means the engine accepted the request and will confirm
	// asynchronously with a state-changed event
	ResultPending
	// ResultRejected means the engine refused the transition
	ResultRejected
)

// String returns a human-readable result name
func (r Result) String() string {
	switch r {
	case ResultCompleted:
		return "completed"
	case ResultPending:
		return "pending"
	case ResultRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
