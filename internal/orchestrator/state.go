package orchestrator

// State represents where a pipeline run currently is. Transitions are
// strictly forward: Idle → Splitting → Fetching → Extracting → Done/Failed,
// with Fetching/Extracting revisited once per segment in ascending order.
type State int

const (
	// StateIdle is the initial state before the run has started.
	StateIdle State = iota

	// StateSplitting indicates the screenshot is being submitted for
	// boundary detection.
	StateSplitting

	// StateFetching indicates a segment image is being retrieved.
	StateFetching

	// StateExtracting indicates a segment is being OCRed.
	StateExtracting

	// StateDone indicates the run finished and produced a session.
	StateDone

	// StateFailed indicates the run aborted on a terminal split failure.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSplitting:
		return "splitting"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once the run can no longer make progress.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}
