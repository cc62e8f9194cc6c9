package scanner

// State is the lifecycle state of a capture session.
type State int

const (
	// Idle means no device and no configured session.
	Idle State = iota
	// Starting means permission and device setup are in flight.
	Starting
	// Scanning means the session runs and results are delivered.
	Scanning
	// Frozen means the session runs but the preview is held and results paused.
	Frozen
	// CapturingStill means a one-shot still capture is in flight.
	CapturingStill
	// Stopping means teardown is in flight.
	Stopping
)

// String returns a readable name for the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Scanning:
		return "scanning"
	case Frozen:
		return "frozen"
	case CapturingStill:
		return "capturing-still"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Active reports whether the session is running.
func (s State) Active() bool {
	return s == Scanning || s == Frozen || s == CapturingStill
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
