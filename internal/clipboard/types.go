package clipboard

// State is the monitor lifecycle. Start and Stop are safe to call in any
// state; the host shell may re-invoke setup code without tearing down
// prior state, so "already listening" must be an explicit no-op.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}
