package conn

// State is the position of a connection in its read/process/write cycle.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateProcessing
	StateWriting
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateProcessing:
		return "processing"
	case StateWriting:
		return "writing"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
