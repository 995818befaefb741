package session

import "sync/atomic"

// State is the orchestrator lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateSelectingInterface
	StateCapturing
	StateAnalyzing
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelectingInterface:
		return "selecting_interface"
	case StateCapturing:
		return "capturing"
	case StateAnalyzing:
		return "analyzing"
	case StatePublishing:
		return "publishing"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type stateHolder struct {
	v atomic.Int32
}

func (h *stateHolder) load() State {
	return State(h.v.Load())
}

func (h *stateHolder) store(s State) {
	h.v.Store(int32(s))
}
