package detect

import "sync/atomic"

// State is the stage of the active detection cycle.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateGating
	StateFingerprinting
	StateSubmitted
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateGating:
		return "gating"
	case StateFingerprinting:
		return "fingerprinting"
	case StateSubmitted:
		return "submitted"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Mode is the audio consumer the manager is running.
type Mode int32

const (
	ModeNone Mode = iota
	ModeAmbient
	ModeStream
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeAmbient:
		return "ambient"
	case ModeStream:
		return "stream"
	default:
		return "unknown"
	}
}

type stateVar struct{ v atomic.Int32 }

func (s *stateVar) Load() State   { return State(s.v.Load()) }
func (s *stateVar) Store(v State) { s.v.Store(int32(v)) }
