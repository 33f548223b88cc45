package domain

// CallState is derived from the transport on every read and never stored.
type CallState int

const (
	CallStateNoCall CallState = iota
	CallStateIdle
	CallStatePlaying
	CallStatePaused
)

func (s CallState) String() string {
	switch s {
	case CallStateNoCall:
		return "no_call"
	case CallStateIdle:
		return "idle"
	case CallStatePlaying:
		return "playing"
	case CallStatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Active reports whether a stream occupies the call.
func (s CallState) Active() bool {
	return s == CallStatePlaying || s == CallStatePaused
}

// NativeCallStatus is the status string reported by the transport's call table.
type NativeCallStatus string

const (
	NativeStatusIdle    NativeCallStatus = "idle"
	NativeStatusPlaying NativeCallStatus = "playing"
	NativeStatusPaused  NativeCallStatus = "paused"
)
