package domain

import "time"

type EventKind string

const (
	EventStreamEnded     EventKind = "stream_ended"
	EventSkipRequested   EventKind = "skip_requested"
	EventKicked          EventKind = "kicked"
	EventLeftGroup       EventKind = "left_group"
	EventVoiceChatClosed EventKind = "closed_voice_chat"
)

// CallEvent is an out-of-band call lifecycle notification from the transport.
type CallEvent struct {
	Kind   EventKind
	ChatID ChatID
	At     time.Time
}

// Advances reports whether the event moves the queue forward. All other
// known kinds mean the call is gone and the chat must be torn down.
func (k EventKind) Advances() bool {
	return k == EventStreamEnded || k == EventSkipRequested
}

func (k EventKind) Known() bool {
	switch k {
	case EventStreamEnded, EventSkipRequested, EventKicked, EventLeftGroup, EventVoiceChatClosed:
		return true
	}
	return false
}
