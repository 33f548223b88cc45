package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoActiveCall         = errors.New("no active voice chat")
	ErrNotInCall            = errors.New("not in a voice chat")
	ErrResolution           = errors.New("media could not be resolved")
	ErrQueueFull            = errors.New("queue is full")
	ErrAccessDenied         = errors.New("access denied")
	ErrNothingPlaying       = errors.New("nothing is streaming")
	ErrAlreadyPaused        = errors.New("stream already paused")
	ErrAlreadyPlaying       = errors.New("stream already playing")
	ErrTransportUnavailable = errors.New("call transport unavailable")
	ErrCacheMiss            = errors.New("cache miss")
	ErrUnknownQuality       = errors.New("unknown quality preset")
	ErrInvalidRequest       = errors.New("invalid request")
)

// ErrTransportNotConnected means the request never left the process, so the
// bridge certainly did not act on it. It matches ErrTransportUnavailable.
var ErrTransportNotConnected = fmt.Errorf("%w: not connected", ErrTransportUnavailable)
