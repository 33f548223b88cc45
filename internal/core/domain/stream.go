package domain

import "time"

type StreamType string

const (
	StreamAudio StreamType = "audio"
	StreamVideo StreamType = "video"
)

func (t StreamType) Valid() bool {
	return t == StreamAudio || t == StreamVideo
}

// ResolvedMedia is what a resolver produces for a query or URL.
type ResolvedMedia struct {
	Query    string
	AudioURL string
	VideoURL string
}

// StreamDescriptor is handed to the transport as is. It is built once per
// request and never mutated.
type StreamDescriptor struct {
	// MediaPath is the primary input: the audio URL for audio streams and
	// the video URL for video streams.
	MediaPath string
	// AudioPath carries the separate audio input of a video stream.
	AudioPath string
	Audio     AudioParameters
	Video     *VideoParameters
}

func (d StreamDescriptor) HasVideo() bool {
	return d.Video != nil
}

type StreamRequest struct {
	ID          string
	ChatID      ChatID
	Type        StreamType
	Descriptor  StreamDescriptor
	Title       string
	RequestedBy UserID
	EnqueuedAt  time.Time
}
