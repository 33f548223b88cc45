package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"callplayer/internal/core/domain"
)

// Frame types on the bridge socket.
const (
	frameRequest  = "request"
	frameResponse = "response"
	frameEvent    = "event"
)

// Bridge operations.
const (
	opPlay   = "play"
	opLeave  = "leave"
	opPause  = "pause"
	opResume = "resume"
	opCalls  = "calls"
	opSelf   = "self"
)

// Error codes the bridge answers with.
const (
	codeNoActiveCall = "no_active_call"
	codeNotInCall    = "not_in_call"
)

// Frame is the single envelope used in both directions.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Op      string          `json:"op,omitempty"`
	Event   string          `json:"event,omitempty"`
	ChatID  domain.ChatID   `json:"chat_id,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Error   *FrameError     `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Err maps bridge error codes onto domain errors.
func (e *FrameError) Err() error {
	switch e.Code {
	case codeNoActiveCall:
		return domain.ErrNoActiveCall
	case codeNotInCall:
		return domain.ErrNotInCall
	}
	if e.Message == "" {
		return fmt.Errorf("bridge error %s", e.Code)
	}
	return fmt.Errorf("bridge error %s: %s", e.Code, e.Message)
}

// ErrorFrom builds the wire error for err. It is the inverse of Err and is
// used by bridge-side code and tests.
func ErrorFrom(err error) *FrameError {
	switch {
	case errors.Is(err, domain.ErrNoActiveCall):
		return &FrameError{Code: codeNoActiveCall, Message: err.Error()}
	case errors.Is(err, domain.ErrNotInCall):
		return &FrameError{Code: codeNotInCall, Message: err.Error()}
	}
	return &FrameError{Code: "internal", Message: err.Error()}
}

type codecPayload struct {
	MimeType    string `json:"mime_type"`
	ClockRate   uint32 `json:"clock_rate"`
	Channels    uint16 `json:"channels,omitempty"`
	SDPFmtpLine string `json:"sdp_fmtp_line,omitempty"`
}

type audioPayload struct {
	Quality  domain.AudioQuality `json:"quality"`
	Bitrate  int                 `json:"bitrate"`
	Channels uint16              `json:"channels"`
	Codec    codecPayload        `json:"codec"`
}

type videoPayload struct {
	Quality   domain.VideoQuality `json:"quality"`
	Width     int                 `json:"width"`
	Height    int                 `json:"height"`
	FrameRate int                 `json:"frame_rate"`
	Codec     codecPayload        `json:"codec"`
}

type playPayload struct {
	MediaPath string        `json:"media_path"`
	AudioPath string        `json:"audio_path,omitempty"`
	Audio     audioPayload  `json:"audio"`
	Video     *videoPayload `json:"video,omitempty"`
}

func newPlayPayload(desc domain.StreamDescriptor) playPayload {
	p := playPayload{
		MediaPath: desc.MediaPath,
		AudioPath: desc.AudioPath,
		Audio: audioPayload{
			Quality:  desc.Audio.Quality,
			Bitrate:  desc.Audio.Bitrate,
			Channels: desc.Audio.Channels,
			Codec: codecPayload{
				MimeType:    desc.Audio.Codec.MimeType,
				ClockRate:   desc.Audio.Codec.ClockRate,
				Channels:    desc.Audio.Codec.Channels,
				SDPFmtpLine: desc.Audio.Codec.SDPFmtpLine,
			},
		},
	}
	if v := desc.Video; v != nil {
		p.Video = &videoPayload{
			Quality:   v.Quality,
			Width:     v.Width,
			Height:    v.Height,
			FrameRate: v.FrameRate,
			Codec: codecPayload{
				MimeType:    v.Codec.MimeType,
				ClockRate:   v.Codec.ClockRate,
				SDPFmtpLine: v.Codec.SDPFmtpLine,
			},
		}
	}
	return p
}

type callEntry struct {
	ChatID domain.ChatID           `json:"chat_id"`
	Status domain.NativeCallStatus `json:"status"`
}

type callsPayload struct {
	Calls []callEntry `json:"calls"`
}

type selfPayload struct {
	UserID domain.UserID `json:"user_id"`
}
