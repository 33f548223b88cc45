package domain

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

type AudioQuality string
type VideoQuality string

const (
	AudioStudio AudioQuality = "studio"
	AudioHigh   AudioQuality = "high"
	AudioMedium AudioQuality = "medium"
	AudioLow    AudioQuality = "low"

	Video2160p VideoQuality = "2160p"
	Video1440p VideoQuality = "1440p"
	Video1080p VideoQuality = "1080p"
	Video720p  VideoQuality = "720p"
	Video480p  VideoQuality = "480p"
	Video360p  VideoQuality = "360p"
)

type AudioParameters struct {
	Quality  AudioQuality
	Bitrate  int
	Channels uint16
	Codec    webrtc.RTPCodecCapability
}

type VideoParameters struct {
	Quality   VideoQuality
	Width     int
	Height    int
	FrameRate int
	Codec     webrtc.RTPCodecCapability
}

var audioPresets = map[AudioQuality]AudioParameters{
	AudioStudio: {Quality: AudioStudio, Bitrate: 96000, Channels: 2},
	AudioHigh:   {Quality: AudioHigh, Bitrate: 48000, Channels: 2},
	AudioMedium: {Quality: AudioMedium, Bitrate: 36000, Channels: 1},
	AudioLow:    {Quality: AudioLow, Bitrate: 24000, Channels: 1},
}

var videoPresets = map[VideoQuality]VideoParameters{
	Video2160p: {Quality: Video2160p, Width: 3840, Height: 2160, FrameRate: 60},
	Video1440p: {Quality: Video1440p, Width: 2560, Height: 1440, FrameRate: 60},
	Video1080p: {Quality: Video1080p, Width: 1920, Height: 1080, FrameRate: 60},
	Video720p:  {Quality: Video720p, Width: 1280, Height: 720, FrameRate: 30},
	Video480p:  {Quality: Video480p, Width: 854, Height: 480, FrameRate: 30},
	Video360p:  {Quality: Video360p, Width: 640, Height: 360, FrameRate: 30},
}

// AudioPreset returns the parameters of a named audio preset.
func AudioPreset(q AudioQuality) (AudioParameters, error) {
	p, ok := audioPresets[q]
	if !ok {
		return AudioParameters{}, fmt.Errorf("%w: audio %q", ErrUnknownQuality, q)
	}
	p.Codec = webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   48000,
		Channels:    p.Channels,
		SDPFmtpLine: fmt.Sprintf("minptime=10;useinbandfec=1;maxaveragebitrate=%d", p.Bitrate),
	}
	return p, nil
}

// VideoPreset returns the parameters of a named video preset.
func VideoPreset(q VideoQuality) (VideoParameters, error) {
	p, ok := videoPresets[q]
	if !ok {
		return VideoParameters{}, fmt.Errorf("%w: video %q", ErrUnknownQuality, q)
	}
	p.Codec = webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeH264,
		ClockRate:   90000,
		SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
	}
	return p, nil
}
