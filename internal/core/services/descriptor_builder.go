package services

import (
	"fmt"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
)

type descriptorBuilder struct {
	audio domain.AudioParameters
	video domain.VideoParameters
}

// NewDescriptorBuilder fixes the quality presets every descriptor is built with.
func NewDescriptorBuilder(audio domain.AudioQuality, video domain.VideoQuality) (ports.DescriptorBuilder, error) {
	ap, err := domain.AudioPreset(audio)
	if err != nil {
		return nil, err
	}
	vp, err := domain.VideoPreset(video)
	if err != nil {
		return nil, err
	}
	return &descriptorBuilder{audio: ap, video: vp}, nil
}

func (b *descriptorBuilder) Build(media *domain.ResolvedMedia, streamType domain.StreamType) (domain.StreamDescriptor, error) {
	if media == nil {
		return domain.StreamDescriptor{}, fmt.Errorf("%w: no media", domain.ErrResolution)
	}

	switch streamType {
	case domain.StreamAudio:
		path := media.AudioURL
		if path == "" {
			path = media.VideoURL
		}
		if path == "" {
			return domain.StreamDescriptor{}, fmt.Errorf("%w: no audio source for %q", domain.ErrResolution, media.Query)
		}
		return domain.StreamDescriptor{
			MediaPath: path,
			Audio:     b.audio,
		}, nil

	case domain.StreamVideo:
		if media.VideoURL == "" {
			return domain.StreamDescriptor{}, fmt.Errorf("%w: no video source for %q", domain.ErrResolution, media.Query)
		}
		video := b.video
		desc := domain.StreamDescriptor{
			MediaPath: media.VideoURL,
			Audio:     b.audio,
			Video:     &video,
		}
		// Muxed formats come back as a single URL; only set a separate
		// audio input when there is one.
		if media.AudioURL != "" && media.AudioURL != media.VideoURL {
			desc.AudioPath = media.AudioURL
		}
		return desc, nil

	default:
		return domain.StreamDescriptor{}, fmt.Errorf("%w: unknown stream type %q", domain.ErrInvalidRequest, streamType)
	}
}
