package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/pkg/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type playService struct {
	gate        ports.AccessGate
	resolver    ports.MediaResolver
	builder     ports.DescriptorBuilder
	coordinator ports.PlaybackCoordinator
	logger      *zap.SugaredLogger
}

func NewPlayService(
	gate ports.AccessGate,
	resolver ports.MediaResolver,
	builder ports.DescriptorBuilder,
	coordinator ports.PlaybackCoordinator,
	logger *zap.SugaredLogger,
) ports.PlayService {
	return &playService{
		gate:        gate,
		resolver:    resolver,
		builder:     builder,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Play checks the access gate before anything else, so a refused caller
// costs neither a resolve nor a transport call.
func (s *playService) Play(ctx context.Context, caller domain.UserID, chatID domain.ChatID, streamType domain.StreamType, query string) (*domain.PlaybackResult, error) {
	if !s.gate.CanSubmit(caller) {
		return nil, domain.ErrAccessDenied
	}
	if !streamType.Valid() {
		return nil, fmt.Errorf("%w: stream type %q", domain.ErrInvalidRequest, streamType)
	}
	query = strings.TrimSpace(query)
	if err := validation.ValidateQuery(query); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	media, err := s.resolver.Resolve(ctx, query)
	if err != nil {
		if !errors.Is(err, domain.ErrResolution) {
			err = fmt.Errorf("%w: %w", domain.ErrResolution, err)
		}
		s.logger.Warnw("failed to resolve media",
			"chat_id", chatID,
			"query", query,
			"error", err,
		)
		return nil, err
	}

	return s.submit(ctx, caller, chatID, streamType, query, media)
}

// PlayMedia plays a replied-to attachment. The attachment's kind picks the
// stream type, whichever play command was used.
func (s *playService) PlayMedia(ctx context.Context, caller domain.UserID, chatID domain.ChatID, media domain.ReplyMedia) (*domain.PlaybackResult, error) {
	if !s.gate.CanSubmit(caller) {
		return nil, domain.ErrAccessDenied
	}
	streamType, ok := media.Kind.StreamType()
	if !ok {
		return nil, fmt.Errorf("%w: cannot stream %q attachments", domain.ErrInvalidRequest, media.Kind)
	}
	if err := validation.ValidateURL(media.URL); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	title := strings.TrimSpace(media.Title)
	if title == "" {
		title = media.URL
	}
	resolved := &domain.ResolvedMedia{Query: title}
	if streamType == domain.StreamVideo {
		resolved.VideoURL = media.URL
	} else {
		resolved.AudioURL = media.URL
	}
	return s.submit(ctx, caller, chatID, streamType, title, resolved)
}

func (s *playService) submit(ctx context.Context, caller domain.UserID, chatID domain.ChatID, streamType domain.StreamType, title string, media *domain.ResolvedMedia) (*domain.PlaybackResult, error) {
	desc, err := s.builder.Build(media, streamType)
	if err != nil {
		return nil, err
	}

	req := &domain.StreamRequest{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Type:        streamType,
		Descriptor:  desc,
		Title:       title,
		RequestedBy: caller,
		EnqueuedAt:  time.Now(),
	}
	return s.coordinator.StartOrEnqueue(ctx, req)
}
