package ports

import (
	"context"

	"callplayer/internal/core/domain"
)

type CallTransport interface {
	// Play joins the chat's voice chat if needed and starts desc, replacing
	// whatever was streaming. Returns domain.ErrNoActiveCall when the chat
	// has no voice chat to join.
	Play(ctx context.Context, chatID domain.ChatID, desc domain.StreamDescriptor) error
	// Leave returns domain.ErrNotInCall when not joined.
	Leave(ctx context.Context, chatID domain.ChatID) error
	Pause(ctx context.Context, chatID domain.ChatID) error
	Resume(ctx context.Context, chatID domain.ChatID) error
	ActiveCalls(ctx context.Context) (map[domain.ChatID]domain.NativeCallStatus, error)
	// Self returns the account the transport is logged in as.
	Self(ctx context.Context) (domain.UserID, error)
}

type EventSource interface {
	Events() <-chan domain.CallEvent
}

type MediaResolver interface {
	Resolve(ctx context.Context, query string) (*domain.ResolvedMedia, error)
}
