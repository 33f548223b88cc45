package ports

import (
	"context"
	"time"

	"callplayer/internal/core/domain"
)

// QueueStore holds the per-chat FIFO of stream requests. The head of a
// chat's queue is the request currently streaming. Operations on absent or
// empty chats are no-ops.
type QueueStore interface {
	// Enqueue appends req and returns its zero-based position.
	Enqueue(chatID domain.ChatID, req *domain.StreamRequest) int
	PopFront(chatID domain.ChatID)
	PeekFront(chatID domain.ChatID) (*domain.StreamRequest, bool)
	Clear(chatID domain.ChatID)
	List(chatID domain.ChatID) []*domain.StreamRequest
	Len(chatID domain.ChatID) int
	Chats() []domain.ChatID
}

type ResolutionCache interface {
	Get(ctx context.Context, key string) (*domain.ResolvedMedia, error)
	Set(ctx context.Context, key string, media *domain.ResolvedMedia, ttl time.Duration) error
}
