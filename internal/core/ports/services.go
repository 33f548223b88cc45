package ports

import (
	"context"

	"callplayer/internal/core/domain"
)

type DescriptorBuilder interface {
	Build(media *domain.ResolvedMedia, streamType domain.StreamType) (domain.StreamDescriptor, error)
}

type CallStateReader interface {
	GetCallState(ctx context.Context, chatID domain.ChatID) (domain.CallState, error)
}

type PlaybackCoordinator interface {
	StartOrEnqueue(ctx context.Context, req *domain.StreamRequest) (*domain.PlaybackResult, error)
	Advance(ctx context.Context, chatID domain.ChatID) (*domain.AdvanceResult, error)
	Teardown(ctx context.Context, chatID domain.ChatID) error
	Pause(ctx context.Context, chatID domain.ChatID) error
	Resume(ctx context.Context, chatID domain.ChatID) error
	Skip(ctx context.Context, chatID domain.ChatID) (*domain.AdvanceResult, error)
	Stop(ctx context.Context, chatID domain.ChatID) error
	Queue(chatID domain.ChatID) []*domain.StreamRequest
	// ActiveChats lists chats with a non-empty queue.
	ActiveChats() []domain.ChatID
}

type AccessGate interface {
	CanSubmit(caller domain.UserID) bool
	Mode() domain.AccessMode
	ToggleMode() domain.AccessMode
	RoleOf(user domain.UserID) domain.Role
	AddPrivileged(user domain.UserID) bool
	RemovePrivileged(user domain.UserID) bool
	AddOwner(user domain.UserID)
	Privileged() []domain.UserID
}

// PlayService turns a chat request into a queued or started stream.
type PlayService interface {
	Play(ctx context.Context, caller domain.UserID, chatID domain.ChatID, streamType domain.StreamType, query string) (*domain.PlaybackResult, error)
	// PlayMedia streams an attachment directly, without resolving it.
	PlayMedia(ctx context.Context, caller domain.UserID, chatID domain.ChatID, media domain.ReplyMedia) (*domain.PlaybackResult, error)
}

// PlaybackMetrics receives playback counters. Implementations must be safe
// for concurrent use.
type PlaybackMetrics interface {
	RecordStart(streamType domain.StreamType)
	RecordEnqueue(streamType domain.StreamType)
	RecordAdvance(outcome domain.AdvanceOutcome)
	RecordTeardown()
	RecordTransportError(op string)
	RecordEvent(kind domain.EventKind)
	RecordResolution(cached bool, err error)
	SetQueueLength(chatID domain.ChatID, length int)
}

type CommandMetrics interface {
	RecordCommand(name string, err error)
}

// CommandExecutor runs one chat command on behalf of its caller.
type CommandExecutor interface {
	Execute(ctx context.Context, req domain.CommandRequest) (*domain.CommandReply, error)
}
