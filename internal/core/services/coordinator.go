package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/pkg/tracing"

	"go.uber.org/zap"
)

const defaultTransportTimeout = 30 * time.Second

type CoordinatorConfig struct {
	// MaxQueueLength caps requests waiting behind the current stream.
	// 0 means unbounded.
	MaxQueueLength int
	// TransportTimeout bounds every transport call made while a chat is
	// locked. Those calls ignore the caller's cancellation: a play frame
	// that reached the bridge must be recorded whatever the caller does.
	TransportTimeout time.Duration
}

// playbackCoordinator owns every chat queue. Each operation on a chat runs
// inside that chat's exclusive scope, taken before the call state is read and
// released after the resulting transport call returns.
type playbackCoordinator struct {
	queue     ports.QueueStore
	transport ports.CallTransport
	state     ports.CallStateReader
	metrics   ports.PlaybackMetrics
	locks     *chatLocks
	cfg       CoordinatorConfig
	logger    *zap.SugaredLogger
}

func NewPlaybackCoordinator(
	queue ports.QueueStore,
	transport ports.CallTransport,
	state ports.CallStateReader,
	metrics ports.PlaybackMetrics,
	cfg CoordinatorConfig,
	logger *zap.SugaredLogger,
) ports.PlaybackCoordinator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if cfg.TransportTimeout <= 0 {
		cfg.TransportTimeout = defaultTransportTimeout
	}
	return &playbackCoordinator{
		queue:     queue,
		transport: transport,
		state:     state,
		metrics:   metrics,
		locks:     newChatLocks(),
		cfg:       cfg,
		logger:    logger,
	}
}

func (c *playbackCoordinator) StartOrEnqueue(ctx context.Context, req *domain.StreamRequest) (*domain.PlaybackResult, error) {
	ctx, span := tracing.TracePlayback(ctx, "start_or_enqueue", int64(req.ChatID))
	defer span.End()
	span.SetAttributes(
		tracing.RequestIDKey.String(req.ID),
		tracing.StreamTypeKey.String(string(req.Type)),
	)

	unlock, err := c.locks.Lock(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, cancel := c.detach(ctx)
	defer cancel()

	state, err := c.state.GetCallState(ctx, req.ChatID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(tracing.CallStateKey.String(state.String()))

	if state.Active() {
		if c.cfg.MaxQueueLength > 0 && c.waiting(req.ChatID) >= c.cfg.MaxQueueLength {
			return nil, fmt.Errorf("%w: %d requests already waiting", domain.ErrQueueFull, c.cfg.MaxQueueLength)
		}

		position := c.queue.Enqueue(req.ChatID, req)
		length := c.queue.Len(req.ChatID)
		c.metrics.RecordEnqueue(req.Type)
		c.metrics.SetQueueLength(req.ChatID, length)
		span.SetAttributes(tracing.QueueLengthKey.Int(length))

		c.logger.Infow("stream request queued",
			"chat_id", req.ChatID,
			"request_id", req.ID,
			"position", position,
		)
		return &domain.PlaybackResult{Outcome: domain.OutcomeQueued, Position: position, Request: req}, nil
	}

	if err := c.transport.Play(ctx, req.ChatID, req.Descriptor); err != nil {
		c.metrics.RecordTransportError("play")
		tracing.RecordError(ctx, err)
		if errors.Is(err, domain.ErrNoActiveCall) {
			c.logger.Infow("no active voice chat, request dropped",
				"chat_id", req.ChatID,
				"request_id", req.ID,
			)
			return nil, err
		}
		if !uncertain(err) || !c.startedAnyway(ctx, req.ChatID) {
			return nil, fmt.Errorf("failed to start stream: %w", err)
		}
		c.logger.Warnw("play was not acknowledged but the call is streaming, recording it as started",
			"chat_id", req.ChatID,
			"request_id", req.ID,
			"error", err,
		)
	}

	// The started request becomes the head of the queue: head means playing.
	position := c.queue.Enqueue(req.ChatID, req)
	c.metrics.RecordStart(req.Type)
	c.metrics.SetQueueLength(req.ChatID, c.queue.Len(req.ChatID))

	c.logger.Infow("stream started",
		"chat_id", req.ChatID,
		"request_id", req.ID,
		"stream_type", req.Type,
	)
	return &domain.PlaybackResult{Outcome: domain.OutcomeStarted, Position: position, Request: req}, nil
}

func (c *playbackCoordinator) Advance(ctx context.Context, chatID domain.ChatID) (*domain.AdvanceResult, error) {
	ctx, span := tracing.TracePlayback(ctx, "advance", int64(chatID))
	defer span.End()

	unlock, err := c.locks.Lock(ctx, chatID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, cancel := c.detach(ctx)
	defer cancel()

	res, err := c.advanceLocked(ctx, chatID)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return res, err
}

// advanceLocked drops the head and streams the next request. Requests the
// transport refuses are dropped in turn; an empty queue ends the call. When
// the bridge cannot say whether the next request started, the call is ended
// and the queue cleared so the head never names a stream that is not playing.
func (c *playbackCoordinator) advanceLocked(ctx context.Context, chatID domain.ChatID) (*domain.AdvanceResult, error) {
	c.queue.PopFront(chatID)

	res := &domain.AdvanceResult{}
	for {
		next, ok := c.queue.PeekFront(chatID)
		if !ok {
			c.leaveAndClear(ctx, chatID)
			res.Outcome = domain.AdvanceStopped
			c.metrics.RecordAdvance(res.Outcome)
			c.logger.Infow("queue is empty, left voice chat", "chat_id", chatID)
			return res, nil
		}

		err := c.transport.Play(ctx, chatID, next.Descriptor)
		if err == nil {
			res.Outcome = domain.AdvanceNext
			res.Next = next
			c.metrics.RecordAdvance(res.Outcome)
			c.metrics.SetQueueLength(chatID, c.queue.Len(chatID))
			c.logger.Infow("advanced to next stream",
				"chat_id", chatID,
				"request_id", next.ID,
				"remaining", c.queue.Len(chatID)-1,
			)
			return res, nil
		}

		c.metrics.RecordTransportError("play")
		switch {
		case errors.Is(err, domain.ErrNoActiveCall):
			// The voice chat is gone; nothing left to play into.
			c.queue.Clear(chatID)
			c.metrics.SetQueueLength(chatID, 0)
			res.Outcome = domain.AdvanceStopped
			c.metrics.RecordAdvance(res.Outcome)
			c.logger.Infow("voice chat ended while advancing, queue cleared", "chat_id", chatID)
			return res, nil
		case uncertain(err):
			leaveCtx, cancel := c.detach(ctx)
			c.leaveAndClear(leaveCtx, chatID)
			cancel()
			c.metrics.RecordAdvance(domain.AdvanceStopped)
			c.logger.Warnw("could not play next stream, left voice chat and cleared queue",
				"chat_id", chatID,
				"request_id", next.ID,
				"error", err,
			)
			return nil, fmt.Errorf("failed to play next stream: %w", err)
		}

		c.logger.Warnw("transport refused queued stream, dropping it",
			"chat_id", chatID,
			"request_id", next.ID,
			"error", err,
		)
		c.queue.PopFront(chatID)
		res.Dropped++
	}
}

func (c *playbackCoordinator) Teardown(ctx context.Context, chatID domain.ChatID) error {
	ctx, span := tracing.TracePlayback(ctx, "teardown", int64(chatID))
	defer span.End()

	unlock, err := c.locks.Lock(ctx, chatID)
	if err != nil {
		return err
	}
	defer unlock()

	ctx, cancel := c.detach(ctx)
	defer cancel()

	c.leaveAndClear(ctx, chatID)
	c.metrics.RecordTeardown()
	c.logger.Infow("chat torn down", "chat_id", chatID)
	return nil
}

// leaveAndClear ends the call and forgets the chat's queue. Leave failures
// are logged only: not being in the call is the state we want anyway.
func (c *playbackCoordinator) leaveAndClear(ctx context.Context, chatID domain.ChatID) {
	if err := c.transport.Leave(ctx, chatID); err != nil && !errors.Is(err, domain.ErrNotInCall) {
		c.metrics.RecordTransportError("leave")
		c.logger.Warnw("failed to leave voice chat",
			"chat_id", chatID,
			"error", err,
		)
	}
	c.queue.Clear(chatID)
	c.metrics.SetQueueLength(chatID, 0)
}

func (c *playbackCoordinator) Pause(ctx context.Context, chatID domain.ChatID) error {
	ctx, span := tracing.TracePlayback(ctx, "pause", int64(chatID))
	defer span.End()

	return c.withState(ctx, chatID, func(ctx context.Context, state domain.CallState) error {
		switch state {
		case domain.CallStatePaused:
			return domain.ErrAlreadyPaused
		case domain.CallStatePlaying:
			if err := c.transport.Pause(ctx, chatID); err != nil {
				c.metrics.RecordTransportError("pause")
				return fmt.Errorf("failed to pause stream: %w", err)
			}
			c.logger.Infow("stream paused", "chat_id", chatID)
			return nil
		default:
			return domain.ErrNothingPlaying
		}
	})
}

func (c *playbackCoordinator) Resume(ctx context.Context, chatID domain.ChatID) error {
	ctx, span := tracing.TracePlayback(ctx, "resume", int64(chatID))
	defer span.End()

	return c.withState(ctx, chatID, func(ctx context.Context, state domain.CallState) error {
		switch state {
		case domain.CallStatePlaying:
			return domain.ErrAlreadyPlaying
		case domain.CallStatePaused:
			if err := c.transport.Resume(ctx, chatID); err != nil {
				c.metrics.RecordTransportError("resume")
				return fmt.Errorf("failed to resume stream: %w", err)
			}
			c.logger.Infow("stream resumed", "chat_id", chatID)
			return nil
		default:
			return domain.ErrNothingPlaying
		}
	})
}

func (c *playbackCoordinator) Skip(ctx context.Context, chatID domain.ChatID) (*domain.AdvanceResult, error) {
	ctx, span := tracing.TracePlayback(ctx, "skip", int64(chatID))
	defer span.End()

	var res *domain.AdvanceResult
	err := c.withState(ctx, chatID, func(ctx context.Context, state domain.CallState) error {
		if !state.Active() {
			return domain.ErrNothingPlaying
		}
		var err error
		res, err = c.advanceLocked(ctx, chatID)
		return err
	})
	return res, err
}

// Stop leaves any call the chat has, streaming or idle.
func (c *playbackCoordinator) Stop(ctx context.Context, chatID domain.ChatID) error {
	ctx, span := tracing.TracePlayback(ctx, "stop", int64(chatID))
	defer span.End()

	return c.withState(ctx, chatID, func(ctx context.Context, state domain.CallState) error {
		if state == domain.CallStateNoCall {
			// stale entries can outlive a call that ended without an event
			c.queue.Clear(chatID)
			return domain.ErrNothingPlaying
		}
		c.leaveAndClear(ctx, chatID)
		c.metrics.RecordTeardown()
		c.logger.Infow("stream stopped", "chat_id", chatID)
		return nil
	})
}

func (c *playbackCoordinator) Queue(chatID domain.ChatID) []*domain.StreamRequest {
	return c.queue.List(chatID)
}

func (c *playbackCoordinator) ActiveChats() []domain.ChatID {
	return c.queue.Chats()
}

// withState runs fn under the chat lock with the current call state. fn gets
// the detached context its transport calls must use.
func (c *playbackCoordinator) withState(ctx context.Context, chatID domain.ChatID, fn func(context.Context, domain.CallState) error) error {
	unlock, err := c.locks.Lock(ctx, chatID)
	if err != nil {
		return err
	}
	defer unlock()

	ctx, cancel := c.detach(ctx)
	defer cancel()

	state, err := c.state.GetCallState(ctx, chatID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	tracing.AddSpanAttributes(ctx, tracing.CallStateKey.String(state.String()))

	return fn(ctx, state)
}

// detach keeps ctx's values and span but replaces its cancellation with the
// transport timeout.
func (c *playbackCoordinator) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.cfg.TransportTimeout)
}

// startedAnyway re-reads the call after an unacknowledged play on a chat that
// was not streaming: a streaming call can only be the request just sent.
func (c *playbackCoordinator) startedAnyway(ctx context.Context, chatID domain.ChatID) bool {
	ctx, cancel := c.detach(ctx)
	defer cancel()

	state, err := c.state.GetCallState(ctx, chatID)
	return err == nil && state.Active()
}

// uncertain reports transport failures after which the bridge may or may not
// have carried out the request.
func uncertain(err error) bool {
	return errors.Is(err, domain.ErrTransportUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// waiting counts requests behind the one streaming now.
func (c *playbackCoordinator) waiting(chatID domain.ChatID) int {
	n := c.queue.Len(chatID) - 1
	if n < 0 {
		return 0
	}
	return n
}
