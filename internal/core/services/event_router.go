package services

import (
	"context"
	"sync"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/pkg/tracing"

	"go.uber.org/zap"
)

// EventRouter turns transport call events into coordinator operations.
// Each chat with pending events gets its own worker, so a slow transport
// call in one chat never holds up events for another, while events for the
// same chat are handled in arrival order.
type EventRouter struct {
	coordinator ports.PlaybackCoordinator
	metrics     ports.PlaybackMetrics
	opTimeout   time.Duration
	logger      *zap.SugaredLogger

	mu      sync.Mutex
	pending map[domain.ChatID][]domain.CallEvent
	wg      sync.WaitGroup
}

func NewEventRouter(
	coordinator ports.PlaybackCoordinator,
	metrics ports.PlaybackMetrics,
	opTimeout time.Duration,
	logger *zap.SugaredLogger,
) *EventRouter {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &EventRouter{
		coordinator: coordinator,
		metrics:     metrics,
		opTimeout:   opTimeout,
		logger:      logger,
		pending:     make(map[domain.ChatID][]domain.CallEvent),
	}
}

// Run consumes source until ctx is done or the event channel closes, then
// waits for in-flight chat workers.
func (r *EventRouter) Run(ctx context.Context, source ports.EventSource) {
	events := source.Events()
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				r.logger.Info("call event stream closed")
				return
			}
			r.Dispatch(ctx, ev)
		}
	}
}

// Dispatch queues ev for its chat and returns immediately.
func (r *EventRouter) Dispatch(ctx context.Context, ev domain.CallEvent) {
	r.metrics.RecordEvent(ev.Kind)

	if !ev.Kind.Known() {
		r.logger.Debugw("ignoring call event", "chat_id", ev.ChatID, "kind", ev.Kind)
		return
	}

	r.mu.Lock()
	_, running := r.pending[ev.ChatID]
	r.pending[ev.ChatID] = append(r.pending[ev.ChatID], ev)
	r.mu.Unlock()

	if !running {
		r.wg.Add(1)
		go r.work(ctx, ev.ChatID)
	}
}

// Wait blocks until every chat worker has drained its events.
func (r *EventRouter) Wait() {
	r.wg.Wait()
}

func (r *EventRouter) work(ctx context.Context, chatID domain.ChatID) {
	defer r.wg.Done()

	for {
		r.mu.Lock()
		q := r.pending[chatID]
		if len(q) == 0 {
			delete(r.pending, chatID)
			r.mu.Unlock()
			return
		}
		ev := q[0]
		r.pending[chatID] = q[1:]
		r.mu.Unlock()

		r.handle(ctx, ev)
	}
}

func (r *EventRouter) handle(ctx context.Context, ev domain.CallEvent) {
	if r.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opTimeout)
		defer cancel()
	}
	tracing.AddSpanAttributes(ctx, tracing.EventKindKey.String(string(ev.Kind)))

	if ev.Kind.Advances() {
		if _, err := r.coordinator.Advance(ctx, ev.ChatID); err != nil {
			r.logger.Errorw("failed to advance queue",
				"chat_id", ev.ChatID,
				"event", ev.Kind,
				"error", err,
			)
		}
		return
	}

	if err := r.coordinator.Teardown(ctx, ev.ChatID); err != nil {
		r.logger.Errorw("failed to tear down chat",
			"chat_id", ev.ChatID,
			"event", ev.Kind,
			"error", err,
		)
	}
}
