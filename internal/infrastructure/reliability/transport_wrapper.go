package reliability

import (
	"context"
	"errors"
	"fmt"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/pkg/circuitbreaker"
	"callplayer/pkg/retry"

	"go.uber.org/zap"
)

// TransportWrapper wraps a CallTransport with retry logic and a circuit
// breaker. Answers about the call itself (no voice chat, not joined) are
// passed through untouched and never trip the breaker.
//
// Leave and ActiveCalls can be repeated safely and are retried on any
// transport failure. Play, Pause and Resume change what the call is doing, so
// they are only retried when the request never reached the bridge.
type TransportWrapper struct {
	transport ports.CallTransport
	logger    *zap.SugaredLogger

	idempotentRetry retry.Config
	commandRetry    retry.Config
	circuitBreaker  *circuitbreaker.CircuitBreaker
}

var _ ports.CallTransport = (*TransportWrapper)(nil)

// NewTransportWrapper creates a new wrapper with retry and circuit breaker
func NewTransportWrapper(
	transport ports.CallTransport,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *TransportWrapper {
	retryConfig.NonRetryableErrors = []error{domain.ErrNoActiveCall, domain.ErrNotInCall, circuitbreaker.ErrOpen}
	cbConfig.IsSuccessful = isCallAnswer

	idempotent := retryConfig
	idempotent.RetryableErrors = []error{domain.ErrTransportUnavailable, context.DeadlineExceeded}
	command := retryConfig
	command.RetryableErrors = []error{domain.ErrTransportNotConnected}

	w := &TransportWrapper{
		transport:       transport,
		logger:          logger,
		idempotentRetry: idempotent,
		commandRetry:    command,
		circuitBreaker:  circuitbreaker.New(cbConfig),
	}

	w.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("call transport circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return w
}

// isCallAnswer reports whether err is a definite answer from a healthy bridge.
func isCallAnswer(err error) bool {
	return err == nil || errors.Is(err, domain.ErrNoActiveCall) || errors.Is(err, domain.ErrNotInCall)
}

func (w *TransportWrapper) Play(ctx context.Context, chatID domain.ChatID, desc domain.StreamDescriptor) error {
	return w.do(ctx, w.commandRetry, func() error {
		return w.transport.Play(ctx, chatID, desc)
	})
}

func (w *TransportWrapper) Leave(ctx context.Context, chatID domain.ChatID) error {
	return w.do(ctx, w.idempotentRetry, func() error {
		return w.transport.Leave(ctx, chatID)
	})
}

func (w *TransportWrapper) Pause(ctx context.Context, chatID domain.ChatID) error {
	return w.do(ctx, w.commandRetry, func() error {
		return w.transport.Pause(ctx, chatID)
	})
}

func (w *TransportWrapper) Resume(ctx context.Context, chatID domain.ChatID) error {
	return w.do(ctx, w.commandRetry, func() error {
		return w.transport.Resume(ctx, chatID)
	})
}

func (w *TransportWrapper) ActiveCalls(ctx context.Context) (map[domain.ChatID]domain.NativeCallStatus, error) {
	calls, err := retry.RetryWithResult(ctx, w.idempotentRetry, func() (map[domain.ChatID]domain.NativeCallStatus, error) {
		return circuitbreaker.Call(ctx, w.circuitBreaker, func() (map[domain.ChatID]domain.NativeCallStatus, error) {
			return w.transport.ActiveCalls(ctx)
		})
	})
	return calls, unavailable(err)
}

// Self is only asked once at startup and is not retried.
func (w *TransportWrapper) Self(ctx context.Context) (domain.UserID, error) {
	return w.transport.Self(ctx)
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (w *TransportWrapper) GetCircuitBreakerStats() circuitbreaker.Stats {
	return w.circuitBreaker.GetStats()
}

func (w *TransportWrapper) do(ctx context.Context, cfg retry.Config, fn func() error) error {
	err := retry.Retry(ctx, cfg, func() error {
		return w.circuitBreaker.Execute(ctx, fn)
	})
	return unavailable(err)
}

// unavailable reports a rejected call as the transport being down.
func unavailable(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %w", domain.ErrTransportUnavailable, err)
	}
	return err
}
