package services

import (
	"context"
	"fmt"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
)

type callStateReader struct {
	transport ports.CallTransport
}

func NewCallStateReader(transport ports.CallTransport) ports.CallStateReader {
	return &callStateReader{transport: transport}
}

// GetCallState asks the transport every time; the answer is never cached.
func (r *callStateReader) GetCallState(ctx context.Context, chatID domain.ChatID) (domain.CallState, error) {
	calls, err := r.transport.ActiveCalls(ctx)
	if err != nil {
		return domain.CallStateNoCall, fmt.Errorf("failed to read active calls: %w", err)
	}

	status, ok := calls[chatID]
	if !ok {
		return domain.CallStateNoCall, nil
	}

	switch status {
	case domain.NativeStatusPlaying:
		return domain.CallStatePlaying, nil
	case domain.NativeStatusPaused:
		return domain.CallStatePaused, nil
	default:
		// a call exists but nothing is known to stream in it
		return domain.CallStateIdle, nil
	}
}
