package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var (
	errTestError    = errors.New("test error")
	errNonRetryable = errors.New("non-retryable error")
	errRetryable    = errors.New("retryable error")
)

func fastConfig(maxAttempts int) Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  maxAttempts,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastConfig(3), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return errTestError
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetry_MaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastConfig(2), func() error {
		attempts++
		return errTestError
	})

	if !errors.Is(err, errTestError) {
		t.Errorf("Expected wrapped test error, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got: %d", attempts)
	}
}

func TestRetry_Disabled(t *testing.T) {
	cfg := fastConfig(5)
	cfg.Enabled = false

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errTestError
	})

	if err != errTestError {
		t.Errorf("Expected raw error when disabled, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	cfg := fastConfig(5)
	cfg.InitialDelay = 200 * time.Millisecond
	cfg.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	attempts := 0
	err := Retry(ctx, cfg, func() error {
		attempts++
		return errTestError
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got: %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	cfg := fastConfig(3)
	cfg.NonRetryableErrors = []error{errNonRetryable}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return fmt.Errorf("play chat 1: %w", errNonRetryable)
	})

	if !errors.Is(err, errNonRetryable) {
		t.Errorf("Expected non-retryable error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetry_RetryableErrorList(t *testing.T) {
	cfg := fastConfig(3)
	cfg.RetryableErrors = []error{errRetryable}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 2 {
			return fmt.Errorf("wrapped: %w", errRetryable)
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got: %d", attempts)
	}
}

func TestRetry_ErrorNotInRetryableList(t *testing.T) {
	cfg := fastConfig(3)
	cfg.RetryableErrors = []error{errRetryable}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errTestError
	})

	if err != errTestError {
		t.Errorf("Expected test error unchanged, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryWithResult_Success(t *testing.T) {
	attempts := 0
	result, err := RetryWithResult(context.Background(), fastConfig(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errTestError
		}
		return "ok", nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != "ok" {
		t.Errorf("Expected result 'ok', got: %s", result)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got: %d", attempts)
	}
}

func TestRetryWithResult_Failure(t *testing.T) {
	attempts := 0
	result, err := RetryWithResult(context.Background(), fastConfig(2), func() (int, error) {
		attempts++
		return 7, errTestError
	})

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if result != 0 {
		t.Errorf("Expected zero value, got: %d", result)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got: %d", attempts)
	}
}

func TestCalculateDelay_ExponentialBackoff(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second, Multiplier: 2.0}

	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
	for attempt, want := range expected {
		if got := calculateDelay(cfg, attempt); got != want {
			t.Errorf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}
}

func TestCalculateDelay_MaxDelayCap(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2.0}

	if got := calculateDelay(cfg, 5); got != 300*time.Millisecond {
		t.Errorf("Expected delay capped at 300ms, got %v", got)
	}
}

func TestCalculateDelay_WithJitter(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0, Jitter: true}

	for i := 0; i < 50; i++ {
		got := calculateDelay(cfg, 0)
		if got < 75*time.Millisecond || got > 125*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Enabled {
		t.Error("Expected retry to be enabled by default")
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts to be 3, got: %d", cfg.MaxAttempts)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Expected Multiplier to be 2.0, got: %f", cfg.Multiplier)
	}
}
