package monitoring

import (
	"context"
	"sync"
	"time"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

type HealthChecker struct {
	checks []HealthCheck
	mu     sync.RWMutex

	lastMu sync.RWMutex
	last   map[string]string
}

type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) (bool, error)
	Interval time.Duration
	Timeout  time.Duration
	// Readiness checks gate /ready only; liveness ignores them.
	Readiness bool
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (s HealthStatus) Healthy() bool {
	return s.Status == statusHealthy
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make([]HealthCheck, 0),
		last:   make(map[string]string),
	}
}

func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) (bool, error), interval, timeout time.Duration) {
	h.add(HealthCheck{Name: name, Check: check, Interval: interval, Timeout: timeout})
}

func (h *HealthChecker) add(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// CheckAll runs every liveness check now.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	return h.run(ctx, false)
}

func (h *HealthChecker) run(ctx context.Context, readiness bool) HealthStatus {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for _, check := range checks {
		if check.Readiness && !readiness {
			continue
		}
		result := h.runOne(ctx, check)
		status.Checks[check.Name] = result
		if result != statusHealthy {
			status.Status = statusUnhealthy
		}
	}

	return status
}

func (h *HealthChecker) runOne(ctx context.Context, check HealthCheck) string {
	if check.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, check.Timeout)
		defer cancel()
	}

	result := statusHealthy
	healthy, err := check.Check(ctx)
	switch {
	case err != nil:
		result = err.Error()
	case !healthy:
		result = "check failed"
	}

	h.lastMu.Lock()
	h.last[check.Name] = result
	h.lastMu.Unlock()
	return result
}

// LastResults returns the outcome of the most recent run of each check.
func (h *HealthChecker) LastResults() map[string]string {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()

	out := make(map[string]string, len(h.last))
	for k, v := range h.last {
		out[k] = v
	}
	return out
}

func (h *HealthChecker) StartBackgroundChecks(ctx context.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, check := range h.checks {
		if check.Interval > 0 {
			go h.runCheckPeriodically(ctx, check)
		}
	}
}

func (h *HealthChecker) runCheckPeriodically(ctx context.Context, check HealthCheck) {
	ticker := time.NewTicker(check.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.runOne(ctx, check)
		}
	}
}
