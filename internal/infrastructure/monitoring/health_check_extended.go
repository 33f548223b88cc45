package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddBridgeCheck reports whether the call bridge socket is up. A player
// without its bridge can still answer queue reads, so this gates readiness
// only.
func (h *HealthChecker) AddBridgeCheck(connected func() bool, interval time.Duration) {
	h.add(HealthCheck{
		Name: "bridge",
		Check: func(context.Context) (bool, error) {
			if !connected() {
				return false, errors.New("call bridge disconnected")
			}
			return true, nil
		},
		Interval:  interval,
		Readiness: true,
	})
}

// GetReadinessStatus returns readiness status for load balancer
func (h *HealthChecker) GetReadinessStatus(ctx context.Context) HealthStatus {
	return h.run(ctx, true)
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.GetReadinessStatus(ctx).Status == statusHealthy
}
