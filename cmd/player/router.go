package main

import (
	"context"
	"net/http"
	"time"

	"callplayer/internal/core/ports"
	"callplayer/internal/core/services"
	httphandlers "callplayer/internal/handlers/http"
	"callplayer/internal/infrastructure/middleware"
	"callplayer/internal/infrastructure/monitoring"
	"callplayer/internal/infrastructure/reliability"
	"callplayer/pkg/config"
	"callplayer/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type routerDeps struct {
	cfg         *config.Config
	log         *zap.SugaredLogger
	ctxLogger   *logger.ContextLogger
	collector   *monitoring.PrometheusCollector
	health      *monitoring.HealthChecker
	transport   *reliability.TransportWrapper
	auth        services.AuthService
	commands    ports.CommandExecutor
	coordinator ports.PlaybackCoordinator
	gate        ports.AccessGate
	startTime   time.Time
}

func newRouter(d routerDeps) *gin.Engine {
	if d.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(d.log),
		middleware.TracingMiddleware(),
		middleware.AccessLogMiddleware(d.ctxLogger, d.collector),
		middleware.ErrorHandlerMiddleware(d.log),
	)

	api := router.Group("/api/v1",
		middleware.AuthMiddleware(d.auth),
		middleware.NewHTTPRateLimitMiddleware(d.cfg),
	)
	httphandlers.NewCommandHandler(d.commands, d.coordinator, d.gate).SetupRoutes(api)
	httphandlers.NewAuthHandler(d.auth, d.gate, d.cfg.Auth.AccessTokenTTL).SetupRoutes(api)

	router.GET("/health", func(c *gin.Context) {
		status := d.health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":          status.Status,
			"timestamp":       status.Timestamp,
			"uptime":          time.Since(d.startTime).String(),
			"checks":          status.Checks,
			"circuit_breaker": d.transport.GetCircuitBreakerStats().State.String(),
			"active_chats":    len(d.coordinator.ActiveChats()),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := d.health.GetReadinessStatus(ctx)
		if !status.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not_ready",
				"timestamp": status.Timestamp,
				"checks":    status.Checks,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": status.Timestamp,
			"checks":    status.Checks,
		})
	})

	if d.cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		d.log.Info("prometheus metrics enabled")
	}

	return router
}
