package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/internal/core/services"
	"callplayer/internal/infrastructure/bridge"
	"callplayer/internal/infrastructure/monitoring"
	"callplayer/internal/infrastructure/reliability"
	"callplayer/internal/infrastructure/repositories"
	"callplayer/internal/infrastructure/resolver"
	"callplayer/pkg/circuitbreaker"
	"callplayer/pkg/config"
	"callplayer/pkg/logger"
	"callplayer/pkg/retry"
	"callplayer/pkg/tracing"
	"callplayer/pkg/validation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configPath := pflag.StringP("config", "c", "configs/config.yaml", "path to the YAML config file")
	logLevel := pflag.String("log-level", "", "override logging.level")
	issueToken := pflag.Int64("issue-token", 0, "print a gateway token for this user id and exit")
	username := pflag.String("username", "", "username embedded in the token issued by --issue-token")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if *issueToken != 0 {
		if err := printToken(cfg, *issueToken, *username); err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	zapLogger, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,

		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Sugar().Fatalw("player stopped with error", "error", err)
	}
}

func printToken(cfg *config.Config, userID int64, username string) error {
	if err := validation.ValidateUserID(userID); err != nil {
		return err
	}
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}
	auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	token, err := auth.GenerateToken(domain.UserID(userID), username)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	log := zapLogger.Sugar()
	startTime := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "callplayer",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warnw("failed to flush traces", "error", err)
		}
	}()

	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	defer func() {
		if err := repoFactory.Close(); err != nil {
			log.Errorw("error closing repository factory", "error", err)
		}
	}()

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	bridgeClient := bridge.NewClient(bridge.Config{
		URL:            cfg.Bridge.URL,
		DialTimeout:    cfg.Bridge.DialTimeout,
		RequestTimeout: cfg.Bridge.RequestTimeout,
		PingInterval:   cfg.Bridge.PingInterval,
		PongTimeout:    cfg.Bridge.PongTimeout,
		ReconnectDelay: cfg.Bridge.ReconnectDelay,
		EventBuffer:    cfg.Bridge.EventBuffer,
	}, log.Named("bridge"))
	bridgeClient.Start(ctx)
	defer bridgeClient.Close()

	transport := reliability.NewTransportWrapper(
		bridgeClient,
		retry.Config{
			Enabled:      true,
			MaxAttempts:  cfg.Reliability.Retry.MaxAttempts,
			InitialDelay: cfg.Reliability.Retry.InitialDelay,
			MaxDelay:     cfg.Reliability.Retry.MaxDelay,
			Multiplier:   cfg.Reliability.Retry.Multiplier,
			Jitter:       true,
		},
		circuitbreaker.Config{
			FailureThreshold:    cfg.Reliability.CircuitBreaker.FailureThreshold,
			SuccessThreshold:    cfg.Reliability.CircuitBreaker.SuccessThreshold,
			Timeout:             cfg.Reliability.CircuitBreaker.Timeout,
			MaxRequestsHalfOpen: 1,
		},
		log.Named("transport"),
	)

	gate := services.NewAccessGate(domain.AccessMode(cfg.Player.AccessMode), owners(cfg), sudoers(cfg))

	builder, err := services.NewDescriptorBuilder(
		domain.AudioQuality(cfg.Player.AudioQuality),
		domain.VideoQuality(cfg.Player.VideoQuality),
	)
	if err != nil {
		return fmt.Errorf("invalid quality presets: %w", err)
	}

	mediaResolver := services.NewCachedResolver(
		resolver.NewYTDLPResolver(resolver.Config{
			Binary:  cfg.Resolver.Binary,
			Timeout: cfg.Resolver.Timeout,
		}, log.Named("resolver")),
		repoFactory.CreateResolutionCache(),
		cfg.Resolver.CacheTTL,
		collector,
		log.Named("resolver"),
	)

	coordinator := services.NewPlaybackCoordinator(
		repoFactory.CreateQueueStore(),
		transport,
		services.NewCallStateReader(transport),
		collector,
		services.CoordinatorConfig{
			MaxQueueLength:   cfg.Player.MaxQueueLength,
			TransportTimeout: cfg.Bridge.RequestTimeout * 2,
		},
		log.Named("coordinator"),
	)
	playService := services.NewPlayService(gate, mediaResolver, builder, coordinator, log.Named("play"))
	commandService := services.NewCommandService(gate, playService, coordinator, collector, cfg.Player.CommandPrefixes, log.Named("commands"))
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	router := services.NewEventRouter(coordinator, collector, cfg.Bridge.RequestTimeout*2, log.Named("events"))
	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		router.Run(ctx, bridgeClient)
	}()

	go seedOwnerFromBridge(ctx, transport, gate, cfg.Bridge.ReconnectDelay, log)

	health := monitoring.NewHealthChecker()
	health.AddBridgeCheck(bridgeClient.Connected, cfg.Monitoring.HealthCheckInterval)
	if client := repoFactory.RedisClient(); client != nil {
		health.AddRedisCheck(client, cfg.Monitoring.HealthCheckInterval, 2*time.Second)
	}
	health.StartBackgroundChecks(ctx)

	handler := newRouter(routerDeps{
		cfg:         cfg,
		log:         log,
		ctxLogger:   logger.NewContextLogger(zapLogger),
		collector:   collector,
		health:      health,
		transport:   transport,
		auth:        authService,
		commands:    commandService,
		coordinator: coordinator,
		gate:        gate,
		startTime:   startTime,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting player API", "address", cfg.Server.Address, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		<-routerDone
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	select {
	case <-routerDone:
	case <-shutdownCtx.Done():
		log.Warn("call event workers did not finish in time")
	}

	log.Info("player stopped")
	return nil
}

func owners(cfg *config.Config) []domain.UserID {
	if cfg.Player.OwnerID == 0 {
		return nil
	}
	return []domain.UserID{domain.UserID(cfg.Player.OwnerID)}
}

func sudoers(cfg *config.Config) []domain.UserID {
	out := make([]domain.UserID, 0, len(cfg.Player.SudoUsers))
	for _, id := range cfg.Player.SudoUsers {
		out = append(out, domain.UserID(id))
	}
	return out
}

// seedOwnerFromBridge makes the account the bridge is logged in as an owner
// once the bridge answers.
func seedOwnerFromBridge(ctx context.Context, transport ports.CallTransport, gate ports.AccessGate, delay time.Duration, log *zap.SugaredLogger) {
	if delay <= 0 {
		delay = time.Second
	}
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		self, err := transport.Self(ctx)
		if err == nil {
			gate.AddOwner(self)
			log.Infow("bridge account registered as owner", "user_id", self)
			return
		}
		log.Debugw("bridge account not known yet", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
