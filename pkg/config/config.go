package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"callplayer/pkg/validation"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Bridge struct {
		URL            string        `yaml:"url"`
		DialTimeout    time.Duration `yaml:"dial_timeout"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		PongTimeout    time.Duration `yaml:"pong_timeout"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		EventBuffer    int           `yaml:"event_buffer"`
	} `yaml:"bridge"`

	Player struct {
		OwnerID         int64    `yaml:"owner_id"`
		SudoUsers       []int64  `yaml:"sudo_users"`
		AccessMode      string   `yaml:"access_mode"`
		MaxQueueLength  int      `yaml:"max_queue_length"` // 0 means unbounded
		AudioQuality    string   `yaml:"audio_quality"`
		VideoQuality    string   `yaml:"video_quality"`
		CommandPrefixes []string `yaml:"command_prefixes"`
	} `yaml:"player"`

	Resolver struct {
		Binary   string        `yaml:"binary"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"resolver"`

	Reliability struct {
		Retry struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
			Multiplier   float64       `yaml:"multiplier"`
		} `yaml:"retry"`
		CircuitBreaker struct {
			FailureThreshold int           `yaml:"failure_threshold"`
			SuccessThreshold int           `yaml:"success_threshold"`
			Timeout          time.Duration `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Monitoring struct {
		PrometheusEnabled   bool          `yaml:"prometheus_enabled"`
		HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
		// Rotation of File
		MaxSizeMB  int  `yaml:"max_size_mb"`
		MaxBackups int  `yaml:"max_backups"`
		MaxAgeDays int  `yaml:"max_age_days"`
		Compress   bool `yaml:"compress"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Bridge
	if err := validation.ValidateURL(c.Bridge.URL); err != nil {
		return fmt.Errorf("bridge.url: %w", err)
	}
	if !strings.HasPrefix(c.Bridge.URL, "ws://") && !strings.HasPrefix(c.Bridge.URL, "wss://") {
		return fmt.Errorf("bridge.url must use ws:// or wss://")
	}
	if c.Bridge.DialTimeout <= 0 {
		return fmt.Errorf("bridge.dial_timeout must be > 0")
	}
	if c.Bridge.RequestTimeout <= 0 {
		return fmt.Errorf("bridge.request_timeout must be > 0")
	}
	if c.Bridge.PingInterval <= 0 {
		return fmt.Errorf("bridge.ping_interval must be > 0")
	}
	if c.Bridge.PongTimeout <= c.Bridge.PingInterval {
		return fmt.Errorf("bridge.pong_timeout must be > bridge.ping_interval")
	}
	if c.Bridge.EventBuffer <= 0 {
		return fmt.Errorf("bridge.event_buffer must be > 0")
	}

	// Player
	switch c.Player.AccessMode {
	case "global", "restricted":
	default:
		return fmt.Errorf("player.access_mode must be one of global, restricted")
	}
	if c.Player.OwnerID != 0 {
		if err := validation.ValidateUserID(c.Player.OwnerID); err != nil {
			return fmt.Errorf("player.owner_id: %w", err)
		}
	}
	for _, id := range c.Player.SudoUsers {
		if err := validation.ValidateUserID(id); err != nil {
			return fmt.Errorf("player.sudo_users: %w", err)
		}
	}
	if c.Player.MaxQueueLength < 0 {
		return fmt.Errorf("player.max_queue_length must be >= 0")
	}
	if c.Player.AudioQuality == "" {
		return fmt.Errorf("player.audio_quality must not be empty")
	}
	if c.Player.VideoQuality == "" {
		return fmt.Errorf("player.video_quality must not be empty")
	}
	if len(c.Player.CommandPrefixes) == 0 {
		return fmt.Errorf("player.command_prefixes must not be empty")
	}

	// Resolver
	if c.Resolver.Timeout <= 0 {
		return fmt.Errorf("resolver.timeout must be > 0")
	}
	if c.Resolver.CacheTTL < 0 {
		return fmt.Errorf("resolver.cache_ttl must be >= 0")
	}

	// Reliability
	if c.Reliability.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("reliability.retry.max_attempts must be > 0")
	}
	if c.Reliability.Retry.Multiplier < 1 {
		return fmt.Errorf("reliability.retry.multiplier must be >= 1")
	}
	if c.Reliability.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("reliability.circuit_breaker.failure_threshold must be > 0")
	}
	if c.Reliability.CircuitBreaker.Timeout <= 0 {
		return fmt.Errorf("reliability.circuit_breaker.timeout must be > 0")
	}

	// Monitoring
	if c.Monitoring.HealthCheckInterval <= 0 {
		return fmt.Errorf("monitoring.health_check_interval must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if err := validation.ValidateURL(c.Tracing.JaegerURL); err != nil {
			return fmt.Errorf("tracing.jaeger_url: %w", err)
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation settings must not be negative")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Bridge.URL = "ws://localhost:8090/bridge"
	cfg.Bridge.DialTimeout = 10 * time.Second
	cfg.Bridge.RequestTimeout = 15 * time.Second
	cfg.Bridge.PingInterval = 20 * time.Second
	cfg.Bridge.PongTimeout = 60 * time.Second
	cfg.Bridge.ReconnectDelay = 3 * time.Second
	cfg.Bridge.EventBuffer = 256

	cfg.Player.AccessMode = "global"
	cfg.Player.MaxQueueLength = 100
	cfg.Player.AudioQuality = "studio"
	cfg.Player.VideoQuality = "720p"
	cfg.Player.CommandPrefixes = []string{"/", "!", "."}

	cfg.Resolver.Binary = "yt-dlp"
	cfg.Resolver.Timeout = 45 * time.Second
	cfg.Resolver.CacheTTL = 30 * time.Minute

	cfg.Reliability.Retry.MaxAttempts = 3
	cfg.Reliability.Retry.InitialDelay = 200 * time.Millisecond
	cfg.Reliability.Retry.MaxDelay = 2 * time.Second
	cfg.Reliability.Retry.Multiplier = 2.0
	cfg.Reliability.CircuitBreaker.FailureThreshold = 5
	cfg.Reliability.CircuitBreaker.SuccessThreshold = 2
	cfg.Reliability.CircuitBreaker.Timeout = 30 * time.Second

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.HealthCheckInterval = 30 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.MaxSizeMB = 5
	cfg.Logging.MaxBackups = 10

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 24 * time.Hour

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 5
	cfg.RateLimiting.HTTP.Burst = 10
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CALLPLAYER_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if url := os.Getenv("CALLPLAYER_BRIDGE_URL"); url != "" {
		c.Bridge.URL = url
	}
	if level := os.Getenv("CALLPLAYER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("CALLPLAYER_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if owner := os.Getenv("CALLPLAYER_OWNER_ID"); owner != "" {
		if id, err := strconv.ParseInt(owner, 10, 64); err == nil {
			c.Player.OwnerID = id
		}
	}
	if addr := os.Getenv("CALLPLAYER_REDIS_ADDRESS"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Address = addr
	}
}
