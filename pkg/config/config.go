package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Gateway struct {
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		MaxMessageBytes int64         `yaml:"max_message_bytes"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"gateway"`

	Presence struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"presence"`

	Whiteboard struct {
		WriteMinInterval  time.Duration `yaml:"write_min_interval"`
		CursorMinInterval time.Duration `yaml:"cursor_min_interval"`
	} `yaml:"whiteboard"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		SampleRate     float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
		AllowAnonymous  bool          `yaml:"allow_anonymous"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		Connection struct {
			AttemptsPerWindow int           `yaml:"attempts_per_window"`
			Window            time.Duration `yaml:"window"`
		} `yaml:"connection"`

		Events EventRateLimitConfig `yaml:"events"`
	} `yaml:"rate_limiting"`
}

// EventRateLimitConfig bounds realtime events per identity and event class.
type EventRateLimitConfig struct {
	Strategy  string        `yaml:"strategy"` // fixed_window | token_bucket
	Window    time.Duration `yaml:"window"`
	Room      int           `yaml:"room"`      // join/leave per window
	Chat      int           `yaml:"chat"`      // chat messages per window
	Signaling int           `yaml:"signaling"` // offer/answer/ice per window
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
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

	if c.Gateway.PingInterval <= 0 {
		return fmt.Errorf("gateway.ping_interval must be > 0")
	}
	if c.Gateway.PongTimeout <= 0 {
		return fmt.Errorf("gateway.pong_timeout must be > 0")
	}
	if c.Gateway.WriteTimeout <= 0 {
		return fmt.Errorf("gateway.write_timeout must be > 0")
	}
	if c.Gateway.MaxMessageBytes < 0 {
		return fmt.Errorf("gateway.max_message_bytes must be >= 0")
	}

	if c.Presence.TTL <= 0 {
		return fmt.Errorf("presence.ttl must be > 0")
	}

	if c.Whiteboard.WriteMinInterval <= 0 {
		return fmt.Errorf("whiteboard.write_min_interval must be > 0")
	}
	if c.Whiteboard.CursorMinInterval <= 0 {
		return fmt.Errorf("whiteboard.cursor_min_interval must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Connection.AttemptsPerWindow <= 0 {
			return fmt.Errorf("rate_limiting.connection.attempts_per_window must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Connection.Window <= 0 {
			return fmt.Errorf("rate_limiting.connection.window must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Events.Strategy != "fixed_window" && c.RateLimiting.Events.Strategy != "token_bucket" {
			return fmt.Errorf("rate_limiting.events.strategy must be fixed_window or token_bucket")
		}
		if c.RateLimiting.Events.Window <= 0 {
			return fmt.Errorf("rate_limiting.events.window must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Events.Room <= 0 || c.RateLimiting.Events.Chat <= 0 || c.RateLimiting.Events.Signaling <= 0 {
			return fmt.Errorf("rate_limiting.events limits must be > 0 when rate limiting is enabled")
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

	cfg.Gateway.PingInterval = 30 * time.Second
	cfg.Gateway.PongTimeout = 60 * time.Second
	cfg.Gateway.WriteTimeout = 10 * time.Second
	cfg.Gateway.MaxMessageBytes = 512 * 1024
	cfg.Gateway.AllowedOrigins = []string{"*"}

	cfg.Presence.TTL = 90 * time.Second

	cfg.Whiteboard.WriteMinInterval = 100 * time.Millisecond
	cfg.Whiteboard.CursorMinInterval = 50 * time.Millisecond

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 0.1

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	cfg.Auth.AllowAnonymous = true

	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.Connection.AttemptsPerWindow = 10
	cfg.RateLimiting.Connection.Window = 60 * time.Second
	cfg.RateLimiting.Events.Strategy = "fixed_window"
	cfg.RateLimiting.Events.Window = 10 * time.Second
	cfg.RateLimiting.Events.Room = 20
	cfg.RateLimiting.Events.Chat = 50
	cfg.RateLimiting.Events.Signaling = 30

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("SLATE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if addr := os.Getenv("SLATE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if level := os.Getenv("SLATE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("SLATE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}
