package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zohaib704-ai/Code-sphere/internal/upstream"
)

const (
	envPrefix = "CODESPHERE"

	defaultListenAddr      = ":3000"
	defaultBackendURL      = "https://emkc.org/api/v2/piston"
	defaultDBPath          = "codesphere.db"
	defaultLogLevel        = "info"
	defaultRateLimitMax    = 100
	defaultRateLimitWindow = 15 * time.Minute
)

// Config holds application configuration.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	BackendURL      string        `mapstructure:"backend_url"`
	BackendToken    string        `mapstructure:"backend_token"`
	DBPath          string        `mapstructure:"db_path"`
	LogLevelName    string        `mapstructure:"log_level"`
	RedisURL        string        `mapstructure:"redis_url"`
	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	StaticDir       string        `mapstructure:"static_dir"`
	TracingEnabled  bool          `mapstructure:"tracing_enabled"`
	PrimeCatalog    bool          `mapstructure:"prime_catalog"`

	LogLevel slog.Level `mapstructure:"-"`
}

// Load reads configuration from defaults, an optional config file in
// ./configs or the working directory, and CODESPHERE_* environment variables.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("backend_url", defaultBackendURL)
	v.SetDefault("backend_token", "")
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("redis_url", "")
	v.SetDefault("rate_limit_max", defaultRateLimitMax)
	v.SetDefault("rate_limit_window", defaultRateLimitWindow)
	v.SetDefault("static_dir", "")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("prime_catalog", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.BackendURL == "" {
		return Config{}, errors.New("backend_url must not be empty")
	}
	if err := upstream.ValidateBaseURL(cfg.BackendURL); err != nil {
		return Config{}, fmt.Errorf("invalid backend_url: %w", err)
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return Config{}, fmt.Errorf("rate limit must be positive, got %d per %s", cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	return cfg, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
