package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML configuration file. An empty path
// returns the defaults. Environment variables (optionally sourced from
// an env file named by HTTPXGO_ENV_FILE) override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if envFile := os.Getenv("HTTPXGO_ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays HTTPXGO_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTPXGO_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if d, ok := envDuration("HTTPXGO_TIMEOUT_TOTAL"); ok {
		cfg.Timeout.Total = d
	}
	if d, ok := envDuration("HTTPXGO_TIMEOUT_CONNECT"); ok {
		cfg.Timeout.Connect = d
	}
	if n, ok := envInt("HTTPXGO_MAX_IDLE_PER_HOST"); ok {
		cfg.Pool.MaxIdlePerHost = n
	}
	if d, ok := envDuration("HTTPXGO_IDLE_CONN_TIMEOUT"); ok {
		cfg.Pool.IdleConnTimeout = d
	}
	if n, ok := envInt("HTTPXGO_RETRY_MAX_ATTEMPTS"); ok {
		cfg.Retry.MaxAttempts = n
	}
	if v := os.Getenv("HTTPXGO_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = v
	}
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// validate checks the configuration for errors and fills zero values
// with defaults where a zero makes no sense.
func validate(cfg *Config) error {
	def := DefaultConfig()

	if cfg.Pool.MaxIdlePerHost < 0 {
		return fmt.Errorf("pool.max_idle_per_host must not be negative")
	}
	if cfg.Pool.MaxIdlePerHost == 0 {
		cfg.Pool.MaxIdlePerHost = def.Pool.MaxIdlePerHost
	}
	if cfg.Pool.IdleConnTimeout <= 0 {
		cfg.Pool.IdleConnTimeout = def.Pool.IdleConnTimeout
	}
	if cfg.Pool.TLSHandshakeTimeout <= 0 {
		cfg.Pool.TLSHandshakeTimeout = def.Pool.TLSHandshakeTimeout
	}
	if cfg.Pool.DialRate < 0 {
		return fmt.Errorf("pool.dial_rate must not be negative")
	}

	if cfg.Timeout.Total < 0 || cfg.Timeout.Connect < 0 ||
		cfg.Timeout.Read < 0 || cfg.Timeout.Write < 0 {
		return fmt.Errorf("timeout values must not be negative")
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Retry.BaseBackoff <= 0 {
		cfg.Retry.BaseBackoff = def.Retry.BaseBackoff
	}
	if cfg.Retry.MaxBackoff < cfg.Retry.BaseBackoff {
		cfg.Retry.MaxBackoff = def.Retry.MaxBackoff
	}
	for _, code := range cfg.Retry.RetryOnStatus {
		if code < 100 || code > 599 {
			return fmt.Errorf("retry.retry_on_status: %d is not a status code", code)
		}
	}

	if cfg.Stream.BufferChunks <= 0 {
		cfg.Stream.BufferChunks = def.Stream.BufferChunks
	}
	if cfg.Stream.ChunkSize <= 0 {
		cfg.Stream.ChunkSize = def.Stream.ChunkSize
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Address == "" {
			cfg.Metrics.Address = def.Metrics.Address
		}
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = def.Metrics.Path
		}
	}

	return nil
}
