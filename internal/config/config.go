package config

import "time"

// Config is the root configuration structure. It is loaded once at
// process start and treated as read-only by the transport afterwards.
type Config struct {
	Pool      Pool    `yaml:"pool"`
	Timeout   Timeout `yaml:"timeout"`
	Retry     Retry   `yaml:"retry"`
	Stream    Stream  `yaml:"stream"`
	Metrics   Metrics `yaml:"metrics"`
	UserAgent string  `yaml:"user_agent"`
}

// Pool configures the connection pool engine.
type Pool struct {
	MaxIdlePerHost      int           `yaml:"max_idle_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout"`
	// DialRate caps new connection establishment per second across the
	// engine. Zero means unlimited.
	DialRate     float64 `yaml:"dial_rate"`
	TLSInsecure  bool    `yaml:"tls_insecure"`
	DisableHTTP2 bool    `yaml:"disable_http2"`
}

// Timeout configures the per-phase deadlines tracked by the timeout
// stage and the pool engine. Zero disables a phase.
type Timeout struct {
	Total   time.Duration `yaml:"total"`
	Connect time.Duration `yaml:"connect"`
	Read    time.Duration `yaml:"read"`
	Write   time.Duration `yaml:"write"`
}

// Retry configures the retry stage.
type Retry struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
	RetryOnStatus []int         `yaml:"retry_on_status"`
}

// Stream configures the streaming bridge buffer.
type Stream struct {
	BufferChunks int `yaml:"buffer_chunks"`
	ChunkSize    int `yaml:"chunk_size"`
}

// Metrics configures the Prometheus scrape endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults. Pool
// caps, idle age, and the total timeout match the original transport's
// defaults (64 idle per host, 90s idle age, 30s total).
func DefaultConfig() *Config {
	return &Config{
		Pool: Pool{
			MaxIdlePerHost:      64,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: Timeout{
			Total:   30 * time.Second,
			Connect: 10 * time.Second,
		},
		Retry: Retry{
			MaxAttempts:   3,
			BaseBackoff:   100 * time.Millisecond,
			MaxBackoff:    2 * time.Second,
			RetryOnStatus: []int{502, 503, 504},
		},
		Stream: Stream{
			BufferChunks: 32,
			ChunkSize:    32 * 1024,
		},
		Metrics: Metrics{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
	}
}
