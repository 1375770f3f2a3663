package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pool.MaxIdlePerHost != 64 {
		t.Errorf("MaxIdlePerHost = %d, want 64", cfg.Pool.MaxIdlePerHost)
	}
	if cfg.Pool.IdleConnTimeout != 90*time.Second {
		t.Errorf("IdleConnTimeout = %v, want 90s", cfg.Pool.IdleConnTimeout)
	}
	if cfg.Timeout.Total != 30*time.Second {
		t.Errorf("Timeout.Total = %v, want 30s", cfg.Timeout.Total)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
pool:
  max_idle_per_host: 8
timeout:
  total: 5s
  connect: 1s
retry:
  max_attempts: 2
  retry_on_status: [503]
user_agent: "custom/1.0"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pool.MaxIdlePerHost != 8 {
		t.Errorf("MaxIdlePerHost = %d, want 8", cfg.Pool.MaxIdlePerHost)
	}
	if cfg.Timeout.Total != 5*time.Second {
		t.Errorf("Timeout.Total = %v, want 5s", cfg.Timeout.Total)
	}
	if len(cfg.Retry.RetryOnStatus) != 1 || cfg.Retry.RetryOnStatus[0] != 503 {
		t.Errorf("RetryOnStatus = %v", cfg.Retry.RetryOnStatus)
	}
	if cfg.UserAgent != "custom/1.0" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	// Unset values fall back to defaults.
	if cfg.Pool.IdleConnTimeout != 90*time.Second {
		t.Errorf("IdleConnTimeout = %v, want default", cfg.Pool.IdleConnTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("want error for missing file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "pool: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("want error for malformed yaml")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTPXGO_USER_AGENT", "env-agent/2")
	t.Setenv("HTTPXGO_TIMEOUT_TOTAL", "7s")
	t.Setenv("HTTPXGO_MAX_IDLE_PER_HOST", "16")
	t.Setenv("HTTPXGO_RETRY_MAX_ATTEMPTS", "4")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UserAgent != "env-agent/2" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.Timeout.Total != 7*time.Second {
		t.Errorf("Timeout.Total = %v, want 7s", cfg.Timeout.Total)
	}
	if cfg.Pool.MaxIdlePerHost != 16 {
		t.Errorf("MaxIdlePerHost = %d, want 16", cfg.Pool.MaxIdlePerHost)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("Retry.MaxAttempts = %d, want 4", cfg.Retry.MaxAttempts)
	}
}

func TestLoadEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envPath, []byte("HTTPXGO_USER_AGENT=from-env-file/3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HTTPXGO_ENV_FILE", envPath)
	// godotenv sets real process variables; undo after the test.
	t.Cleanup(func() { os.Unsetenv("HTTPXGO_USER_AGENT") })

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UserAgent != "from-env-file/3" {
		t.Errorf("UserAgent = %q, want value from env file", cfg.UserAgent)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative idle", "pool:\n  max_idle_per_host: -1\n"},
		{"negative timeout", "timeout:\n  total: -5s\n"},
		{"bad status code", "retry:\n  retry_on_status: [99]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("want validation error")
			}
		})
	}
}

func TestValidateNormalizesZeros(t *testing.T) {
	path := writeConfig(t, "retry:\n  max_attempts: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, zero should normalize to 1", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.BaseBackoff <= 0 {
		t.Errorf("BaseBackoff = %v, want positive default", cfg.Retry.BaseBackoff)
	}
}
