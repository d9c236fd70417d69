package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

store:
  driver: memory

dispatch:
  poll_interval_seconds: 15
  send_delay_millis: 250
  auto_process_queue: true

notify:
  mode: http
  url: "http://tracker.local/hook"

logging:
  level: debug
  format: console
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)

	assert.Equal(t, 15*time.Second, cfg.Dispatch.PollInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatch.SendDelay())
	assert.True(t, cfg.Dispatch.AutoProcessQueue)

	// Unset fields fall back to defaults
	assert.Equal(t, time.Hour, cfg.Dispatch.Lease())
	assert.Equal(t, 50, cfg.Dispatch.MaxItemsPerTick)
	assert.Equal(t, 30*time.Second, cfg.Channels.APITimeout())
	assert.Equal(t, 5*time.Second, cfg.Notify.Timeout())

	assert.Equal(t, NotifyHTTP, cfg.Notify.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, 60*time.Second, cfg.Dispatch.PollInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.SendDelay())
	assert.False(t, cfg.Dispatch.AutoProcessQueue)
	assert.Equal(t, NotifyNone, cfg.Notify.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	err = os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
	require.NoError(t, err)

	_, err = Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("store:\n  driver: postgres\n"), 0644))

	t.Setenv("DATABASE_URL", "postgres://dispatch@localhost/dispatch?sslmode=disable")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("NOTIFY_SQS_QUEUE_URL", "https://sqs.us-west-2.amazonaws.com/123/dispatch-results")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("AUTO_PROCESS_QUEUE", "true")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://dispatch@localhost/dispatch?sslmode=disable", cfg.Database.URL)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, NotifySQS, cfg.Notify.Mode)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Dispatch.AutoProcessQueue)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"memory store", func(c *Config) { c.Store.Driver = StoreMemory }, false},
		{"postgres without url", func(c *Config) {}, true},
		{"postgres with url", func(c *Config) { c.Database.URL = "postgres://x" }, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "bolt" }, true},
		{"http notify without url", func(c *Config) {
			c.Store.Driver = StoreMemory
			c.Notify.Mode = NotifyHTTP
		}, true},
		{"unknown notify mode", func(c *Config) {
			c.Store.Driver = StoreMemory
			c.Notify.Mode = "kafka"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerConfigGetHost(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8081}
	assert.Equal(t, "127.0.0.1:8081", c.Addr())

	t.Setenv("SERVER_HOST", "0.0.0.0")
	assert.Equal(t, "0.0.0.0", c.GetHost())
}
