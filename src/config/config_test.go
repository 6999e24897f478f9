package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewConfigOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
name: recorder
grpc_address: marketstore:5995
stream_url: ws://marketstore:5993/ws
streams:
  - AAPL/1Min/OHLCV
  - "*/1H/TICK"
network:
  timeout: 3
storage:
  enabled: true
  db_type: sqlite
  db_path: /tmp/x.db
`)
	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "recorder", cfg.Name)
	assert.Equal(t, []string{"AAPL/1Min/OHLCV", "*/1H/TICK"}, cfg.Streams)
	assert.Equal(t, 3, cfg.Network.RequestTimeout)
	// untouched fields keep their defaults
	assert.Equal(t, 5, cfg.Network.MaxRetries)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad pattern", func(c *Config) { c.Streams = []string{"AAPL/1Min"} }, "exactly 3 segments"},
		{"http stream url", func(c *Config) { c.StreamURL = "http://localhost/ws" }, "ws or wss"},
		{"no grpc", func(c *Config) { c.GrpcAddress = "" }, "grpc address"},
		{"zero timeout", func(c *Config) { c.Network.RequestTimeout = 0 }, "request timeout"},
		{"postgres without dsn", func(c *Config) {
			c.Storage.Enabled = true
			c.Storage.DBType = "postgres"
		}, "connection string"},
		{"disabled storage is not checked", func(c *Config) { c.Storage.DBType = "mongo" }, ""},
		{"same simulator ports", func(c *Config) { c.Simulator.GrpcPort = c.Simulator.Port }, "must differ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.errMsg)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	c := Default()
	c.Streams = []string{"MSFT/1D/OHLCV"}
	require.NoError(t, c.Save(path))

	loaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c.MConfig, loaded.MConfig)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
