package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "vquery", cfg.Logger.ServiceName)
	assert.Equal(t, 30*time.Second, cfg.Network.Timeout)
	assert.Equal(t, 10, cfg.Network.MaxRedirects)
	assert.Zero(t, cfg.Ajax.DefaultTimeout)
	assert.Zero(t, cfg.Ajax.RateLimit)
	assert.Equal(t, 1, cfg.Ajax.RateBurst)
	assert.Equal(t, time.Minute, cfg.Script.RunTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"timeout", func(c *Config) { c.Network.Timeout = -time.Second }, "network.timeout"},
		{"redirects", func(c *Config) { c.Network.MaxRedirects = -1 }, "network.max_redirects"},
		{"data type", func(c *Config) { c.Ajax.DefaultDataType = "xml" }, "ajax.default_data_type"},
		{"rate limit", func(c *Config) { c.Ajax.RateLimit = -1 }, "ajax.rate_limit"},
		{"rate burst", func(c *Config) { c.Ajax.RateLimit = 5; c.Ajax.RateBurst = 0 }, "ajax.rate_burst"},
		{"run timeout", func(c *Config) { c.Script.RunTimeout = 0 }, "script.run_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNew_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logger:
  level: debug
  format: json
ajax:
  default_timeout: 250ms
  default_data_type: json
  rate_limit: 2.5
`), 0o644))
	t.Setenv("VQUERY_NETWORK_USER_AGENT", "test-agent/2")

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Ajax.DefaultTimeout)
	assert.Equal(t, "json", cfg.Ajax.DefaultDataType)
	assert.Equal(t, 2.5, cfg.Ajax.RateLimit)
	assert.Equal(t, "test-agent/2", cfg.Network.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Network.Timeout, "unset keys keep defaults")
}

func TestNew_MissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("script.run_timeout", "0s")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
