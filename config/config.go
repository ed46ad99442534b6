// Package config loads vquery settings from defaults, an optional YAML file
// and VQUERY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. VQUERY_NETWORK_TIMEOUT.
const EnvPrefix = "VQUERY"

// Config is the complete configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Ajax    AjaxConfig    `mapstructure:"ajax" yaml:"ajax"`
	Script  ScriptConfig  `mapstructure:"script" yaml:"script"`
}

// LoggerConfig configures the zap logger and optional log file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// NetworkConfig configures the HTTP client.
type NetworkConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxRedirects int           `mapstructure:"max_redirects" yaml:"max_redirects"`
}

// AjaxConfig holds request defaults applied when settings leave them unset.
type AjaxConfig struct {
	DefaultTimeout  time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	DefaultDataType string        `mapstructure:"default_data_type" yaml:"default_data_type"`

	// RateLimit caps requests per second across a run. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// ScriptConfig bounds script runs.
type ScriptConfig struct {
	RunTimeout time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vquery")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", false)

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.user_agent", "vquery/1.0")
	v.SetDefault("network.max_redirects", 10)

	// -- Ajax --
	v.SetDefault("ajax.default_timeout", "0s")
	v.SetDefault("ajax.default_data_type", "")
	v.SetDefault("ajax.rate_limit", 0)
	v.SetDefault("ajax.rate_burst", 1)

	// -- Script --
	v.SetDefault("script.run_timeout", "1m")
}

// New creates a viper instance with defaults and environment overrides. A
// non-empty path is read as a YAML config file; otherwise ./vquery.yaml is
// used when present.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("vquery")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if c.Network.Timeout < 0 {
		return fmt.Errorf("network.timeout must not be negative")
	}
	if c.Network.MaxRedirects < 0 {
		return fmt.Errorf("network.max_redirects must not be negative")
	}
	switch c.Ajax.DefaultDataType {
	case "", "json", "html", "text":
	default:
		return fmt.Errorf("ajax.default_data_type must be json, html or text, got %q", c.Ajax.DefaultDataType)
	}
	if c.Ajax.RateLimit < 0 {
		return fmt.Errorf("ajax.rate_limit must not be negative")
	}
	if c.Ajax.RateLimit > 0 && c.Ajax.RateBurst < 1 {
		return fmt.Errorf("ajax.rate_burst must be at least 1 when rate_limit is set")
	}
	if c.Script.RunTimeout <= 0 {
		return fmt.Errorf("script.run_timeout must be a positive duration")
	}
	return nil
}
