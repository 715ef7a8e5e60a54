// Package config handles flowstate configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/flowstate/internal/log"
)

// TelemetryConfig controls trace export.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"` // "stdout" or "otlp"
	Endpoint string `mapstructure:"endpoint"` // OTLP gRPC endpoint, e.g. "localhost:4317"
}

// Config represents the complete flowstate configuration.
type Config struct {
	DBPath             string          `mapstructure:"db_path"`
	DefinitionsDir     string          `mapstructure:"definitions_dir"`
	AutoReload         bool            `mapstructure:"auto_reload"`
	AutoReloadDebounce time.Duration   `mapstructure:"auto_reload_debounce"`
	Telemetry          TelemetryConfig `mapstructure:"telemetry"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		DBPath:             "flowstate.db",
		DefinitionsDir:     "definitions",
		AutoReload:         false,
		AutoReloadDebounce: 500 * time.Millisecond,
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}

// Load reads configuration from the given path. An empty path falls
// back to flowstate.yaml in the working directory; a missing file
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("flowstate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			log.Debug(log.CatConfig, "No config file found, using defaults")
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	log.Debug(log.CatConfig, "Loaded config", "file", v.ConfigFileUsed())

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.AutoReloadDebounce < 0 {
		return fmt.Errorf("auto_reload_debounce must not be negative")
	}
	switch c.Telemetry.Exporter {
	case "", "stdout", "otlp":
	default:
		return fmt.Errorf("telemetry.exporter must be \"stdout\" or \"otlp\", got %q", c.Telemetry.Exporter)
	}
	if c.Telemetry.Enabled && c.Telemetry.Exporter == "otlp" && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required for the otlp exporter")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# flowstate configuration

# Path to the SQLite database file
db_path: flowstate.db

# Directory of workflow definition files (*.yaml)
definitions_dir: definitions

# Reload definition files automatically when they change
auto_reload: false
auto_reload_debounce: 500ms

# Trace export
telemetry:
  enabled: false
  exporter: stdout   # stdout or otlp
  # endpoint: localhost:4317
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
