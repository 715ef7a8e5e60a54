package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowstate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func TestLoad_AppliesDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, "db_path: /tmp/state.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/state.db", cfg.DBPath)
	assert.Equal(t, "definitions", cfg.DefinitionsDir)
	assert.Equal(t, 500*time.Millisecond, cfg.AutoReloadDebounce)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "stdout", cfg.Telemetry.Exporter)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
db_path: /var/lib/flowstate/state.db
definitions_dir: /etc/flowstate/definitions
auto_reload: true
auto_reload_debounce: 2s
telemetry:
  enabled: true
  exporter: otlp
  endpoint: collector:4317
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/flowstate/state.db", cfg.DBPath)
	assert.Equal(t, "/etc/flowstate/definitions", cfg.DefinitionsDir)
	assert.True(t, cfg.AutoReload)
	assert.Equal(t, 2*time.Second, cfg.AutoReloadDebounce)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "otlp", cfg.Telemetry.Exporter)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty db path",
			mutate:  func(c *Config) { c.DBPath = "" },
			wantErr: "db_path",
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.AutoReloadDebounce = -time.Second },
			wantErr: "auto_reload_debounce",
		},
		{
			name:    "unknown exporter",
			mutate:  func(c *Config) { c.Telemetry.Exporter = "jaeger" },
			wantErr: "telemetry.exporter",
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Exporter = "otlp"
			},
			wantErr: "telemetry.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flowstate.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg, "template must round-trip to the defaults")
}
