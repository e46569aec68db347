package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/sensornode/internal/config"
	"codeberg.org/mutker/sensornode/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sensornode.toml")
	err := os.WriteFile(configPath, []byte(content), 0o600)
	require.NoError(t, err)

	return configPath
}

func TestLoad(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"sensornode"}

	configPath := writeConfig(t, `
interface = "wlp2s0"
ssid = "Free Wi-Fi"
psk = "BiBiBiBiBi"
host = "telemetry.example.org"
port = 9000
path = "/ingest"
node_id = "feather"
sample_interval = 20
forward_interval = 250
buffer_capacity = 256
batch_size = 50
log_level = "debug"
metrics = true
metrics_db = "/tmp/sensornode-metrics.db"
`)
	t.Setenv("SENSORNODE_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "wlp2s0", cfg.Interface)
	assert.Equal(t, "Free Wi-Fi", cfg.SSID)
	assert.Equal(t, "BiBiBiBiBi", cfg.PSK)
	assert.Equal(t, "telemetry.example.org", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/ingest", cfg.Path)
	assert.Equal(t, "feather", cfg.NodeID)
	assert.Equal(t, 20, cfg.SampleInterval)
	assert.Equal(t, 250, cfg.ForwardInterval)
	assert.Equal(t, 256, cfg.BufferCapacity)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, "/tmp/sensornode-metrics.db", cfg.MetricsDB)
}

func TestLoadDefaults(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"sensornode"}

	t.Setenv("SENSORNODE_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, "wlan0", cfg.Interface)
	assert.Equal(t, "", cfg.SSID)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "/", cfg.Path)
	assert.Equal(t, "feather", cfg.NodeID)
	assert.Equal(t, 10, cfg.SampleInterval)
	assert.Equal(t, 100, cfg.ForwardInterval)
	assert.Equal(t, 200, cfg.IndicatorInterval)
	assert.Equal(t, 128, cfg.BufferCapacity)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.Metrics)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"sensornode"}

	configPath := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("SENSORNODE_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read configuration")
}

func TestInvalidLogLevel(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"sensornode"}

	configPath := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv("SENSORNODE_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid log level")
}

func TestValidate(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"sensornode"}

	tests := []struct {
		name    string
		content string
	}{
		{"zero sample interval", "sample_interval = 0"},
		{"negative forward interval", "forward_interval = -5"},
		{"zero buffer capacity", "buffer_capacity = 0"},
		{"zero batch size", "batch_size = 0"},
		{"port out of range", "port = 70000"},
		{"empty host", `host = ""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content+"\n")
			t.Setenv("SENSORNODE_CONFIG", configPath)

			_, err := config.Load()
			require.Error(t, err)
		})
	}
}

func TestConfiguredLogLevelSurvivesLoggerInit(t *testing.T) {
	oldArgs := os.Args
	oldLevel := zerolog.GlobalLevel()
	defer func() {
		os.Args = oldArgs
		zerolog.SetGlobalLevel(oldLevel)
	}()
	os.Args = []string{"sensornode"}

	configPath := writeConfig(t, `
log_level = "debug"
`)
	t.Setenv("SENSORNODE_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	// Startup order: the logger comes up first and resets the global
	// level, then the configured level is applied on top
	logger.Init(cfg.Debug, cfg.Verbose, true)
	cfg.ApplyLogLevel()

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestLogLevelFlag(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"sensornode", "--log-level", "debug"}

	t.Setenv("SENSORNODE_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
}
