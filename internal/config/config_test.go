package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaykv/internal/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relaykv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultRelays, cfg.Relays)
	assert.True(t, cfg.Decrypt)
	assert.Equal(t, 1000, cfg.AggregateCount)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "all", cfg.ExitPolicy)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
relays:
  - mem://local
  - sqlite:///tmp/relay.db
aggregate_count: 50
fetch_timeout: 3s
exit_policy: first
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"mem://local", "sqlite:///tmp/relay.db"}, cfg.Relays)
	assert.Equal(t, 50, cfg.AggregateCount)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, transport.FetchOptions{Timeout: 3 * time.Second, Exit: transport.ExitFirst}, cfg.FetchOptions())
	// Untouched fields keep their defaults.
	assert.True(t, cfg.Decrypt)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "aggregate_count: 50\n")
	t.Setenv("RELAYKV_AGGREGATE_COUNT", "7")
	t.Setenv("RELAYKV_RELAYS", "mem://a,mem://b")
	t.Setenv("RELAYKV_DECRYPT", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.AggregateCount)
	assert.Equal(t, []string{"mem://a", "mem://b"}, cfg.Relays)
	assert.False(t, cfg.Decrypt)
	assert.Equal(t, 7, cfg.QueryOptions().AggregateCount)
}

func TestLoad_EmptyFileIsFine(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "relayz: [mem://a]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relayz")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("RELAYKV_AGGREGATE_COUNT", "lots")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no relays", func(c *Config) { c.Relays = nil }, "no relays configured"},
		{"bad scheme", func(c *Config) { c.Relays = []string{"http://x"} }, "invalid config"},
		{"zero aggregate count", func(c *Config) { c.AggregateCount = 0 }, "invalid config"},
		{"negative timeout", func(c *Config) { c.FetchTimeout = -time.Second }, "invalid config"},
		{"bad exit policy", func(c *Config) { c.ExitPolicy = "some" }, "invalid config"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid config"},
		{"empty key file", func(c *Config) { c.KeyFile = "" }, "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	cfg := Default()
	cfg.Relays = nil
	assert.ErrorIs(t, cfg.Validate(), ErrNoRelays)
}

func TestLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	cfg.LogLevel = "nonsense"
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}
