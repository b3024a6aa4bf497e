package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logsift.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDefaultValid verifies the shipped defaults pass their own validation.
func TestDefaultValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.UnhealthyAfter)
	assert.Equal(t, 15*time.Second, cfg.FailedAfter)
	assert.Equal(t, 3, cfg.MaxRetries)
}

// TestLoadOverlay verifies fields present in the file override defaults and
// absent fields keep them.
func TestLoadOverlay(t *testing.T) {
	path := writeConfig(t, "heartbeat_interval: 1s\nunhealthy_after: 2s\nfailed_after: 3s\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.UnhealthyAfter)
	assert.Equal(t, 3*time.Second, cfg.FailedAfter)
	// Untouched by the file.
	assert.Equal(t, Default().MaxRetries, cfg.MaxRetries)
	assert.Equal(t, Default().DispatchTimeout, cfg.DispatchTimeout)
}

// TestLoadMaxRetriesZero verifies an explicit zero is an overlay, not an
// absent field.
func TestLoadMaxRetriesZero(t *testing.T) {
	path := writeConfig(t, "max_retries: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.MaxRetries)
}

// TestLoadBadDuration verifies an unparseable duration names the offending
// field.
func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, "heartbeat_interval: fast\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat_interval")
}

// TestLoadInvalidLadder verifies a file that breaks the threshold ladder is
// rejected at load time.
func TestLoadInvalidLadder(t *testing.T) {
	// failed_after below unhealthy_after: the sweep could never promote
	// unhealthy to failed.
	path := writeConfig(t, "unhealthy_after: 10s\nfailed_after: 8s\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed_after")
}

// TestLoadMissingFile verifies a missing config path is an error rather
// than silent defaults.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

// TestLoadMalformedYAML verifies parse failures surface.
func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "heartbeat_interval: [not, a, scalar\n")

	_, err := Load(path)
	require.Error(t, err)
}

// TestValidate exercises each ladder rule directly.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.HeartbeatInterval = 0 }},
		{"unhealthy below interval", func(c *Config) { c.UnhealthyAfter = c.HeartbeatInterval - 1 }},
		{"failed not above unhealthy", func(c *Config) { c.FailedAfter = c.UnhealthyAfter }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero dispatch timeout", func(c *Config) { c.DispatchTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
