package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Provider.MaxRetries)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.MaxPerHour)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	data := `
server:
  addr: ":9090"
provider:
  models: ["gemini-2.0-flash"]
  max_retries: 3
  base_backoff: 500ms
rate_limit:
  enabled: true
  max_per_hour: 5
  max_per_day: 12
  whitelist_ips: ["172.16.255.61"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"gemini-2.0-flash"}, cfg.Provider.Models)
	assert.Equal(t, 3, cfg.Provider.MaxRetries)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Provider.BaseBackoff)
	assert.Equal(t, 5, cfg.RateLimit.MaxPerHour)
	assert.Equal(t, []string{"172.16.255.61"}, cfg.RateLimit.WhitelistIPs)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  max_per_hour: 5\n"), 0o644))

	t.Setenv(EnvAPIKeys, "key-one, key-two")
	t.Setenv(EnvMaxPerHour, "7")
	t.Setenv(EnvAddr, ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"key-one", "key-two"}, cfg.Provider.Credentials)
	assert.Equal(t, 7, cfg.RateLimit.MaxPerHour)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Provider.Credentials = []string{"k1"}
		return cfg
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Provider.Models = nil
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Provider.Credentials = nil
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Provider.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimit.MaxPerDay = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.MaxPerDay = 0
	assert.NoError(t, cfg.Validate())
}
