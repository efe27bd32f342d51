package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenauth/warden/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "authority:\n  base_url: http://auth.local\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Profile)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://auth.local", cfg.Authority.BaseURL)
	assert.Equal(t, "Bearer", cfg.Authority.TokenHeaderPrefix)
	assert.Equal(t, 1000, cfg.Cache.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "fs", cfg.Keys.Store)
	assert.Equal(t, 30*24*time.Hour, cfg.Keys.RotationInterval)
	assert.Equal(t, 90*24*time.Hour, cfg.Keys.RetentionWindow)
	assert.Equal(t, 24*time.Hour, cfg.Keys.PublicationWindow)
	assert.False(t, cfg.MFA.Global)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
profile: production
server:
  port: 9000
authority:
  base_url: http://auth.local
  system_credential: secret
cache:
  capacity: 50
  ttl: 30s
keys:
  store: fs
  dir: /tmp/warden-keys
  rotation_interval: 12h
  retention_window: 48h
mfa:
  contexts: [admin]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Profile)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Cache.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 12*time.Hour, cfg.Keys.RotationInterval)
	assert.True(t, cfg.MFA.RequiresFor("admin"))
	assert.False(t, cfg.MFA.RequiresFor("user"))
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "authority:\n  base_url: http://auth.local\n")
	t.Setenv("WARDEN_SERVER_PORT", "7777")
	t.Setenv("WARDEN_AUTHORITY_SYSTEM_CREDENTIAL", "from-env")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Authority.SystemCredential)
}

func TestValidate_Rejections(t *testing.T) {
	base := func() string {
		return "authority:\n  base_url: http://auth.local\n"
	}

	cases := []struct {
		name string
		body string
	}{
		{"bad port", base() + "server:\n  port: 0\n"},
		{"missing authority", "authority:\n  base_url: \"\"\n"},
		{"zero cache capacity", base() + "cache:\n  enabled: true\n  capacity: 0\n"},
		{"unknown store", base() + "keys:\n  store: etcd\n"},
		{"gorm without dsn", base() + "keys:\n  store: gorm\n"},
		{"redis without addr", base() + "keys:\n  store: redis\n"},
		{"retention shorter than rotation", base() + "keys:\n  store: fs\n  dir: /tmp/k\n  rotation_interval: 48h\n  retention_window: 24h\n"},
		{"kafka without brokers", base() + "kafka:\n  enabled: true\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestMFAConfig_RequiresFor(t *testing.T) {
	global := config.MFAConfig{Global: true}
	assert.True(t, global.RequiresFor("user"))
	assert.True(t, global.RequiresFor("admin"))

	scoped := config.MFAConfig{Contexts: []string{"admin", "billing"}}
	assert.True(t, scoped.RequiresFor("admin"))
	assert.True(t, scoped.RequiresFor("billing"))
	assert.False(t, scoped.RequiresFor("user"))

	none := config.MFAConfig{}
	assert.False(t, none.RequiresFor("admin"))
}
