package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/config"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("OFLOW_HOME", home)

	cfg, err := config.Load(filepath.Join(home, "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.oflow.app", cfg.API.URL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, uint(3), cfg.API.Retries)
	assert.Equal(t, config.StorageFile, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(home, "state"), cfg.Storage.Dir)
	assert.Equal(t, []string{"profile", "openid"}, cfg.LINE.Scopes)
	assert.Equal(t, "https://api.oflow.app/functions/v1/auth-line-callback", cfg.LINECallbackURL())
	assert.Equal(t, "https://api.oflow.app/functions/v1/auth-apple-relay", cfg.AppleRelayURL())
}

func TestLoad_FileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("OFLOW_HOME", home)
	t.Setenv("OFLOW_LINE_CHANNEL_ID", "2001234567")
	t.Setenv("OFLOW_API_TIMEOUT", "45s")

	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  url: https://project.supabase.co
  anon_key: anon
apple:
  client_id: app.oflow.signin
storage:
  backend: memory
logging:
  level: debug
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://project.supabase.co", cfg.API.URL)
	assert.Equal(t, "anon", cfg.API.AnonKey)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, "2001234567", cfg.LINE.ChannelID)
	assert.Equal(t, "app.oflow.signin", cfg.Apple.ClientID)
	assert.Equal(t, config.StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "https://project.supabase.co/functions/v1/team-operations", cfg.FunctionURL("team-operations"))
}

func TestLoad_InvalidYAML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("OFLOW_HOME", home)

	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigRead, errors.CodeOf(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"relative api url", func(c *config.Config) { c.API.URL = "/api" }},
		{"zero timeout", func(c *config.Config) { c.API.Timeout = 0 }},
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "sqlite" }},
		{"redis without addr", func(c *config.Config) { c.Storage.Backend = config.StorageRedis }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default(t.TempDir())
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("OFLOW_HOME", home)
	path := filepath.Join(home, "nested", "config.yaml")

	cfg := config.Default(home)
	cfg.API.URL = "https://staging.oflow.app"
	cfg.API.Timeout = 10 * time.Second
	require.NoError(t, config.Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.oflow.app", loaded.API.URL)
	assert.Equal(t, 10*time.Second, loaded.API.Timeout)
}
