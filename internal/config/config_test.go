package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GALLERYSYNC_DB_PATH",
		"REDDIT_CLIENT_ID",
		"REDDIT_CLIENT_SECRET",
		"REDDIT_USER_AGENT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./gallerysync.db", cfg.Database.Path)
	assert.Equal(t, "gallerysync/1.0", cfg.Source.UserAgent)
	assert.Equal(t, 100, cfg.Source.Limit)
	assert.Equal(t, 20, cfg.Sync.BatchSize)
	assert.Equal(t, 8, cfg.Sync.Workers)
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	assert.Equal(t, "0 */6 * * *", cfg.Schedule.Cron)
	assert.True(t, cfg.Schedule.SyncOnStart)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/gallerysync/data.db
source:
  client_id: file-id
  user_agent: custom/2.0
  limit: 50
sync:
  batch_size: 10
  communities:
    - earthpics
    - pics
schedule:
  cron: "@hourly"
  sync_on_start: false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/gallerysync/data.db", cfg.Database.Path)
	assert.Equal(t, "file-id", cfg.Source.ClientID)
	assert.Equal(t, "custom/2.0", cfg.Source.UserAgent)
	assert.Equal(t, 50, cfg.Source.Limit)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, []string{"earthpics", "pics"}, cfg.Sync.Communities)
	assert.Equal(t, "@hourly", cfg.Schedule.Cron)
	assert.False(t, cfg.Schedule.SyncOnStart)

	// Unset file keys keep their defaults.
	assert.Equal(t, 8, cfg.Sync.Workers)
}

func TestLoadEnvOverrides(t *testing.T) {
	cases := []struct {
		env   string
		value string
		field func(*Config) string
	}{
		{"GALLERYSYNC_DB_PATH", "/tmp/env.db", func(c *Config) string { return c.Database.Path }},
		{"REDDIT_CLIENT_ID", "env-id", func(c *Config) string { return c.Source.ClientID }},
		{"REDDIT_CLIENT_SECRET", "env-secret", func(c *Config) string { return c.Source.ClientSecret }},
		{"REDDIT_USER_AGENT", "env-agent/1.0", func(c *Config) string { return c.Source.UserAgent }},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.env, tc.value)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tc.value, tc.field(cfg))
		})
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("GALLERYSYNC_DB_PATH", "/tmp/env-wins.db")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /tmp/file.db\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-wins.db", cfg.Database.Path)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("database: [not, a, map"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)
}
