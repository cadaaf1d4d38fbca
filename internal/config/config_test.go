package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.NotEmpty(t, cfg.Sources)
	assert.NotEmpty(t, cfg.Filter.DomainTerms)
	assert.NotEmpty(t, cfg.Filter.RestrictionPhrases)
	assert.Equal(t, defaultCollect, cfg.Collection.Count)
	assert.Equal(t, "UTC", cfg.Run.Location().String())
}

func TestLoadAppliesFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
database:
  dsn: postgres://file-dsn
run:
  timezone: Asia/Seoul
collection:
  count: 25
notifications:
  slack:
    channel: file-channel
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(slackTokenEnv, "xoxb-env")
	t.Setenv(databaseDSNEnv, "postgres://env-dsn")
	t.Setenv(dotenvPathEnv, filepath.Join(dir, "missing.env"))

	cfg := Load()

	// Env beats file, file beats defaults.
	assert.Equal(t, "postgres://env-dsn", cfg.Database.DSN)
	assert.Equal(t, "xoxb-env", cfg.Notifications.Slack.BotToken)
	assert.Equal(t, "file-channel", cfg.Notifications.Slack.Channel)
	assert.Equal(t, 25, cfg.Collection.Count)

	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	assert.Equal(t, loc.String(), cfg.Run.Location().String())

	// Untouched sections keep defaults.
	assert.NotEmpty(t, cfg.Filter.DomainTerms)
	assert.NotEmpty(t, cfg.Sources)
}

func TestServiceKeyEnvBinding(t *testing.T) {
	t.Setenv(kstartupKeyEnv, "portal-key")
	t.Setenv(dotenvPathEnv, filepath.Join(t.TempDir(), "missing.env"))

	cfg := Load()

	var found bool
	for _, source := range cfg.Sources {
		if source.Name == "kstartup" {
			found = true
			assert.Equal(t, "portal-key", source.ServiceKey)
		}
	}
	require.True(t, found)
}
