package streakbot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
[bot]
token = "file-token"

[db]
host = "localhost"
user = "postgres"
database = "streaks"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 20, cfg.Streaks.MinDescription)
	assert.Equal(t, "announcements", cfg.Streaks.AnnouncementChannel)
	assert.Equal(t, "!", cfg.Streaks.CommandPrefix)
	assert.Equal(t, 10, cfg.Streaks.TopLimit)

	specs := cfg.Streaks.Specs()
	assert.Equal(t, "0 0 * * *", specs.NewDay)
	assert.Equal(t, "0 18 * * *", specs.FirstWarning)
	assert.Equal(t, "0 22 * * *", specs.SecondWarning)

	loc, err := cfg.Streaks.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
	assert.False(t, cfg.Spaces.Enabled())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")

	cfg, err := LoadConfig(writeConfig(t, `
[bot]
token = "file-token"

[streaks]
timezone = "Europe/Berlin"
min_description = 30
`))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Bot.Token)
	assert.Equal(t, "secret", cfg.DB.Password)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, 30, cfg.Streaks.MinDescription)

	loc, err := cfg.Streaks.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown timezone", "[streaks]\ntimezone = \"Mars/Olympus\"\n"},
		{"bad cron", "[streaks]\nfirst_warning_cron = \"18:00\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
