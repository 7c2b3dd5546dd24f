package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileDefaults(t *testing.T) {
	c, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "3000", c.AppPort)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, "Africa/Cairo", c.Timezone)
	assert.Equal(t, 12, c.DayNoonHour)
	assert.Equal(t, "50 6 * * *", c.BackfillCron)
	assert.True(t, c.BackfillEnabled)
	assert.Equal(t, "local", c.PhotoStore)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Empty(t, c.RedisAddr)
}

func TestLoadFileGroupedJSONAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"app": {"port": "9000", "jwtsecret": "from-file"},
		"database": {"driver": "Postgres", "name": "habits"},
		"calendar": {"timezone": "Asia/Riyadh", "backfillcron": "0 7 * * *"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	c, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, "from-env", c.JWTSecret)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "habits", c.DBName)
	assert.Equal(t, "Asia/Riyadh", c.Timezone)
	assert.Equal(t, "0 7 * * *", c.BackfillCron)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.AllowedOrigins)
}

func TestLoadFileRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := Dialector(AppConfig{DBDriver: driver, DBName: "x"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector(AppConfig{DBDriver: "oracle"})
	assert.Error(t, err)
}
