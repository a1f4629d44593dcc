package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rumba.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/", cfg.Server.URL)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "/var/lib/rumba/sessions", cfg.Media.Root)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  url: https://rumba.example.com/api
  address: ":9090"
database:
  host: db.internal
  port: 5433
  user: rumba
  password: secret
  name: rumba
media:
  root: /srv/rumba
audio:
  ffmpeg_path: /opt/ffmpeg/bin/ffmpeg
  format: flac
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rumba.example.com/api/", cfg.Server.URL, "base URL is normalized to a trailing slash")
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "/srv/rumba", cfg.Media.Root)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.Audio.FFmpegPath)
	assert.Equal(t, "flac", cfg.Audio.Format)
}

func TestLoadConfig_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	path := writeConfig(t, `
database:
  password: ${TEST_DB_PASSWORD}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Database.Password)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("RUMBA_DB_HOST", "env-host")
	t.Setenv("RUMBA_SERVER_URL", "https://env.example.com")
	path := writeConfig(t, `
server:
  url: https://file.example.com/
database:
  host: file-host
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, "https://env.example.com/", cfg.Server.URL)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/rumba.yaml")
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "rumba",
		Password: "secret",
		Name:     "rumba",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=rumba password=secret dbname=rumba sslmode=require",
		cfg.DSN())
}
