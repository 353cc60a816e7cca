package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
vk:
  access_token: "vk1.a.token"
  api_version: "5.199"
  timezone: "Europe/Moscow"
  max_non_video_workers: 20
  max_video_workers: 3
  max_video_download_retries: 7
  max_video_size_mb: 100
telegram:
  api_id: 12345
  api_hash: "hash1"
  phone_number: "+111"
  session_file: "tg1.session"
server:
  host: "127.0.0.1"
  port: 8081
  shutdown_timeout_seconds: 15
processing:
  task_timeout_seconds: 120
  task_ttl_hours: 48
logging:
  level: "debug"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func TestLoadFromYAML(t *testing.T) {
	t.Run("FullConfig", func(t *testing.T) {
		path := createTempConfigFile(t, fullYAML)
		cfg, err := loadFromYAML(path)
		require.NoError(t, err)

		assert.Equal(t, "vk1.a.token", cfg.Vk.AccessToken)
		assert.Equal(t, "5.199", cfg.Vk.APIVersion)
		assert.Equal(t, 20, cfg.Vk.MaxNonVideoWorkers)
		assert.Equal(t, 12345, cfg.Telegram.APIID)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 8081, cfg.Server.Port)
		assert.Equal(t, 120, cfg.Processing.TaskTimeoutSeconds)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := loadFromYAML(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		path := createTempConfigFile(t, "vk: [broken")
		_, err := loadFromYAML(path)
		assert.Error(t, err)
	})
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, DefaultVkAPIVersion, cfg.Vk.APIVersion)
	assert.Equal(t, DefaultMaxNonVideoWorkers, cfg.Vk.MaxNonVideoWorkers)
	assert.Equal(t, DefaultMaxVideoWorkers, cfg.Vk.MaxVideoWorkers)
	assert.Equal(t, DefaultMaxVideoDownloadRetries, cfg.Vk.MaxVideoDownloadRetries)
	assert.Equal(t, DefaultMaxVideoSizeMb, cfg.Vk.MaxVideoSizeMb)
	assert.Equal(t, DefaultSessionFile, cfg.Telegram.SessionFile)
	assert.Equal(t, DefaultServerHost, cfg.Server.Host)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("TokenIsRequired", func(t *testing.T) {
		t.Setenv("VK_ACCESS_TOKEN", "")
		_, err := loadFromEnv()
		assert.Error(t, err)
	})

	t.Run("ValuesFromEnvironment", func(t *testing.T) {
		t.Setenv("VK_ACCESS_TOKEN", "vk1.a.env-token")
		t.Setenv("VK_TIMEZONE", "Europe/Moscow")
		t.Setenv("TG_API_ID", "777")
		t.Setenv("SERVER_PORT", "9090")

		cfg, err := loadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "vk1.a.env-token", cfg.Vk.AccessToken)
		assert.Equal(t, "Europe/Moscow", cfg.Vk.Timezone)
		assert.Equal(t, 777, cfg.Telegram.APIID)
		assert.Equal(t, 9090, cfg.Server.Port)
	})

	t.Run("MalformedIntIsError", func(t *testing.T) {
		t.Setenv("VK_ACCESS_TOKEN", "vk1.a.env-token")
		t.Setenv("SERVER_PORT", "not-a-number")
		_, err := loadFromEnv()
		assert.Error(t, err)
	})
}

func TestConfigHelpers(t *testing.T) {
	t.Run("Location", func(t *testing.T) {
		cfg := &Config{Vk: Vk{Timezone: "Europe/Moscow"}}
		loc, err := cfg.Location()
		require.NoError(t, err)
		assert.Equal(t, "Europe/Moscow", loc.String())

		cfg.Vk.Timezone = ""
		loc, err = cfg.Location()
		require.NoError(t, err)
		assert.Equal(t, time.Local, loc)

		cfg.Vk.Timezone = "Nowhere/Nowhere"
		_, err = cfg.Location()
		assert.Error(t, err)
	})

	t.Run("Address", func(t *testing.T) {
		cfg := &Config{Server: Server{Host: "localhost", Port: 8080}}
		assert.Equal(t, "localhost:8080", cfg.Address())
	})

	t.Run("TaskTTL", func(t *testing.T) {
		cfg := &Config{Processing: Processing{TaskTTLHours: 48}}
		assert.Equal(t, 48*time.Hour, cfg.TaskTTL())

		cfg.Processing.TaskTTLHours = 0
		assert.Equal(t, time.Duration(DefaultTaskTTLHours)*time.Hour, cfg.TaskTTL())
	})

	t.Run("VideoQuality", func(t *testing.T) {
		vk := &Vk{MaxVideoSizeMb: 50}
		assert.Equal(t, "(bestvideo+bestaudio/best)[filesize<=?50M]", vk.VideoQuality())
	})
}
