// Package config_test tests the configuration loading for the hangul-tts service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/hangul-tts/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[server]
listen_addr = "127.0.0.1:8080"

[openai]
base_url = "https://api.openai.com"
api_key_env = "HANGUL_TTS_KEY"
model = "gpt-4o-mini-tts"
voice = "fable"
speed = 1.0
timeout_seconds = 30

[batch]
default_size = 25
call_delay_ms = 250

[paths]
base_logs_dir = "/var/log/hangul-tts"
audio_dir = "public/audio"

[nats]
url = "nats://127.0.0.1:4222"
audio_created_subject = "hangul.audio.created"
batch_subject = "hangul.batch.request"
audio_object_store_bucket = "HANGUL_AUDIO"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	cfg.ApplyDefaults()

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.ListenAddr)
	assert.Equal(t, "HANGUL_TTS_KEY", cfg.OpenAI.APIKeyEnv)
	assert.Equal(t, "fable", cfg.OpenAI.Voice)
	assert.InEpsilon(t, 1.0, cfg.OpenAI.Speed, 0.001)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 25, cfg.Batch.DefaultSize)
	assert.Equal(t, 250*time.Millisecond, cfg.CallDelay())
	assert.Equal(t, "/var/log/hangul-tts", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "public/audio", cfg.Paths.AudioDir)
	assert.True(t, cfg.NATSEnabled())
	assert.Equal(t, "HANGUL_AUDIO", cfg.NATS.AudioBucket)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	cfg.ApplyDefaults()

	assert.Equal(t, config.DefaultListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, config.DefaultAPIKeyEnv, cfg.OpenAI.APIKeyEnv)
	assert.Equal(t, config.DefaultAudioDir, cfg.Paths.AudioDir)
	assert.Equal(t, config.DefaultBatchSize, cfg.Batch.DefaultSize)
	assert.Equal(t, 100*time.Millisecond, cfg.CallDelay())
	assert.Zero(t, cfg.Timeout())
	assert.False(t, cfg.NATSEnabled())
	assert.Equal(t, config.DefaultEventsSubject, cfg.NATS.AudioCreatedSubject)
}

func TestAPIKey_FromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HANGUL_TEST_KEY_FILE=sk-from-file\n"), 0o600))

	t.Cleanup(func() { _ = os.Unsetenv("HANGUL_TEST_KEY_FILE") })

	cfg := config.Config{
		OpenAI: config.OpenAIConfig{APIKeyEnv: "HANGUL_TEST_KEY_FILE"},
		Paths:  config.PathsConfig{EnvFile: envFile},
	}

	key, err := cfg.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", key)
}

func TestAPIKey_ProcessEnvWins(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HANGUL_TEST_KEY_ENV=sk-from-file\n"), 0o600))

	t.Setenv("HANGUL_TEST_KEY_ENV", "sk-from-env")

	cfg := config.Config{
		OpenAI: config.OpenAIConfig{APIKeyEnv: "HANGUL_TEST_KEY_ENV"},
		Paths:  config.PathsConfig{EnvFile: envFile},
	}

	key, err := cfg.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", key)
}

func TestAPIKey_Missing(t *testing.T) {
	t.Setenv("HANGUL_TEST_KEY_MISSING", "")

	cfg := config.Config{
		OpenAI: config.OpenAIConfig{APIKeyEnv: "HANGUL_TEST_KEY_MISSING"},
		Paths:  config.PathsConfig{EnvFile: filepath.Join(t.TempDir(), "absent.env")},
	}

	_, err := cfg.APIKey()
	require.ErrorIs(t, err, config.ErrAPIKeyMissing)
}
