// Package config provides the configuration structure for the hangul-tts service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
)

// Defaults applied to zero-valued settings.
const (
	DefaultListenAddr    = ":3000"
	DefaultAudioDir      = "public/audio"
	DefaultLogsDir       = "logs"
	DefaultAPIKeyEnv     = "OPENAI_API_KEY"
	DefaultBatchSize     = 50
	DefaultCallDelayMS   = 100
	DefaultEventsSubject = "hangul.audio.created"
	DefaultBatchSubject  = "hangul.batch.request"
	DefaultAudioBucket   = "HANGUL_AUDIO"
)

// ErrAPIKeyMissing indicates that the bearer token is not present in the environment.
var ErrAPIKeyMissing = errors.New("api key environment variable is not set")

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// OpenAIConfig holds the speech synthesis API settings.
type OpenAIConfig struct {
	BaseURL        string  `toml:"base_url"`
	APIKeyEnv      string  `toml:"api_key_env"`
	Model          string  `toml:"model"`
	Voice          string  `toml:"voice"`
	Instructions   string  `toml:"instructions"`
	Speed          float64 `toml:"speed"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// BatchConfig holds batch pacing settings.
type BatchConfig struct {
	DefaultSize int `toml:"default_size"`
	CallDelayMS int `toml:"call_delay_ms"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	AudioDir    string `toml:"audio_dir"`
	EnvFile     string `toml:"env_file"`
}

// NATSConfig holds the optional NATS integration. An empty URL disables it.
type NATSConfig struct {
	URL                 string `toml:"url"`
	AudioCreatedSubject string `toml:"audio_created_subject"`
	BatchSubject        string `toml:"batch_subject"`
	AudioBucket         string `toml:"audio_object_store_bucket"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `toml:"server"`
	OpenAI OpenAIConfig `toml:"openai"`
	Batch  BatchConfig  `toml:"batch"`
	Paths  PathsConfig  `toml:"paths"`
	NATS   NATSConfig   `toml:"nats"`
}

// Load loads the configuration for the hangul-tts service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills every zero-valued setting with its default.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Server.ListenAddr, DefaultListenAddr)
	setDefault(&c.OpenAI.APIKeyEnv, DefaultAPIKeyEnv)
	setDefault(&c.Paths.AudioDir, DefaultAudioDir)
	setDefault(&c.Paths.BaseLogsDir, DefaultLogsDir)
	setDefault(&c.NATS.AudioCreatedSubject, DefaultEventsSubject)
	setDefault(&c.NATS.BatchSubject, DefaultBatchSubject)
	setDefault(&c.NATS.AudioBucket, DefaultAudioBucket)

	if c.Batch.DefaultSize <= 0 {
		c.Batch.DefaultSize = DefaultBatchSize
	}

	if c.Batch.CallDelayMS == 0 {
		c.Batch.CallDelayMS = DefaultCallDelayMS
	}
}

// CallDelay returns the pause between synthesis calls.
func (c *Config) CallDelay() time.Duration {
	return time.Duration(c.Batch.CallDelayMS) * time.Millisecond
}

// Timeout returns the synthesis request timeout; zero means no client-side timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}

// NATSEnabled reports whether the NATS integration is configured.
func (c *Config) NATSEnabled() bool {
	return strings.TrimSpace(c.NATS.URL) != ""
}

// APIKey loads the optional .env file and returns the bearer token from the environment.
// Variables already set in the process take precedence over the file.
func (c *Config) APIKey() (string, error) {
	if c.Paths.EnvFile != "" {
		err := godotenv.Load(c.Paths.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to load env file %s: %w", c.Paths.EnvFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	key := strings.TrimSpace(os.Getenv(c.OpenAI.APIKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%w: %s", ErrAPIKeyMissing, c.OpenAI.APIKeyEnv)
	}

	return key, nil
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}
