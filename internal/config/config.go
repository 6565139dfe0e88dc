package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	Server     ServerConfig
	Ollama     OllamaConfig
	TTS        TTSConfig
	Storage    StorageConfig
	Generation GenerationConfig
	Worker     WorkerConfig
	Study      StudyConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

// TTSConfig points at a local text-to-speech server. An empty BaseURL
// disables audio generation.
type TTSConfig struct {
	BaseURL string
}

type StorageConfig struct {
	DataDir string
}

type GenerationConfig struct {
	SentenceCount int
	MaxAttempts   int
}

type WorkerConfig struct {
	PollInterval string
}

type StudyConfig struct {
	Language  string
	BatchSize int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4700,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "mistral-nemo",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Generation: GenerationConfig{
			SentenceCount: 3,
			MaxAttempts:   3,
		},
		Worker: WorkerConfig{
			PollInterval: "2s",
		},
		Study: StudyConfig{
			BatchSize: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/lexibase/config.json with LEXIBASE_* environment
// variables overriding file values.
//
// The API token is generated on first load and persisted, so repeat
// invocations of the CLI and the server agree on it.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.APIToken == "" {
		token := uuid.New().String()
		if err := b.SetString("server.api_token", token); err != nil {
			return Config{}, fmt.Errorf("persisting generated api token: %w", err)
		}
		cfg.Server.APIToken = token
	}

	if _, err := time.ParseDuration(cfg.Worker.PollInterval); err != nil {
		return Config{}, fmt.Errorf("invalid worker.poll_interval %q: %w", cfg.Worker.PollInterval, err)
	}

	return cfg, nil
}

// PollInterval returns the parsed worker poll interval. Load validates the
// value, so parse errors here fall back to the default.
func (c Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Worker.PollInterval)
	if err != nil {
		return 2 * time.Second
	}
	return d
}
