package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key    string
	typ    keyType
	env    string
	hidden bool // not listed by ShowAll, not settable via SetKey

	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LEXIBASE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "LEXIBASE_API_TOKEN",
		hidden:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "ollama.base_url", typ: kString, env: "LEXIBASE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "LEXIBASE_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "tts.base_url", typ: kString, env: "LEXIBASE_TTS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.TTS.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.TTS.BaseURL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LEXIBASE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "generation.sentence_count", typ: kInt, env: "LEXIBASE_GENERATION_SENTENCE_COUNT",
		apply:   func(cfg *Config, v any) { cfg.Generation.SentenceCount = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.SentenceCount },
	},
	{
		key: "generation.max_attempts", typ: kInt, env: "LEXIBASE_GENERATION_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Generation.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.MaxAttempts },
	},
	{
		key: "worker.poll_interval", typ: kString, env: "LEXIBASE_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
	{
		key: "study.language", typ: kString, env: "LEXIBASE_STUDY_LANGUAGE",
		apply:   func(cfg *Config, v any) { cfg.Study.Language = v.(string) },
		extract: func(cfg Config) any { return cfg.Study.Language },
	},
	{
		key: "study.batch_size", typ: kInt, env: "LEXIBASE_STUDY_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Study.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Study.BatchSize },
	},
	{
		key: "log.level", typ: kString, env: "LEXIBASE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
