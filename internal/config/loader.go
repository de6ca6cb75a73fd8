package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "FACEQUIZ_"

// listKeys are the []string settings.
var listKeys = map[string]struct{}{
	"allowed_occupations": {},
	"cors_origins":        {},
}

// Load builds a Config by layering defaults, optional file, .env and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. YAML file if FACEQUIZ_CONFIG is set
//  3. .env file (FACEQUIZ_ENV_FILE, default ".env"); never overrides the real environment
//  4. env (prefix FACEQUIZ_), then the unprefixed PORT, MONGO_URI, REDIS_URL
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envFile := os.Getenv(envPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, envFile, err)
	}

	// FACEQUIZ_VISIT_QUEUE_SIZE -> visit_queue_size (flat keys, underscores kept).
	// List keys take comma separated values.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if _, ok := listKeys[key]; ok {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	applyLegacyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyLegacyEnv honours the unprefixed variables older deployments set,
// unless the prefixed equivalent is present.
func applyLegacyEnv(cfg *Config) {
	legacy := []struct {
		name, prefixed string
		apply          func(string)
	}{
		{"PORT", "ADDR", func(v string) { cfg.Addr = ":" + strings.TrimPrefix(v, ":") }},
		{"MONGO_URI", "MONGO_URI", func(v string) { cfg.MongoURI = v }},
		{"REDIS_URL", "REDIS_URL", func(v string) { cfg.RedisURL = v }},
	}
	for _, l := range legacy {
		if _, ok := os.LookupEnv(envPrefix + l.prefixed); ok {
			continue
		}
		if v := os.Getenv(l.name); v != "" {
			l.apply(v)
		}
	}
}

// splitList splits a comma separated value, dropping blanks.
func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
