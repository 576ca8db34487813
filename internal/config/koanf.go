package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config files searched in order; the first one found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/animeterminal/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from three layers:
//  1. built-in defaults
//  2. an optional YAML file
//  3. environment variables
//
// Later layers win. The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are read from the environment as comma-separated lists.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config keys.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	// Server
	"port":                 "server.port",
	"http_host":            "server.host",
	"node_env":             "server.environment",
	"environment":          "server.environment",
	"shutdown_timeout":     "server.shutdown_timeout",
	"cors_allowed_origins": "server.cors_origins",
	"rate_limit_requests":  "server.rate_limit_requests",
	"rate_limit_window":    "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Completion
	"openrouter_api_key":  "completion.api_key",
	"openrouter_base_url": "completion.base_url",
	"openrouter_model":    "completion.model",
	"openrouter_referer":  "completion.referer",
	"openrouter_title":    "completion.title",
	"openrouter_timeout":  "completion.timeout",

	// Metadata
	"anilist_url":                 "metadata.url",
	"anilist_timeout":             "metadata.timeout",
	"anilist_interval":            "metadata.interval",
	"anilist_requests_per_minute": "metadata.requests_per_minute",

	// Catalog
	"catalog_source":  "catalog.source",
	"anime_csv_path":  "catalog.path",
	"catalog_db_path": "catalog.db_path",

	// Pipeline
	"recommender_mode":      "pipeline.generator",
	"on_exhaustion":         "pipeline.on_exhaustion",
	"filter_unscored":       "pipeline.filter_unscored",
	"max_retries":           "pipeline.max_retries",
	"retry_backoff":         "pipeline.retry_backoff",
	"temperature_min":       "pipeline.temperature.min",
	"temperature_max":       "pipeline.temperature.max",
	"top_p_min":             "pipeline.top_p.min",
	"top_p_max":             "pipeline.top_p.max",
	"frequency_penalty_min": "pipeline.frequency_penalty.min",
	"frequency_penalty_max": "pipeline.frequency_penalty.max",
	"presence_penalty_min":  "pipeline.presence_penalty.min",
	"presence_penalty_max":  "pipeline.presence_penalty.max",

	// Breakers
	"breaker_failures": "breaker.failures",
	"breaker_cooldown": "breaker.cooldown",
}

// envTransformFunc maps an environment variable name to its config key.
// Unmapped names return "" so unrelated variables never leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
