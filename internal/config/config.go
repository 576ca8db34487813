// Package config loads the server configuration from built-in defaults, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/animeterminal/internal/adapters/anilist"
	"github.com/ewilliams-labs/animeterminal/internal/adapters/csvcatalog"
	"github.com/ewilliams-labs/animeterminal/internal/adapters/openrouter"
	"github.com/ewilliams-labs/animeterminal/internal/core/services"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	CatalogCSV    = "csv"
	CatalogSQLite = "sqlite"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Completion CompletionConfig `koanf:"completion"`
	Metadata   MetadataConfig   `koanf:"metadata"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Breaker    BreakerConfig    `koanf:"breaker"`
}

type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	Environment       string        `koanf:"environment"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`

	// RateLimitRequests caps POST /api/recommendations per client IP and window; 0 disables it.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction reports whether error details must be hidden from clients.
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Environment, EnvProduction)
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

type CompletionConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Referer string        `koanf:"referer"`
	Title   string        `koanf:"title"`
	Timeout time.Duration `koanf:"timeout"`
}

// KeyConfigured reports whether a usable API key is present.
func (c CompletionConfig) KeyConfigured() bool {
	return openrouter.KeyConfigured(c.APIKey)
}

type MetadataConfig struct {
	URL      string        `koanf:"url"`
	Timeout  time.Duration `koanf:"timeout"`
	Interval time.Duration `koanf:"interval"`

	// RequestsPerMinute caps outbound AniList requests across all requests.
	RequestsPerMinute int `koanf:"requests_per_minute"`
}

type CatalogConfig struct {
	Source string `koanf:"source"`
	Path   string `koanf:"path"`
	DBPath string `koanf:"db_path"`
}

type BandConfig struct {
	Min float64 `koanf:"min"`
	Max float64 `koanf:"max"`
}

type PipelineConfig struct {
	Generator        string        `koanf:"generator"`
	OnExhaustion     string        `koanf:"on_exhaustion"`
	FilterUnscored   bool          `koanf:"filter_unscored"`
	MaxRetries       int           `koanf:"max_retries"`
	RetryBackoff     time.Duration `koanf:"retry_backoff"`
	Temperature      BandConfig    `koanf:"temperature"`
	TopP             BandConfig    `koanf:"top_p"`
	FrequencyPenalty BandConfig    `koanf:"frequency_penalty"`
	PresencePenalty  BandConfig    `koanf:"presence_penalty"`
}

// Policy converts the pipeline section into the services policy, keeping
// the canonical result and threshold counts.
func (p PipelineConfig) Policy() services.Policy {
	policy := services.DefaultPolicy()
	policy.MaxRetries = p.MaxRetries
	policy.RetryBackoff = p.RetryBackoff
	policy.OnExhaustion = services.ExhaustionPolicy(p.OnExhaustion)
	policy.FilterUnscored = p.FilterUnscored
	policy.Sampling = services.SamplingBands{
		Temperature:      services.Band(p.Temperature),
		TopP:             services.Band(p.TopP),
		FrequencyPenalty: services.Band(p.FrequencyPenalty),
		PresencePenalty:  services.Band(p.PresencePenalty),
	}
	return policy
}

// Mode returns the configured generator.
func (p PipelineConfig) Mode() services.GeneratorMode {
	return services.GeneratorMode(p.Generator)
}

type BreakerConfig struct {
	Failures uint32        `koanf:"failures"`
	Cooldown time.Duration `koanf:"cooldown"`
}

func defaultConfig() *Config {
	policy := services.DefaultPolicy()
	return &Config{
		Server: ServerConfig{
			Port:              5000,
			Host:              "",
			Environment:       EnvDevelopment,
			ReadHeaderTimeout: 15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 30,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Completion: CompletionConfig{
			BaseURL: openrouter.DefaultBaseURL,
			Model:   openrouter.DefaultModel,
			Referer: "http://localhost:5000",
			Title:   openrouter.DefaultTitle,
			Timeout: openrouter.DefaultTimeout,
		},
		Metadata: MetadataConfig{
			URL:               anilist.DefaultURL,
			Timeout:           anilist.DefaultTimeout,
			Interval:          services.DefaultLookupInterval,
			RequestsPerMinute: anilist.DefaultRequestsPerMinute,
		},
		Catalog: CatalogConfig{
			Source: CatalogCSV,
			Path:   csvcatalog.DefaultPath,
			DBPath: "catalog.db",
		},
		Pipeline: PipelineConfig{
			Generator:        string(services.GeneratorLLM),
			OnExhaustion:     string(policy.OnExhaustion),
			FilterUnscored:   policy.FilterUnscored,
			MaxRetries:       policy.MaxRetries,
			RetryBackoff:     policy.RetryBackoff,
			Temperature:      BandConfig(policy.Sampling.Temperature),
			TopP:             BandConfig(policy.Sampling.TopP),
			FrequencyPenalty: BandConfig(policy.Sampling.FrequencyPenalty),
			PresencePenalty:  BandConfig(policy.Sampling.PresencePenalty),
		},
		Breaker: BreakerConfig{
			Failures: 5,
			Cooldown: 30 * time.Second,
		},
	}
}
