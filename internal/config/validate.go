package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ewilliams-labs/animeterminal/internal/core/services"
)

// normalize trims and lower-cases the enum-valued settings.
func (c *Config) normalize() {
	c.Server.Environment = strings.ToLower(strings.TrimSpace(c.Server.Environment))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Catalog.Source = strings.ToLower(strings.TrimSpace(c.Catalog.Source))
	c.Pipeline.Generator = strings.ToLower(strings.TrimSpace(c.Pipeline.Generator))
	c.Pipeline.OnExhaustion = strings.ToLower(strings.TrimSpace(c.Pipeline.OnExhaustion))
	c.Completion.APIKey = strings.TrimSpace(c.Completion.APIKey)
}

// Validate checks the configuration for values the server cannot run with.
// A missing completion API key is not an error.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateClients(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	return c.validatePipeline()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadHeaderTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.RateLimitRequests < 0 {
		return errors.New("server.rate_limit_requests must not be negative")
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		return errors.New("server.rate_limit_window must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled", "off", "":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateClients() error {
	if c.Completion.Timeout <= 0 {
		return errors.New("completion.timeout must be positive")
	}
	if c.Metadata.Timeout <= 0 {
		return errors.New("metadata.timeout must be positive")
	}
	if c.Metadata.Interval < 0 {
		return errors.New("metadata.interval must not be negative")
	}
	if c.Metadata.RequestsPerMinute <= 0 {
		return errors.New("metadata.requests_per_minute must be positive")
	}
	if c.Breaker.Failures == 0 || c.Breaker.Cooldown <= 0 {
		return errors.New("breaker.failures and breaker.cooldown must be positive")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Source {
	case CatalogCSV:
		if c.Catalog.Path == "" {
			return errors.New("catalog.path is required for the csv source")
		}
	case CatalogSQLite:
		if c.Catalog.DBPath == "" {
			return errors.New("catalog.db_path is required for the sqlite source")
		}
	default:
		return fmt.Errorf("catalog.source must be csv or sqlite, got %q", c.Catalog.Source)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.Mode() {
	case services.GeneratorLLM, services.GeneratorCatalog:
	default:
		return fmt.Errorf("pipeline.generator must be llm or catalog, got %q", c.Pipeline.Generator)
	}
	if err := c.Pipeline.Policy().Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}
