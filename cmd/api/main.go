package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ewilliams-labs/animeterminal/internal/adapters/anilist"
	"github.com/ewilliams-labs/animeterminal/internal/adapters/csvcatalog"
	"github.com/ewilliams-labs/animeterminal/internal/adapters/openrouter"
	"github.com/ewilliams-labs/animeterminal/internal/adapters/rest"
	"github.com/ewilliams-labs/animeterminal/internal/adapters/sqlite"
	"github.com/ewilliams-labs/animeterminal/internal/config"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
	"github.com/ewilliams-labs/animeterminal/internal/core/services"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
)

func main() {
	// 1. Configuration: defaults, optional YAML file, environment.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	// The key is never logged, only whether it is usable and its length.
	keyLen := len(cfg.Completion.APIKey)
	if !cfg.Completion.KeyConfigured() {
		logging.Warn().Int("key_length", keyLen).Msg("OPENROUTER_API_KEY is not set, title generation will use fallback lists")
	}

	// 2. Driven adapters.
	completion := openrouter.NewClient(openrouter.Config{
		BaseURL:         cfg.Completion.BaseURL,
		APIKey:          cfg.Completion.APIKey,
		Model:           cfg.Completion.Model,
		Referer:         cfg.Completion.Referer,
		Title:           cfg.Completion.Title,
		Timeout:         cfg.Completion.Timeout,
		BreakerFailures: cfg.Breaker.Failures,
		BreakerCooldown: cfg.Breaker.Cooldown,
	})
	metadata := anilist.NewClient(anilist.Config{
		URL:               cfg.Metadata.URL,
		Timeout:           cfg.Metadata.Timeout,
		RequestsPerMinute: cfg.Metadata.RequestsPerMinute,
		BreakerFailures:   cfg.Breaker.Failures,
		BreakerCooldown:   cfg.Breaker.Cooldown,
	})

	var catalog ports.CatalogSource
	catalogPath := cfg.Catalog.DBPath
	switch cfg.Catalog.Source {
	case config.CatalogSQLite:
		db, err := sqlite.NewAdapter(cfg.Catalog.DBPath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Catalog.DBPath).Msg("failed to open catalog database")
		}
		defer db.Close()
		catalog = db
	default:
		src := csvcatalog.NewSource(cfg.Catalog.Path)
		catalogPath = src.Path()
		catalog = src
	}

	// 3. Core service.
	svc := services.NewOrchestrator(completion, metadata, catalog, services.Options{
		Generator:      cfg.Pipeline.Mode(),
		Policy:         cfg.Pipeline.Policy(),
		LookupInterval: cfg.Metadata.Interval,
		LookupTimeout:  cfg.Metadata.Timeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if svc.Mode() == services.GeneratorCatalog {
		// A failed warm-up is retried on the first request.
		if err := svc.WarmCatalog(ctx); err != nil {
			logging.Error().Err(err).Str("source", cfg.Catalog.Source).Str("path", catalogPath).Msg("catalog warm-up failed")
		} else {
			logging.Info().Str("source", cfg.Catalog.Source).Str("path", catalogPath).Msg("catalog warmed")
		}
	}

	// 4. Driving adapter.
	handler := rest.NewHandler(svc, rest.Options{
		Environment:       cfg.Server.Environment,
		Production:        cfg.Server.IsProduction(),
		APIKeyConfigured:  cfg.Completion.KeyConfigured(),
		APIKeyLength:      keyLen,
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	logging.Info().
		Str("addr", srv.Addr).
		Str("environment", cfg.Server.Environment).
		Str("generator", string(svc.Mode())).
		Bool("api_key_configured", cfg.Completion.KeyConfigured()).
		Msg("anime recommendation API is running")

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error().Err(err).Msg("server failed")
			return
		}
	case <-ctx.Done():
		logging.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("shutdown error")
		}
	}
}
