// Package rest exposes the recommendation service over HTTP.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewilliams-labs/animeterminal/internal/core/services"
)

const healthMessage = "Anime Recommendation Terminal API is running"

// Options configures the HTTP surface. Zero values are usable.
type Options struct {
	Environment string
	Production  bool
	// APIKeyConfigured and APIKeyLength are reported by the health check.
	// The key itself never reaches this package.
	APIKeyConfigured bool
	APIKeyLength     int

	CORSOrigins []string
	// RateLimitRequests per RateLimitWindow and client IP on the
	// recommendation endpoint; 0 disables the limit.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc        *services.Orchestrator
	opts       Options
	production bool
	validate   *validator.Validate
	router     chi.Router
	now        func() time.Time
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Orchestrator, opts Options) *Handler {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	h := &Handler{
		svc:        svc,
		opts:       opts,
		production: opts.Production,
		validate:   newValidator(),
		router:     chi.NewRouter(),
		now:        time.Now,
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := h.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(h.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(preflight)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.With(h.rateLimit()).Post("/recommendations", h.Recommend)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

func (h *Handler) rateLimit() func(http.Handler) http.Handler {
	if h.opts.RateLimitRequests <= 0 || h.opts.RateLimitWindow <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		h.opts.RateLimitRequests,
		h.opts.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusTooManyRequests, codeRateLimited, "Too many requests. Please slow down.")
		}),
	)
}

type healthResponse struct {
	Status           string    `json:"status"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
	Environment      string    `json:"environment"`
	Generator        string    `json:"generator"`
	APIKeyConfigured bool      `json:"apiKeyConfigured"`
	APIKeyLength     int       `json:"apiKeyLength"`
	CatalogLoaded    bool      `json:"catalogLoaded"`
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "OK",
		Message:          healthMessage,
		Timestamp:        h.now().UTC(),
		Environment:      h.opts.Environment,
		Generator:        string(h.svc.Mode()),
		APIKeyConfigured: h.opts.APIKeyConfigured,
		APIKeyLength:     h.opts.APIKeyLength,
		CatalogLoaded:    h.svc.CatalogLoaded(),
	})
}
