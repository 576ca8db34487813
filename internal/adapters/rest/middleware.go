package rest

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
	"github.com/ewilliams-labs/animeterminal/internal/metrics"
)

// requestLogger copies chi's request ID into the logging context, echoes it
// back to the client and writes one access log line and metric per request.
// It must run after middleware.RequestID.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := middleware.GetReqID(r.Context())
		if id == "" {
			id = logging.NewRequestID()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		r = r.WithContext(logging.ContextWithRequestID(r.Context(), id))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, route, status, elapsed)

		logging.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}

// recoverer turns a handler panic into an UNEXPECTED_ERROR response.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logging.Ctx(r.Context()).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("rest: recovered from panic")

			resp := errorResponse{
				Error:     string(domain.KindUnexpected),
				Message:   msgUnexpected,
				RequestID: logging.RequestIDFromContext(r.Context()),
			}
			if !h.production {
				resp.Details = panicDetail(rec)
			}
			writeJSON(w, http.StatusInternalServerError, resp)
		}()
		next.ServeHTTP(w, r)
	})
}

// preflight answers every OPTIONS request that the CORS handler let through
// with an empty 200.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func panicDetail(rec any) string {
	switch v := rec.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return "panic"
	}
}
