package rest

import (
	"errors"
	"mime"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
)

// Error codes produced by the HTTP layer itself. Pipeline failures use domain.ErrorKind.
const (
	codeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	codeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	codeNotFound             = "NOT_FOUND"
	codeRateLimited          = "RATE_LIMITED"
)

const msgUnexpected = "An unexpected error occurred. Please try again."

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindInputRequired: http.StatusBadRequest,
	domain.KindValidation:    http.StatusBadRequest,
	domain.KindConfiguration: http.StatusServiceUnavailable,
	domain.KindAIConnection:  http.StatusServiceUnavailable,
	domain.KindMetadata:      http.StatusServiceUnavailable,
	domain.KindDatabase:      http.StatusServiceUnavailable,
	domain.KindNoMatches:     http.StatusNotFound,
	domain.KindSystem:        http.StatusServiceUnavailable,
	domain.KindUnexpected:    http.StatusInternalServerError,
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind domain.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("rest: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error:     code,
		Message:   message,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}

// writePipelineError renders a pipeline failure. Errors that carry no kind
// become UNEXPECTED_ERROR. Details are withheld in production.
func (h *Handler) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	kind, message := domain.KindUnexpected, msgUnexpected
	var de *domain.Error
	if errors.As(err, &de) {
		kind, message = de.Kind, de.Message
	}
	resp := errorResponse{
		Error:     string(kind),
		Message:   message,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
	if !h.production {
		resp.Details = err.Error()
	}
	writeJSON(w, statusForKind(kind), resp)
}

func isJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
