package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInputRequired        = errors.New("domain: at least one preference is required")
	ErrNotConfigured        = errors.New("domain: completion service credential is not configured")
	ErrAIUnavailable        = errors.New("domain: title generation exhausted its retries")
	ErrInsufficientMetadata = errors.New("domain: insufficient metadata records")
	ErrCatalogUnavailable   = errors.New("domain: catalog could not be loaded")
	ErrNoMatches            = errors.New("domain: no catalog entry matched the preferences")
	ErrAllFallbacksFailed   = errors.New("domain: every fallback layer failed")
)

// ErrorKind is the user-facing classification of a pipeline failure.
type ErrorKind string

const (
	KindInputRequired ErrorKind = "INPUT_REQUIRED"
	KindValidation    ErrorKind = "VALIDATION_ERROR"
	KindConfiguration ErrorKind = "CONFIGURATION_ERROR"
	KindAIConnection  ErrorKind = "AI_CONNECTION_ERROR"
	KindMetadata      ErrorKind = "ANILIST_DB_ERROR"
	KindDatabase      ErrorKind = "DATABASE_ERROR"
	KindNoMatches     ErrorKind = "NO_MATCHES_FOUND"
	KindSystem        ErrorKind = "SYSTEM_ERROR"
	KindUnexpected    ErrorKind = "UNEXPECTED_ERROR"
)

// Error carries an ErrorKind and a message safe to show to users.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError wraps err with a kind and a user-facing message.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind of err, or KindUnexpected when err is not a *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}
