package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for retry and reporting decisions.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindEnvironment       Kind = "environment"
	KindNavigation        Kind = "navigation"
	KindNavigationTimeout Kind = "navigation_timeout"
	KindExtraction        Kind = "extraction"
	KindDownload          Kind = "download"
	KindNetwork           Kind = "network"
	KindRateLimit         Kind = "rate_limit"
	KindNotFound          Kind = "not_found"
	KindParsing           Kind = "parsing"
	KindServerError       Kind = "server_error"
	KindUnknown           Kind = "unknown"
)

// Error carries a classification alongside the message. Code holds the HTTP
// status when the error originated from a response, zero otherwise.
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error while keeping it unwrappable.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from an error chain. Errors that carry
// no classification report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether errors of the given kind are worth retrying.
// Extraction errors are retryable: an empty result with no recognized
// empty-state signature usually means the page had not finished rendering.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNavigation, KindNavigationTimeout, KindExtraction,
		KindDownload, KindNetwork, KindRateLimit, KindServerError:
		return true
	case KindConfiguration, KindEnvironment, KindNotFound, KindParsing:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status indicates a
// transient condition.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error, no response
		return true
	case http.StatusTooManyRequests:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// ClassifyStatus maps an HTTP status code onto an error kind.
func ClassifyStatus(statusCode int) Kind {
	switch {
	case statusCode == 0:
		return KindNetwork
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}
