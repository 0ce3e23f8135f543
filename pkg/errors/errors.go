package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the class of failure a harvest step ran into
type ErrorType string

const (
	// Remote failures: retried by the batch fetcher, the unit is skipped once
	// attempts run out
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeProcessing  ErrorType = "processing"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeClientError ErrorType = "client_error"

	// Rejected credential: stops the sweep without advancing it
	ErrorTypeAuth ErrorType = "auth"

	// Local failures
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeLocalIO           ErrorType = "local_io"
	ErrorTypeCorruptCheckpoint ErrorType = "corrupt_checkpoint"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a classified harvest error. Op names the operation that failed
// (for example "fetch", "sink.append", "checkpoint.save").
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s error (code %d): %s", e.Op, e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error
func New(errorType ErrorType, op, message string) *Error {
	return &Error{Type: errorType, Op: op, Message: message}
}

// Wrap classifies err under the given type and operation
func Wrap(errorType ErrorType, op string, err error) *Error {
	return &Error{Type: errorType, Op: op, Err: err}
}

// LocalIO marks a checkpoint or sink write failure. These stop the sweep.
func LocalIO(op string, err error) *Error {
	return Wrap(ErrorTypeLocalIO, op, err)
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err is not classified
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err is a classified error of the given type
func Is(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// IsRetryable reports whether a failed request is worth another attempt.
// Every remote failure is, except a rejected credential.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeProcessing, ErrorTypeRateLimit, ErrorTypeServerError,
		ErrorTypeNotFound, ErrorTypeClientError:
		return true
	default:
		return false
	}
}

// IsFatal reports whether an error must stop the sweep instead of skipping
// the unit: a rejected token fails every later unit too, and a local write
// failure would break the checkpoint contract.
func IsFatal(errorType ErrorType) bool {
	return errorType == ErrorTypeAuth || errorType == ErrorTypeLocalIO
}

// ClassifyStatus maps a non-success HTTP status code to an ErrorType.
// Returns "" for 200 responses.
func ClassifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusOK:
		return ""
	case statusCode == http.StatusAccepted:
		return ErrorTypeProcessing
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorTypeAuth
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode >= 400:
		return ErrorTypeClientError
	case statusCode >= 200 && statusCode < 300:
		// Other 2xx bodies are not trusted as a full result
		return ErrorTypeProcessing
	default:
		return ErrorTypeUnknown
	}
}
