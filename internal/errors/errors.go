package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	// ErrConfig covers unreadable or invalid configuration.
	ErrConfig = "CONFIG"
	// ErrResolve means the target address or user could not be determined.
	ErrResolve = "RESOLVE"
	// ErrAuth means every credential in the auth chain was rejected.
	ErrAuth = "AUTH"
	// ErrTransport covers channel, connection and remote command failures.
	ErrTransport = "TRANSPORT"
	// ErrParse marks command output that did not have the expected shape.
	ErrParse = "PARSE"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrTransport code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrTransport,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Short returns the message and cause on one line, without the suggestion.
// Used where errors are shown inside a single log line.
func (e *Error) Short() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + Summary(e.Cause)
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// IsFatal reports whether err should stop the program rather than be
// absorbed into the telemetry stream.
func IsFatal(err error) bool {
	return IsCode(err, ErrResolve) || IsCode(err, ErrAuth) || IsCode(err, ErrConfig)
}

// Summary flattens err into a single line suitable for a log entry.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Short()
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}

// ExitError carries the exit status of a remote command that ran to
// completion but reported failure.
type ExitError struct {
	Code   int
	Stderr string
}

// NewExitError creates an ExitError for the given status.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return fmt.Sprintf("exit code %d: %s", e.Code, e.Stderr)
}

// GetExitCode extracts the exit status from err if it wraps an ExitError.
func GetExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
