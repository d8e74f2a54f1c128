package errors

import (
	stderrors "errors"
	"fmt"
)

// DocError is the structured error carried across package boundaries.
// The code drives category, severity, and retry classification; details
// and the suggestion feed CLI and log output.
type DocError struct {
	Code       string            // banded code, "ERR_201_FILE_NOT_FOUND" style
	Message    string            // human-readable description
	Category   Category          // owning subsystem, derived from the code
	Severity   Severity          // fatal, error, or warning
	Details    map[string]string // extra context key-value pairs
	Cause      error             // wrapped underlying error
	Retryable  bool              // transient failure worth retrying
	Suggestion string            // actionable hint shown to the user
}

func (e *DocError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is matches DocErrors by code so errors.Is works across instances.
func (e *DocError) Is(target error) bool {
	t, ok := target.(*DocError)
	return ok && e.Code == t.Code
}

// WithDetail adds a key-value detail. Chainable.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the user-facing hint. Chainable.
func (e *DocError) WithSuggestion(suggestion string) *DocError {
	e.Suggestion = suggestion
	return e
}

// New creates a DocError; category, severity, and the retryable flag
// are derived from the code.
func New(code, message string, cause error) *DocError {
	return &DocError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocError from an existing error, reusing its message.
// Returns nil for a nil error.
func Wrap(code string, err error) *DocError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError reports a bad or missing configuration.
func ConfigError(message string, cause error) *DocError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError reports a local file access failure.
func IOError(message string, cause error) *DocError {
	return New(ErrCodeFileNotFound, message, cause)
}

// NetworkError reports a remote source failure. These come back
// retryable.
func NetworkError(message string, cause error) *DocError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// ValidationError rejects caller input.
func ValidationError(message string, cause error) *DocError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError reports a bug or unexpected state.
func InternalError(message string, cause error) *DocError {
	return New(ErrCodeInternal, message, cause)
}

// ExtractError reports a text extraction failure. These stay contained
// at the per-document boundary.
func ExtractError(message string, cause error) *DocError {
	return New(ErrCodeExtractFailed, message, cause)
}

// StoreError reports an index database failure.
func StoreError(message string, cause error) *DocError {
	return New(ErrCodeStoreWrite, message, cause)
}

// NotFoundError reports an unknown document identifier.
func NotFoundError(message string) *DocError {
	return New(ErrCodeDocNotFound, message, nil)
}

// asDocError finds the first DocError in the chain.
func asDocError(err error) (*DocError, bool) {
	var de *DocError
	ok := stderrors.As(err, &de)
	return de, ok
}

// IsRetryable reports whether the error chain contains a retryable
// DocError.
func IsRetryable(err error) bool {
	de, ok := asDocError(err)
	return ok && de.Retryable
}

// IsFatal reports whether the error chain contains a fatal DocError.
// Fatal errors abort the current operation.
func IsFatal(err error) bool {
	de, ok := asDocError(err)
	return ok && de.Severity == SeverityFatal
}

// GetCode extracts the error code, or "" for non-DocErrors.
func GetCode(err error) string {
	if de, ok := asDocError(err); ok {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category, or "" for non-DocErrors.
func GetCategory(err error) Category {
	if de, ok := asDocError(err); ok {
		return de.Category
	}
	return ""
}
