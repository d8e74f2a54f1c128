package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// coerce returns the chain's DocError, or wraps a plain error as
// internal so every formatter has the full structure to work with.
func coerce(err error) *DocError {
	if de, ok := asDocError(err); ok {
		return de
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI renders an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	de := coerce(err)

	lines := []string{fmt.Sprintf("Error: %s", de.Message)}
	if de.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  Hint: %s", de.Suggestion))
	}
	lines = append(lines, fmt.Sprintf("  Code: %s", de.Code))
	return strings.Join(lines, "\n") + "\n"
}

// jsonError is the wire shape FormatJSON marshals.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error for machine
// consumption.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	de := coerce(err)

	je := jsonError{
		Code:       de.Code,
		Message:    de.Message,
		Category:   string(de.Category),
		Severity:   string(de.Severity),
		Details:    de.Details,
		Suggestion: de.Suggestion,
		Retryable:  de.Retryable,
	}
	if de.Cause != nil {
		je.Cause = de.Cause.Error()
	}
	return json.Marshal(je)
}

// FormatForLog flattens an error into slog attribute pairs. Plain
// errors get a single "error" field rather than a synthetic code.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}
	de, ok := asDocError(err)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	attrs := map[string]any{
		"error_code": de.Code,
		"message":    de.Message,
		"category":   string(de.Category),
		"severity":   string(de.Severity),
		"retryable":  de.Retryable,
	}
	if de.Cause != nil {
		attrs["cause"] = de.Cause.Error()
	}
	if de.Suggestion != "" {
		attrs["suggestion"] = de.Suggestion
	}
	for k, v := range de.Details {
		attrs["detail_"+k] = v
	}
	return attrs
}
