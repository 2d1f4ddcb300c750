package llm

import (
	"errors"
	"fmt"
)

// APIError is the error object OpenAI-compatible endpoints embed in
// response bodies.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (type: %s, code: %s)", e.Message, e.Type, e.Code)
}

// StatusError is the one error kind callers inspect for provider
// failures. Connect errors, timeouts, non-2xx statuses, and in-body API
// errors all surface as a *StatusError; StatusCode is 0 when the failure
// happened before a response arrived.
type StatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm request failed: %s", e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsStatusError reports whether err is (or wraps) a provider failure.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
