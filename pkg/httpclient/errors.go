package httpclient

import (
	"fmt"
	"time"
)

// RetryableError reports a request that failed after exhausting its
// retry budget, carrying the last status and the suggested wait.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable marks the error as safe to retry later.
func (e *RetryableError) IsRetryable() bool {
	return true
}
