package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRateLimitHeaders(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected RateLimitInfo
	}{
		{
			name:     "empty_headers",
			headers:  map[string]string{},
			expected: RateLimitInfo{},
		},
		{
			name: "retry_after_seconds",
			headers: map[string]string{
				"Retry-After": "30",
			},
			expected: RateLimitInfo{RetryAfter: 30 * time.Second},
		},
		{
			name: "retry_after_invalid",
			headers: map[string]string{
				"Retry-After": "invalid",
			},
			expected: RateLimitInfo{},
		},
		{
			name: "token_reset_time",
			headers: map[string]string{
				"x-ratelimit-reset-tokens": "1640995200",
			},
			expected: RateLimitInfo{ResetTime: 1640995200},
		},
		{
			name: "token_reset_wins_over_request_reset",
			headers: map[string]string{
				"x-ratelimit-reset-tokens":   "1640995200",
				"x-ratelimit-reset-requests": "1640995300",
			},
			expected: RateLimitInfo{ResetTime: 1640995200},
		},
		{
			name: "remaining_counters",
			headers: map[string]string{
				"x-ratelimit-remaining-requests": "99",
				"x-ratelimit-remaining-tokens":   "149000",
			},
			expected: RateLimitInfo{RequestsRemaining: 99, TokensRemaining: 149000},
		},
		{
			name: "all_together",
			headers: map[string]string{
				"Retry-After":                    "10",
				"x-ratelimit-reset-tokens":       "1640995200",
				"x-ratelimit-remaining-requests": "5",
			},
			expected: RateLimitInfo{
				RetryAfter:        10 * time.Second,
				ResetTime:         1640995200,
				RequestsRemaining: 5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}

			got := ParseRateLimitHeaders(headers)
			if got != tt.expected {
				t.Errorf("ParseRateLimitHeaders() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}
