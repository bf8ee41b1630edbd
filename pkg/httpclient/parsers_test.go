package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseOpenAIHeaders(t *testing.T) {
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
			name: "reset_and_remaining",
			headers: map[string]string{
				"x-ratelimit-reset-tokens":       "1700000000",
				"x-ratelimit-remaining-requests": "42",
				"x-ratelimit-remaining-tokens":   "9000",
			},
			expected: RateLimitInfo{
				ResetTime:         1700000000,
				RequestsRemaining: 42,
				TokensRemaining:   9000,
			},
		},
		{
			name: "invalid_retry_after_ignored",
			headers: map[string]string{
				"Retry-After": "soon",
			},
			expected: RateLimitInfo{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}
			got := ParseOpenAIHeaders(headers)
			if got != tt.expected {
				t.Errorf("ParseOpenAIHeaders() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestParseRetryAfterHeader(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "5")

	got := ParseRetryAfterHeader(headers)
	if got.RetryAfter != 5*time.Second {
		t.Errorf("RetryAfter = %v, want 5s", got.RetryAfter)
	}

	empty := ParseRetryAfterHeader(http.Header{})
	if empty.RetryAfter != 0 {
		t.Errorf("RetryAfter = %v, want 0", empty.RetryAfter)
	}
}
