package llm

import (
	"net/http"
	"strconv"
	"time"
)

// BackoffConfig bounds the delay between retries of a single credential.
type BackoffConfig struct {
	Base time.Duration
	Max  time.Duration
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base: time.Second,
		Max:  8 * time.Second,
	}
}

// Delay computes the wait before retry number attempt: min(base * 2^attempt, max).
func (c BackoffConfig) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := c.Base << attempt
	if d > c.Max || d <= 0 {
		return c.Max
	}
	return d
}

// DelayFor honors a provider Retry-After header when present, otherwise
// falls back to the computed exponential delay.
func (c BackoffConfig) DelayFor(attempt int, headers http.Header) time.Duration {
	if ra := retryAfter(headers); ra > 0 {
		return ra
	}
	return c.Delay(attempt)
}

func retryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		return time.Until(t)
	}
	return 0
}
