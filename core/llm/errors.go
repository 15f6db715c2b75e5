package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded reports the provider's 429 for one credential.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrServiceUnavailable reports 503 responses that survived the retry budget.
	ErrServiceUnavailable = errors.New("provider unavailable")

	// ErrTimeout reports transport timeouts that survived the retry budget.
	ErrTimeout = errors.New("provider timed out")

	// ErrNoCandidate reports a 200 response whose body carried no answer text,
	// typically a filtered or empty candidate list.
	ErrNoCandidate = errors.New("response contained no candidate text")

	// ErrRateLimitExceeded reports that every model/credential combination
	// was rejected with at least one quota failure among them.
	ErrRateLimitExceeded = errors.New("all credentials rate limited")
)

// APIError is a non-retryable provider response other than 200/429/503.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// AllAttemptsFailedError reports an exhausted fallback sweep with no quota
// failures observed.
type AllAttemptsFailedError struct {
	Attempts int
	Last     error
}

func (e *AllAttemptsFailedError) Error() string {
	return fmt.Sprintf("all %d generation attempts failed: %v", e.Attempts, e.Last)
}

func (e *AllAttemptsFailedError) Unwrap() error {
	return e.Last
}
