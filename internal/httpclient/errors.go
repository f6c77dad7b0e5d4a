package httpclient

import "fmt"

// ProviderHTTPError wraps a non-2xx response from a provider's wire API.
// It carries enough of the raw response to let the caller classify the
// failure (auth, rate limit, malformed request, server error) without
// this package making a retry decision on the caller's behalf.
type ProviderHTTPError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderHTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
}

func (e *ProviderHTTPError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the status code is conventionally
// transient. The runtime does not act on this itself (retry-with-backoff
// is a non-goal) — it is surfaced for callers that want to log or
// classify the failure.
func (e *ProviderHTTPError) Retryable() bool {
	switch e.StatusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
