package llm

import (
	"fmt"

	"github.com/tessera-ai/reasonkit/internal/httpclient"
)

// Kind classifies an llm package error per spec's error taxonomy (§7).
type Kind string

const (
	KindUnknownProvider      Kind = "unknown_provider"
	KindDuplicateProvider    Kind = "duplicate_provider"
	KindMissingAPIKey        Kind = "missing_api_key"
	KindProviderHTTPError    Kind = "provider_http_error"
	KindProviderProtocolError Kind = "provider_protocol_error"
	KindPreconditionViolated Kind = "precondition_violated"
)

// Error is the typed error returned by registry and adapter operations.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, provider, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Err: cause}
}

func errUnknownProvider(id string) error {
	return newErr(KindUnknownProvider, id, "no provider registered with this id", nil)
}

func errDuplicateProvider(id string) error {
	return newErr(KindDuplicateProvider, id, "a provider with this id is already registered", nil)
}

func errMissingAPIKey(id, envVar string) error {
	return newErr(KindMissingAPIKey, id, fmt.Sprintf("environment variable %s is not set", envVar), nil)
}

// errProviderHTTP wraps a non-2xx provider response as both the llm
// package's typed Error (for Kind-based dispatch) and the underlying
// httpclient.ProviderHTTPError (for callers that want Retryable()
// classification via errors.As, without this package acting on it).
func errProviderHTTP(provider string, statusCode int, body string) error {
	cause := &httpclient.ProviderHTTPError{Provider: provider, StatusCode: statusCode, Body: body}
	return newErr(KindProviderHTTPError, provider, fmt.Sprintf("HTTP %d: %s", statusCode, body), cause)
}

func errProviderProtocol(provider string, cause error) error {
	return newErr(KindProviderProtocolError, provider, cause.Error(), cause)
}

func errPrecondition(provider, message string) error {
	return newErr(KindPreconditionViolated, provider, message, nil)
}
