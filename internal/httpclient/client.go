// Package httpclient provides the scoped HTTP client used by provider
// adapters to talk to remote inference backends.
//
// Unlike a general-purpose HTTP helper, this client makes exactly one
// attempt per request: provider failures are a caller-visible event,
// never retried internally (see the reasoning engine's no-retry policy).
// What it does provide is the "scoped resource" lifecycle the provider
// contract requires: Open yields a client bound to an overall timeout;
// cancelling a request's context terminates it, and Close releases the
// client's idle connections.
package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// DefaultTimeout is the overall per-request timeout applied when none is
// configured explicitly.
const DefaultTimeout = 120 * time.Second

// TLSConfig holds TLS configuration for outbound requests to a provider.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification. Development only.
	InsecureSkipVerify bool

	// CACertificate is a path to a PEM-encoded custom CA bundle.
	CACertificate string
}

func configureTLS(cfg *TLSConfig) (*http.Transport, error) {
	transport := &http.Transport{TLSClientConfig: &tls.Config{}}
	if cfg == nil {
		return transport, nil
	}

	if cfg.CACertificate != "" {
		pem, err := os.ReadFile(cfg.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate %s: %w", cfg.CACertificate, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse CA certificate %s", cfg.CACertificate)
		}
		transport.TLSClientConfig.RootCAs = pool
	}

	if cfg.InsecureSkipVerify {
		slog.Warn("TLS certificate verification disabled for provider client", "insecure_skip_verify", true)
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	return transport, nil
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the overall per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTLSConfig applies custom TLS settings to the underlying transport.
func WithTLSConfig(cfg *TLSConfig) Option {
	return func(c *Client) {
		transport, err := configureTLS(cfg)
		if err != nil {
			slog.Warn("failed to configure TLS for provider client, using default transport", "error", err)
			return
		}
		c.http.Transport = transport
	}
}

// Client is a scoped HTTP client: it is opened for the lifetime of a
// provider call and closed on every exit path, including cancellation.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// Open acquires a new scoped client. Callers MUST call Close on every
// exit path. Do on a nil client returns ErrNoScope; a provider adapter
// invoked without an open client returns a precondition_violated error.
func Open(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Timeout = c.timeout
	return c
}

// Close releases the client's pooled idle connections. It does not
// interrupt a request already in flight; that request ends through its
// context or the client timeout. Safe to call more than once.
func (c *Client) Close() error {
	if c == nil || c.http == nil {
		return nil
	}
	c.http.CloseIdleConnections()
	return nil
}

// Do executes req exactly once and returns the raw response. Non-2xx
// responses are returned as-is (not translated to an error); the caller
// decides how to classify the status code.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c == nil || c.http == nil {
		return nil, ErrNoScope
	}
	req = req.WithContext(ctx)
	return c.http.Do(req)
}

// ErrNoScope is returned when an adapter method is invoked without an
// open HTTP client scope.
var ErrNoScope = fmt.Errorf("httpclient: no open client scope (precondition_violated)")
