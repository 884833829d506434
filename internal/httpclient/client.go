// Package httpclient builds the HTTP client the SDK sends inspection traffic
// through. The client composes transport layers to provide:
//   - Retries with exponential backoff for transient failures
//   - Per-attempt structured logging
//   - User-Agent injection
//   - Optional OpenTelemetry spans and Prometheus metrics
//   - TLS 1.2 minimum and connection pooling
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// New creates an HTTP client from the given configuration. The returned
// client is safe for concurrent use; all mutable state lives in the pooled
// base transport.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseTransport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	// Tracing sits closest to the wire so each attempt gets its own span.
	var rt http.RoundTripper = baseTransport
	if cfg.EnableTracing {
		rt = tracingTransport(rt)
	}

	// Logging next, so retried attempts are logged individually.
	rt = newLoggingTransport(rt, cfg)

	if cfg.MaxRetries > 0 {
		rt = newRetryTransport(rt, cfg)
	}

	// No client-level timeout: the caller attaches a deadline to each
	// request's context, so per call overrides are not capped here.
	return &http.Client{
		Transport: rt,
	}, nil
}
