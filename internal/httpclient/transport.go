package httpclient

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// loggingTransport wraps an http.RoundTripper to log each attempt, inject the
// User-Agent header, and record metrics. URLs are logged without query or
// fragment; credentials travel in headers and headers are never logged.
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
	logger    zerolog.Logger
	metrics   *Metrics
}

func newLoggingTransport(base http.RoundTripper, cfg Config) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{
		base:      base,
		userAgent: cfg.UserAgent,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	logURL := *req.URL
	logURL.RawQuery = ""
	logURL.Fragment = ""

	if err != nil {
		t.logger.Warn().
			Str("method", req.Method).
			Str("url", logURL.String()).
			Int64("duration_ms", duration.Milliseconds()).
			Err(err).
			Msg("http request failed")
		if t.metrics != nil {
			t.metrics.RecordRequest(req.URL.Path, "error", duration)
		}
		return resp, err
	}

	evt := t.logger.Debug()
	if resp.StatusCode >= 400 {
		evt = t.logger.Warn()
	}
	evt.
		Str("method", req.Method).
		Str("url", logURL.String()).
		Int("status", resp.StatusCode).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("http request")

	if t.metrics != nil {
		t.metrics.RecordRequest(req.URL.Path, strconv.Itoa(resp.StatusCode), duration)
	}

	return resp, nil
}

// tracingTransport wraps the base transport with OpenTelemetry client spans.
// It sits below the retry layer so each attempt produces its own span.
func tracingTransport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base)
}
