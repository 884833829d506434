package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryTransport wraps an http.RoundTripper to retry transient failures. A
// request is eligible when its method is in RetryMethods and, if it has a
// body, the body can be replayed via GetBody. Everything else passes through
// and is sent exactly once.
type retryTransport struct {
	base http.RoundTripper
	cfg  Config
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{base: base, cfg: cfg}
}

// newBackOff builds the retry schedule. Waits start at InitialInterval and
// grow by Multiplier per attempt up to MaxInterval; the total attempt count
// is bounded by MaxRetries, not by elapsed time.
func newBackOff(cfg Config) backoff.BackOff {
	if cfg.MaxRetries == 0 {
		return &backoff.StopBackOff{}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialInterval
	exp.MaxInterval = cfg.MaxInterval
	exp.Multiplier = cfg.Multiplier
	exp.RandomizationFactor = cfg.RandomizationFactor
	exp.MaxElapsedTime = 0 // attempts are bounded by count via WithMaxRetries

	return backoff.WithMaxRetries(exp, cfg.MaxRetries)
}

// RoundTrip implements http.RoundTripper with retry.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.cfg.methodRetryable(req.Method) {
		return t.base.RoundTrip(req)
	}
	if req.Body != nil && req.GetBody == nil {
		// The body cannot be replayed, so a retry would send an empty request.
		return t.base.RoundTrip(req)
	}

	bo := newBackOff(t.cfg)

	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 {
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				r.Body = body
			}
			if t.cfg.Metrics != nil {
				t.cfg.Metrics.RecordRetry(req.URL.Path)
			}
		}

		resp, err := t.base.RoundTrip(r)

		if err != nil && !isRetryableError(err) {
			return nil, err
		}
		if err == nil && !t.cfg.statusRetryable(resp.StatusCode) {
			return resp, nil
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			// Budget exhausted. Surface the last outcome as is.
			return resp, err
		}

		if resp != nil {
			if ra := parseRetryAfter(resp); ra > 0 && ra < wait {
				wait = ra
			}
			// This response will not be returned.
			resp.Body.Close()
		}

		select {
		case <-time.After(wait):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
}

// isRetryableError reports whether a transport error is worth another attempt.
// Context cancellation and deadline expiry never are; the caller's budget is
// spent.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRetryableError(urlErr.Err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	transientKeywords := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network unreachable",
		"temporary failure in name resolution",
		"eof",
	}
	for _, keyword := range transientKeywords {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}

	return false
}

// parseRetryAfter extracts the Retry-After header value. Supports both
// seconds and HTTP-date formats. Returns 0 if the header is missing or
// invalid.
func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if retryTime, err := http.ParseTime(header); err == nil {
		if delay := time.Until(retryTime); delay > 0 {
			return delay
		}
	}

	return 0
}
