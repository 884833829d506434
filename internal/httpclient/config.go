package httpclient

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config carries the resolved transport settings. Callers build it once and
// treat it as read-only afterwards. Deadlines are not configured here: the
// caller attaches one to each request's context, which lets per call
// overrides exceed the client-wide default.
type Config struct {
	// UserAgent is sent on every request. Must be non-empty.
	UserAgent string

	// MaxRetries is the number of retry attempts after the initial try
	// (0 = no retries).
	MaxRetries uint64

	// InitialInterval is the wait before the first retry. Each further wait
	// is multiplied by Multiplier, capped at MaxInterval.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	// RandomizationFactor spreads waits to avoid thundering herd. Zero keeps
	// the schedule deterministic.
	RandomizationFactor float64

	// RetryStatuses is the set of response codes that trigger a retry.
	RetryStatuses []int

	// RetryMethods is the set of HTTP methods eligible for retry. Requests
	// with other methods are sent exactly once.
	RetryMethods []string

	// MaxIdleConns and MaxIdleConnsPerHost size the connection pool.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Logger receives one event per attempt. Use zerolog.Nop() to silence.
	Logger zerolog.Logger

	// Metrics, when non-nil, records per-request counters and latency.
	Metrics *Metrics

	// EnableTracing wraps the base transport with OpenTelemetry spans.
	EnableTracing bool
}

// DefaultConfig returns the transport settings used when the caller overrides
// nothing.
func DefaultConfig() Config {
	return Config{
		UserAgent:           "aidefense-go-sdk",
		MaxRetries:          3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0,
		RetryStatuses:       []int{429, 500, 502, 503, 504},
		RetryMethods:        []string{"GET"},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		Logger:              zerolog.Nop(),
	}
}

// Validate checks the configuration before a client is built from it.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return fmt.Errorf("user agent must be non-empty")
	}
	if c.MaxRetries > 0 {
		if c.InitialInterval <= 0 {
			return fmt.Errorf("initial retry interval must be > 0, got %v", c.InitialInterval)
		}
		if c.MaxInterval < c.InitialInterval {
			return fmt.Errorf("max retry interval (%v) must be >= initial interval (%v)", c.MaxInterval, c.InitialInterval)
		}
		if c.Multiplier < 1 {
			return fmt.Errorf("retry multiplier must be >= 1, got %v", c.Multiplier)
		}
	}
	return nil
}

func (c *Config) statusRetryable(code int) bool {
	for _, s := range c.RetryStatuses {
		if code == s {
			return true
		}
	}
	return false
}

func (c *Config) methodRetryable(method string) bool {
	for _, m := range c.RetryMethods {
		if method == m {
			return true
		}
	}
	return false
}
