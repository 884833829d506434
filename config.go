package aidefense

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Version is the SDK version reported in the User-Agent header.
const Version = "1.0.0"

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "aidefense-go-sdk/" + Version

	runtimeDomain   = "api.inspect.aidefense.security.cisco.com"
	chatInspectPath = "/api/v1/inspect/chat"
	httpInspectPath = "/api/v1/inspect/http"

	apiKeyHeader    = "X-Cisco-AI-Defense-API-Key"
	requestIDHeader = "x-aidefense-request-id"

	apiKeyLength = 64
)

// Environment variables read by FromEnv.
const (
	envAPIKey   = "AIDEFENSE_API_KEY"
	envRegion   = "AIDEFENSE_REGION"
	envBaseURL  = "AIDEFENSE_RUNTIME_BASE_URL"
	envLogLevel = "AIDEFENSE_LOG_LEVEL"
)

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 means no retry).
	MaxRetries uint64
	// InitialInterval is the initial backoff interval.
	InitialInterval time.Duration
	// MaxInterval is the maximum backoff interval between retries.
	MaxInterval time.Duration
	// Multiplier is the backoff multiplier (e.g., 2.0 for exponential backoff).
	Multiplier float64
	// RandomizationFactor adds jitter to prevent thundering herd. Zero keeps
	// waits exactly at InitialInterval * Multiplier^(attempt-1).
	RandomizationFactor float64
	// Statuses is the set of response codes that trigger a retry.
	Statuses []int
	// Methods is the set of HTTP methods eligible for retry. Inspection calls
	// use POST; add it here (or use WithRetryOnPost) to retry them.
	Methods []string
}

// DefaultRetryConfig returns our recommended retry configuration: three
// retries at 0.5s, 1s, 2s for the usual transient statuses, applied to GET
// requests only.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:          3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0,
		Statuses:            []int{429, 500, 502, 503, 504},
		Methods:             []string{http.MethodGet},
	}
}

// PoolConfig sizes the connection pool shared by all calls from one client.
type PoolConfig struct {
	// MaxIdleConns is the total number of idle connections kept open.
	MaxIdleConns int
	// MaxIdleConnsPerHost is the number of idle connections kept per host.
	MaxIdleConnsPerHost int
	// IdleConnTimeout is how long an idle connection stays in the pool.
	IdleConnTimeout time.Duration
}

// DefaultPoolConfig returns the default pool sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Option is a function that configures the client.
type Option func(*cfg)

// WithAPIKey sets the API key for the client. Runtime API keys are issued in
// the AI Defense console per connection.
func WithAPIKey(apiKey string) Option {
	return func(c *cfg) {
		c.apiKey = apiKey
	}
}

// WithRegion selects the regional endpoint. The default is RegionUS. Ignored
// when WithBaseURL is set.
func WithRegion(region Region) Option {
	return func(c *cfg) {
		c.region = region
	}
}

// WithBaseURL points the client at an explicit endpoint instead of a region.
// Useful for testing against a local stub or routing through a gateway.
func WithBaseURL(baseURL string) Option {
	return func(c *cfg) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the default timeout for requests, retries included. If not
// set, the default timeout is 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *cfg) {
		c.timeout = timeout
	}
}

// WithRetryConfig sets custom retry configuration for the client
func WithRetryConfig(retryConfig RetryConfig) Option {
	return func(c *cfg) {
		c.retryConfig = retryConfig
	}
}

// WithDisableRetry disables automatic retry entirely.
func WithDisableRetry() Option {
	return func(c *cfg) {
		c.retryConfig.MaxRetries = 0
	}
}

// WithRetryOnPost makes POST requests eligible for retry. Inspection is
// idempotent from the caller's perspective, so retrying an inspection POST is
// safe; it is still opt-in because the service bills per submitted request.
func WithRetryOnPost() Option {
	return func(c *cfg) {
		for _, m := range c.retryConfig.Methods {
			if m == http.MethodPost {
				return
			}
		}
		c.retryConfig.Methods = append(c.retryConfig.Methods, http.MethodPost)
	}
}

// WithPoolConfig sets custom connection pool sizing for the client.
func WithPoolConfig(poolConfig PoolConfig) Option {
	return func(c *cfg) {
		c.poolConfig = poolConfig
	}
}

// WithUserAgent overrides the User-Agent header sent on every request.
func WithUserAgent(userAgent string) Option {
	return func(c *cfg) {
		c.userAgent = userAgent
	}
}

// WithLogger routes the client's structured logs to the given logger. By
// default the client is silent.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *cfg) {
		c.logger = logger
		c.loggerSet = true
	}
}

// WithLogLevel enables logging to stderr at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func WithLogLevel(level string) Option {
	return func(c *cfg) {
		c.logger = newLogger(level)
		c.loggerSet = true
	}
}

// WithHTTPClient replaces the SDK-built HTTP client wholesale. Retry, pool,
// and logging options are ignored; the caller's client is used as is. Auth
// and trace headers are still attached per request.
func WithHTTPClient(client *http.Client) Option {
	return func(c *cfg) {
		c.httpClient = client
	}
}

// WithMetrics registers Prometheus collectors for request counts, retries,
// and latency with reg. A nil reg uses the default registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *cfg) {
		c.metricsReg = reg
		c.metricsOn = true
	}
}

// WithTracing wraps the transport with OpenTelemetry client spans, one per
// attempt, using the global tracer provider.
func WithTracing() Option {
	return func(c *cfg) {
		c.tracing = true
	}
}

// FromEnv fills unset options from the environment: AIDEFENSE_API_KEY,
// AIDEFENSE_REGION, AIDEFENSE_RUNTIME_BASE_URL, and AIDEFENSE_LOG_LEVEL.
// Options placed after FromEnv override what it read.
func FromEnv() Option {
	return func(c *cfg) {
		if v := os.Getenv(envAPIKey); v != "" {
			c.apiKey = v
		}
		if v := os.Getenv(envRegion); v != "" {
			c.region = Region(strings.ToLower(v))
		}
		if v := os.Getenv(envBaseURL); v != "" {
			c.baseURL = v
		}
		if v := os.Getenv(envLogLevel); v != "" {
			c.logger = newLogger(v)
			c.loggerSet = true
		}
	}
}

// newLogger builds the stderr logger used when callers ask for a level
// instead of supplying their own logger.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("component", "aidefense").Logger()
}

// cfg holds configuration for an inspection client
type cfg struct {
	// apiKey is the runtime API key attached to every request
	apiKey string
	// region selects the regional endpoint when baseURL is empty
	region Region
	// baseURL, when set, overrides the region-derived endpoint
	baseURL string
	// timeout is the default timeout for requests
	timeout time.Duration
	// retryConfig configures retry behavior for transient failures
	retryConfig RetryConfig
	// poolConfig sizes the shared connection pool
	poolConfig PoolConfig
	// userAgent is sent on every request
	userAgent string

	logger    zerolog.Logger
	loggerSet bool

	httpClient *http.Client
	metricsReg prometheus.Registerer
	metricsOn  bool
	tracing    bool
}

func newCfg() *cfg {
	return &cfg{
		region:      RegionUS,
		timeout:     defaultTimeout,
		retryConfig: DefaultRetryConfig(),
		poolConfig:  DefaultPoolConfig(),
		userAgent:   defaultUserAgent,
		logger:      zerolog.Nop(),
	}
}

// resolve validates the collected options and fills in the derived values.
// After resolve returns nil the cfg is read-only.
func (c *cfg) resolve() error {
	if c.apiKey == "" {
		return &ConfigError{Option: "WithAPIKey", Reason: "no API key provided", Err: ErrAPIKeyRequired}
	}
	if len(c.apiKey) != apiKeyLength {
		return &ConfigError{
			Option: "WithAPIKey",
			Reason: fmt.Sprintf("key has %d characters, want %d", len(c.apiKey), apiKeyLength),
			Err:    ErrInvalidAPIKey,
		}
	}

	if c.baseURL != "" {
		if err := validateURL("base URL", c.baseURL); err != nil {
			return &ConfigError{Option: "WithBaseURL", Reason: err.Error(), Err: ErrInvalidBaseURL}
		}
		c.baseURL = strings.TrimRight(c.baseURL, "/")
	} else {
		if !c.region.valid() {
			return &ConfigError{
				Option: "WithRegion",
				Reason: fmt.Sprintf("%q is not one of us, eu, apj", c.region),
				Err:    ErrInvalidRegion,
			}
		}
		c.baseURL = fmt.Sprintf("https://%s.%s", c.region, runtimeDomain)
	}

	if c.timeout <= 0 {
		return &ConfigError{
			Option: "WithTimeout",
			Reason: fmt.Sprintf("timeout %v is not positive", c.timeout),
			Err:    ErrInvalidTimeout,
		}
	}

	if rc := c.retryConfig; rc.MaxRetries > 0 {
		if rc.InitialInterval <= 0 || rc.MaxInterval < rc.InitialInterval || rc.Multiplier < 1 {
			return &ConfigError{
				Option: "WithRetryConfig",
				Reason: fmt.Sprintf("intervals %v..%v with multiplier %v", rc.InitialInterval, rc.MaxInterval, rc.Multiplier),
				Err:    ErrInvalidRetryConfig,
			}
		}
	}

	return nil
}
