package aidefense

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAPIKey is a syntactically valid 64 character runtime key.
var testAPIKey = strings.Repeat("k", 64)

func TestNewChatClient(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		wantErr error
		errMsg  string
	}{
		{
			name:    "missing API key",
			options: []Option{},
			wantErr: ErrAPIKeyRequired,
			errMsg:  "WithAPIKey",
		},
		{
			name:    "short API key",
			options: []Option{WithAPIKey("too-short")},
			wantErr: ErrInvalidAPIKey,
		},
		{
			name:    "with API key",
			options: []Option{WithAPIKey(testAPIKey)},
		},
		{
			name: "with region",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithRegion(RegionEU),
			},
		},
		{
			name: "unknown region",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithRegion(Region("mars")),
			},
			wantErr: ErrInvalidRegion,
		},
		{
			name: "with base URL",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithBaseURL("https://gateway.internal.example:8443"),
			},
		},
		{
			name: "malformed base URL",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithBaseURL("not-a-url"),
			},
			wantErr: ErrInvalidBaseURL,
		},
		{
			name: "with custom timeout",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithTimeout(60 * time.Second),
			},
		},
		{
			name: "non-positive timeout",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithTimeout(-1 * time.Second),
			},
			wantErr: ErrInvalidTimeout,
		},
		{
			name: "with custom retry config",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithRetryConfig(RetryConfig{
					MaxRetries:      10,
					InitialInterval: 1 * time.Second,
					MaxInterval:     60 * time.Second,
					Multiplier:      3.0,
					Statuses:        []int{429, 503},
					Methods:         []string{http.MethodGet, http.MethodPost},
				}),
			},
		},
		{
			name: "retry intervals out of order",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithRetryConfig(RetryConfig{
					MaxRetries:      3,
					InitialInterval: 10 * time.Second,
					MaxInterval:     1 * time.Second,
					Multiplier:      2.0,
				}),
			},
			wantErr: ErrInvalidRetryConfig,
		},
		{
			name: "with retry disabled",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithDisableRetry(),
			},
		},
		{
			name: "with pool config",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithPoolConfig(PoolConfig{
					MaxIdleConns:        50,
					MaxIdleConnsPerHost: 25,
					IdleConnTimeout:     time.Minute,
				}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewChatClient(tt.options...)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				var cfgErr *ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
			client.Close()
		})
	}
}

func TestRegionEndpoints(t *testing.T) {
	tests := []struct {
		region Region
		want   string
	}{
		{RegionUS, "https://us.api.inspect.aidefense.security.cisco.com/api/v1/inspect/chat"},
		{RegionEU, "https://eu.api.inspect.aidefense.security.cisco.com/api/v1/inspect/chat"},
		{RegionAPJ, "https://apj.api.inspect.aidefense.security.cisco.com/api/v1/inspect/chat"},
	}

	for _, tt := range tests {
		t.Run(tt.region.String(), func(t *testing.T) {
			client, err := NewChatClient(WithAPIKey(testAPIKey), WithRegion(tt.region))
			require.NoError(t, err)
			defer client.Close()
			assert.Equal(t, tt.want, client.endpoint)
		})
	}
}

func TestBaseURLOverridesRegion(t *testing.T) {
	client, err := NewHTTPClient(
		WithAPIKey(testAPIKey),
		WithRegion(RegionEU),
		WithBaseURL("https://gateway.internal.example/"),
	)
	require.NoError(t, err)
	defer client.Close()

	// The trailing slash is trimmed and the region ignored.
	assert.Equal(t, "https://gateway.internal.example/api/v1/inspect/http", client.endpoint)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(envAPIKey, testAPIKey)
	t.Setenv(envRegion, "EU")
	t.Setenv(envBaseURL, "")
	t.Setenv(envLogLevel, "debug")

	client, err := NewChatClient(FromEnv())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, Region("eu"), client.config.region)
	assert.Contains(t, client.endpoint, "https://eu.")
}

func TestFromEnvOverriddenByLaterOptions(t *testing.T) {
	t.Setenv(envAPIKey, testAPIKey)
	t.Setenv(envRegion, "eu")

	client, err := NewChatClient(FromEnv(), WithRegion(RegionAPJ))
	require.NoError(t, err)
	defer client.Close()

	assert.Contains(t, client.endpoint, "https://apj.")
}

func TestWithRetryOnPost(t *testing.T) {
	c := newCfg()
	WithRetryOnPost()(c)
	assert.Contains(t, c.retryConfig.Methods, http.MethodPost)

	// Applying it twice must not duplicate the entry.
	WithRetryOnPost()(c)
	count := 0
	for _, m := range c.retryConfig.Methods {
		if m == http.MethodPost {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSharedConfigAcrossClients(t *testing.T) {
	// Two clients built from the same options must not interfere; each owns
	// its configuration for its lifetime.
	options := []Option{WithAPIKey(testAPIKey), WithRegion(RegionUS)}

	chat, err := NewChatClient(options...)
	require.NoError(t, err)
	defer chat.Close()

	httpc, err := NewHTTPClient(options...)
	require.NoError(t, err)
	defer httpc.Close()

	assert.NotSame(t, chat.config, httpc.config)
	assert.True(t, strings.HasSuffix(chat.endpoint, chatInspectPath))
	assert.True(t, strings.HasSuffix(httpc.endpoint, httpInspectPath))
}

func TestSharedMetricsRegistry(t *testing.T) {
	// An application monitoring both inspection surfaces hands the same
	// registerer to both clients; the second must reuse the collectors
	// already registered, not panic on the duplicate.
	reg := prometheus.NewRegistry()

	chat, err := NewChatClient(WithAPIKey(testAPIKey), WithMetrics(reg))
	require.NoError(t, err)
	defer chat.Close()

	httpc, err := NewHTTPClient(WithAPIKey(testAPIKey), WithMetrics(reg))
	require.NoError(t, err)
	defer httpc.Close()
}

func TestConfigErrorUnwrap(t *testing.T) {
	_, err := NewChatClient()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAPIKeyRequired))
}
