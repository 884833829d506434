package aidefense

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cisco-ai-defense/gosdk/internal/httpclient"
)

// inspectClient is the pipeline shared by the chat and HTTP clients: one
// resolved configuration, one pooled HTTP client, and one request path that
// attaches auth and trace headers, enforces the deadline, and decodes the
// verdict. It is safe for concurrent use.
type inspectClient struct {
	config     *cfg
	httpClient *http.Client
	endpoint   string
	logger     zerolog.Logger
}

func newInspectClient(path string, options []Option) (*inspectClient, error) {
	config := newCfg()
	for _, option := range options {
		option(config)
	}

	if err := config.resolve(); err != nil {
		return nil, err
	}

	hc := config.httpClient
	if hc == nil {
		var metrics *httpclient.Metrics
		if config.metricsOn {
			metrics = httpclient.NewMetrics(config.metricsReg)
		}

		var err error
		hc, err = httpclient.New(httpclient.Config{
			UserAgent:           config.userAgent,
			MaxRetries:          config.retryConfig.MaxRetries,
			InitialInterval:     config.retryConfig.InitialInterval,
			MaxInterval:         config.retryConfig.MaxInterval,
			Multiplier:          config.retryConfig.Multiplier,
			RandomizationFactor: config.retryConfig.RandomizationFactor,
			RetryStatuses:       config.retryConfig.Statuses,
			RetryMethods:        config.retryConfig.Methods,
			MaxIdleConns:        config.poolConfig.MaxIdleConns,
			MaxIdleConnsPerHost: config.poolConfig.MaxIdleConnsPerHost,
			IdleConnTimeout:     config.poolConfig.IdleConnTimeout,
			Logger:              config.logger,
			Metrics:             metrics,
			EnableTracing:       config.tracing,
		})
		if err != nil {
			return nil, &ConfigError{Option: "options", Reason: err.Error(), Err: err}
		}
	}

	return &inspectClient{
		config:     config,
		httpClient: hc,
		endpoint:   config.baseURL + path,
		logger:     config.logger,
	}, nil
}

// doInspect performs one inspection call: marshal, send, decode. Every
// request carries exactly one trace identifier, either the one from opts or a
// generated UUID, and that identifier rides on any error the call produces.
func (ic *inspectClient) doInspect(ctx context.Context, payload any, opts InspectOptions) (*InspectResult, error) {
	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, validationErr("request", "cannot encode request body: %v", err)
	}

	timeout := ic.config.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ic.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Message: "cannot build request", RequestID: requestID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, ic.config.apiKey)
	req.Header.Set(requestIDHeader, requestID)

	resp, err := ic.httpClient.Do(req)
	if err != nil {
		msg := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return nil, &APIError{Message: msg, RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Message:    "cannot read response body",
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Message:    serviceMessage(raw),
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
		}
	}

	return decodeResult(raw, resp.StatusCode, requestID)
}

// serviceMessage pulls a human-readable message out of an error body, falling
// back to a generic one when the body is not the usual JSON error shape.
func serviceMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return "inspection request rejected"
}

// inspectResponse is the wire shape of a verdict. IsSafe is a pointer so a
// body that parses as JSON but lacks the verdict field is distinguishable
// from an explicit false.
type inspectResponse struct {
	IsSafe              *bool            `json:"is_safe"`
	Rules               []RuleOutcome    `json:"rules"`
	Classifications     []Classification `json:"classifications"`
	Severity            Severity         `json:"severity"`
	AttackTechnique     string           `json:"attack_technique"`
	Explanation         string           `json:"explanation"`
	EventID             string           `json:"event_id"`
	ClientTransactionID string           `json:"client_transaction_id"`
}

// decodeResult turns the service's JSON verdict into an InspectResult. A body
// that does not satisfy the verdict contract is a service fault and yields an
// APIError, never a ValidationError.
func decodeResult(raw []byte, statusCode int, requestID string) (*InspectResult, error) {
	var wire inspectResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &APIError{
			Message:    fmt.Sprintf("malformed verdict: %v", err),
			StatusCode: statusCode,
			RequestID:  requestID,
			Err:        err,
		}
	}
	if wire.IsSafe == nil {
		return nil, &APIError{
			Message:    "verdict is missing the is_safe field",
			StatusCode: statusCode,
			RequestID:  requestID,
		}
	}
	if !*wire.IsSafe && len(wire.Rules) == 0 {
		return nil, &APIError{
			Message:    "verdict reports unsafe content but names no rules",
			StatusCode: statusCode,
			RequestID:  requestID,
		}
	}

	return &InspectResult{
		IsSafe:              *wire.IsSafe,
		Rules:               wire.Rules,
		Classifications:     wire.Classifications,
		Severity:            wire.Severity,
		AttackTechnique:     wire.AttackTechnique,
		Explanation:         wire.Explanation,
		EventID:             wire.EventID,
		ClientTransactionID: wire.ClientTransactionID,
	}, nil
}

// Close releases the pooled connections. You can do this with defer to ensure
// that the connections are always cleaned up.
func (ic *inspectClient) Close() error {
	if ic.httpClient != nil {
		ic.httpClient.CloseIdleConnections()
	}
	return nil
}

var (
	cleanupHandlers []func()
	cleanupMutex    sync.Mutex
	cleanupOnce     sync.Once
)

// setupCleanupHandler sets up a signal handler for cleanup functions
func setupCleanupHandler() {
	cleanupOnce.Do(func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-c
			cleanupMutex.Lock()
			defer cleanupMutex.Unlock()
			for _, handler := range cleanupHandlers {
				handler()
			}
			os.Exit(0)
		}()
	})
}

// addCleanupHandler adds a cleanup function to be called on exit
func addCleanupHandler(handler func()) {
	cleanupMutex.Lock()
	defer cleanupMutex.Unlock()
	cleanupHandlers = append(cleanupHandlers, handler)
	setupCleanupHandler()
}

// CloseOnExit registers the client for cleanup. This can be useful if you are
// using a long lived instance of the client and want to make sure its
// connections are always released before exit.
func (ic *inspectClient) CloseOnExit() {
	addCleanupHandler(func() {
		ic.Close()
	})
}
