// Package modelscan is the client for AI Defense model and repository
// scanning. A scan is an asynchronous resource: register a session, attach
// artifacts (uploaded files or a repository URL), trigger the analysis,
// and poll until the scan reaches a terminal status.
//
// ScanFile and ScanRepo drive that whole lifecycle in one blocking call:
//
//	client, err := modelscan.New(modelscan.WithAPIKey(key))
//	if err != nil {
//		log.Fatal(err)
//	}
//	info, err := client.ScanFile(ctx, "/path/to/model.pkl")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if info.Status == modelscan.ScanStatusCompleted {
//		for _, file := range info.AnalysisResults.Items {
//			fmt.Println(file.Name, file.Status)
//		}
//	}
//
// The lower-level methods (RegisterScan, UploadFile, TriggerScan, GetScan,
// CancelScan, DeleteScan) expose each step for callers that manage scans
// themselves.
package modelscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	aidefense "github.com/cisco-ai-defense/gosdk"
	"github.com/cisco-ai-defense/gosdk/internal/httpclient"
)

const (
	defaultBaseURL = "https://api.security.cisco.com"
	endpointPrefix = "/api/ai_defense/v1"

	tenantKeyHeader = "X-Cisco-AI-Defense-Tenant-API-Key"
	requestIDHeader = "x-aidefense-request-id"

	apiKeyLength = 64

	defaultTimeout = 30 * time.Second

	// Polling schedule for scans in flight.
	pollAttempts = 30
	pollInterval = 2 * time.Second
)

var errExactlyOneScanObject = &aidefense.ValidationError{
	Field:   "scan_object",
	Message: "exactly one of FileObject and URLObject must be set",
}

// Option configures the modelscan client.
type Option func(*config)

// WithAPIKey sets the management API key. Management keys are issued per
// tenant in the AI Defense console and differ from runtime inspection keys.
func WithAPIKey(apiKey string) Option {
	return func(c *config) {
		c.apiKey = apiKey
	}
}

// WithBaseURL points the client at an explicit management endpoint. Useful
// for testing against a local stub.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout. It bounds each HTTP call, not a
// whole scan lifecycle; bound ScanFile and ScanRepo through their context.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithRetryConfig sets custom retry behavior for management calls.
func WithRetryConfig(rc aidefense.RetryConfig) Option {
	return func(c *config) {
		c.retry = rc
	}
}

// WithLogger routes the client's structured logs to the given logger. By
// default the client is silent.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the SDK-built HTTP client wholesale. Retry and
// logging options are ignored; auth and trace headers are still attached.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

type config struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	retry      aidefense.RetryConfig
	logger     zerolog.Logger
	httpClient *http.Client
}

// Client talks to the AI Defense model scanning API. It is safe for
// concurrent use; all calls share one connection pool.
type Client struct {
	cfg        config
	httpClient *http.Client
	base       string
	uploader   *http.Client
	logger     zerolog.Logger
}

// New creates a model scanning client.
func New(options ...Option) (*Client, error) {
	cfg := config{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		retry:   aidefense.DefaultRetryConfig(),
		logger:  zerolog.Nop(),
	}
	for _, option := range options {
		option(&cfg)
	}

	if cfg.apiKey == "" {
		return nil, &aidefense.ConfigError{
			Option: "WithAPIKey",
			Reason: "no API key provided",
			Err:    aidefense.ErrAPIKeyRequired,
		}
	}
	if len(cfg.apiKey) != apiKeyLength {
		return nil, &aidefense.ConfigError{
			Option: "WithAPIKey",
			Reason: fmt.Sprintf("key has %d characters, want %d", len(cfg.apiKey), apiKeyLength),
			Err:    aidefense.ErrInvalidAPIKey,
		}
	}
	u, err := url.Parse(cfg.baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &aidefense.ConfigError{
			Option: "WithBaseURL",
			Reason: fmt.Sprintf("%q is not an absolute http(s) URL", cfg.baseURL),
			Err:    aidefense.ErrInvalidBaseURL,
		}
	}
	if cfg.timeout <= 0 {
		return nil, &aidefense.ConfigError{
			Option: "WithTimeout",
			Reason: fmt.Sprintf("timeout %v is not positive", cfg.timeout),
			Err:    aidefense.ErrInvalidTimeout,
		}
	}

	hc := cfg.httpClient
	if hc == nil {
		pool := aidefense.DefaultPoolConfig()
		hc, err = httpclient.New(httpclient.Config{
			UserAgent:           "aidefense-go-sdk/" + aidefense.Version,
			MaxRetries:          cfg.retry.MaxRetries,
			InitialInterval:     cfg.retry.InitialInterval,
			MaxInterval:         cfg.retry.MaxInterval,
			Multiplier:          cfg.retry.Multiplier,
			RandomizationFactor: cfg.retry.RandomizationFactor,
			RetryStatuses:       cfg.retry.Statuses,
			RetryMethods:        cfg.retry.Methods,
			MaxIdleConns:        pool.MaxIdleConns,
			MaxIdleConnsPerHost: pool.MaxIdleConnsPerHost,
			IdleConnTimeout:     pool.IdleConnTimeout,
			Logger:              cfg.logger,
		})
		if err != nil {
			return nil, &aidefense.ConfigError{Option: "options", Reason: err.Error(), Err: err}
		}
	}

	return &Client{
		cfg:        cfg,
		httpClient: hc,
		base:       strings.TrimRight(cfg.baseURL, "/") + endpointPrefix,
		uploader:   &http.Client{},
		logger:     cfg.logger,
	}, nil
}

// Close releases the pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	c.uploader.CloseIdleConnections()
	return nil
}

// do performs one management API call: marshal, send, decode into out. out
// may be nil for calls whose response body carries nothing of interest.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	requestID := uuid.NewString()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return &aidefense.ValidationError{
				Field:   "request",
				Message: fmt.Sprintf("cannot encode request body: %v", err),
			}
		}
		body = bytes.NewReader(raw)
	}

	endpoint := c.base + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &aidefense.APIError{Message: "cannot build request", RequestID: requestID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tenantKeyHeader, c.cfg.apiKey)
	req.Header.Set(requestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &aidefense.APIError{Message: "request failed", RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &aidefense.APIError{
			Message:    "cannot read response body",
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &aidefense.APIError{
			Message:    errorMessage(raw),
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &aidefense.APIError{
			Message:    fmt.Sprintf("malformed response: %v", err),
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Err:        err,
		}
	}
	return nil
}

func errorMessage(raw []byte) string {
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
	return "management request rejected"
}

func validateScanID(scanID string) error {
	if scanID == "" {
		return &aidefense.ValidationError{Field: "scan_id", Message: "scan id is required"}
	}
	return nil
}

// RegisterScan creates a new scan session. The returned scan id identifies
// the session in all subsequent calls.
func (c *Client) RegisterScan(ctx context.Context) (*RegisterScanResponse, error) {
	var out RegisterScanResponse
	if err := c.do(ctx, http.MethodPost, "scans/register", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.ScanID == "" {
		return nil, &aidefense.APIError{Message: "register response is missing the scan id"}
	}
	return &out, nil
}

// CreateScanObject registers one artifact within a scan session and returns
// its object id together with the pre-signed URL the content is uploaded to.
func (c *Client) CreateScanObject(ctx context.Context, scanID string, req *CreateScanObjectRequest) (*CreateScanObjectResponse, error) {
	if err := validateScanID(scanID); err != nil {
		return nil, err
	}
	if req == nil || req.FileName == "" {
		return nil, &aidefense.ValidationError{Field: "file_name", Message: "file name is required"}
	}
	if req.ScanObject != nil {
		if err := req.ScanObject.validate(); err != nil {
			return nil, err
		}
	}
	var out CreateScanObjectResponse
	if err := c.do(ctx, http.MethodPost, "scans/"+scanID+"/objects", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile attaches a local file to a scan session: it creates the scan
// object and streams the file content to the returned upload URL. The upload
// goes straight to storage, so no auth or trace headers are attached to it.
func (c *Client) UploadFile(ctx context.Context, scanID, filePath string) (objectID string, err error) {
	if err := validateScanID(scanID); err != nil {
		return "", err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return "", &aidefense.ValidationError{
			Field:   "file_path",
			Message: fmt.Sprintf("cannot open %q: %v", filePath, err),
		}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", &aidefense.ValidationError{
			Field:   "file_path",
			Message: fmt.Sprintf("cannot stat %q: %v", filePath, err),
		}
	}

	obj, err := c.CreateScanObject(ctx, scanID, &CreateScanObjectRequest{
		FileName: filepath.Base(filePath),
		Size:     stat.Size(),
	})
	if err != nil {
		return "", err
	}
	if obj.UploadURL == "" {
		return "", &aidefense.APIError{Message: "scan object response is missing the upload URL"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, obj.UploadURL, f)
	if err != nil {
		return "", &aidefense.APIError{Message: "cannot build upload request", Err: err}
	}
	req.ContentLength = stat.Size()

	resp, err := c.uploader.Do(req)
	if err != nil {
		return "", &aidefense.APIError{Message: "file upload failed", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &aidefense.APIError{
			Message:    fmt.Sprintf("file upload rejected for %q", filepath.Base(filePath)),
			StatusCode: resp.StatusCode,
		}
	}

	c.logger.Debug().Str("scan_id", scanID).Str("object_id", obj.ObjectID).
		Str("file", filepath.Base(filePath)).Msg("file uploaded")
	return obj.ObjectID, nil
}

// UploadScanResult submits externally produced findings for one scan object.
func (c *Client) UploadScanResult(ctx context.Context, scanID, objectID string, scanResult any) error {
	if err := validateScanID(scanID); err != nil {
		return err
	}
	if objectID == "" {
		return &aidefense.ValidationError{Field: "object_id", Message: "object id is required"}
	}
	body := map[string]any{"scan_result": scanResult}
	return c.do(ctx, http.MethodPost, "scans/"+scanID+"/objects/"+objectID+"/results", nil, body, nil)
}

// MarkScanCompleted finalizes a scan session, optionally reporting errors
// encountered while producing results.
func (c *Client) MarkScanCompleted(ctx context.Context, scanID, errors string) error {
	if err := validateScanID(scanID); err != nil {
		return err
	}
	body := map[string]string{"errors": errors}
	return c.do(ctx, http.MethodPut, "scans/"+scanID+"/complete", nil, body, nil)
}

// TriggerScan starts the analysis of everything attached to a scan session.
func (c *Client) TriggerScan(ctx context.Context, scanID string) error {
	if err := validateScanID(scanID); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "scans/"+scanID+"/run", nil, nil, nil)
}

// ValidateScanURL checks that a repository URL is reachable with the supplied
// credentials and attaches it to the scan session.
func (c *Client) ValidateScanURL(ctx context.Context, scanID string, repo *ModelRepoConfig) (*ValidateModelURLResponse, error) {
	if err := validateScanID(scanID); err != nil {
		return nil, err
	}
	if repo == nil || repo.URL == "" {
		return nil, &aidefense.ValidationError{Field: "url", Message: "repository URL is required"}
	}
	var out ValidateModelURLResponse
	if err := c.do(ctx, http.MethodPost, "scans/"+scanID+"/validate_url", nil, repo, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListScans returns a page of scan summaries. A nil request uses the default
// page size.
func (c *Client) ListScans(ctx context.Context, req *ListScansRequest) (*ListScansResponse, error) {
	if req == nil {
		req = &ListScansRequest{}
	}
	var out ListScansResponse
	if err := c.do(ctx, http.MethodGet, "scans", req.params(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetScan returns the status and paged per-file results of one scan. A nil
// request uses the default file page size.
func (c *Client) GetScan(ctx context.Context, scanID string, req *GetScanStatusRequest) (*GetScanStatusResponse, error) {
	if err := validateScanID(scanID); err != nil {
		return nil, err
	}
	if req == nil {
		req = &GetScanStatusRequest{}
	}
	var out GetScanStatusResponse
	if err := c.do(ctx, http.MethodGet, "scans/"+scanID, req.params(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteScan permanently removes a scan session and everything attached to it.
func (c *Client) DeleteScan(ctx context.Context, scanID string) error {
	if err := validateScanID(scanID); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "scans/"+scanID, nil, nil, nil)
}

// CancelScan stops a scan in progress. The scan transitions to CANCELED.
func (c *Client) CancelScan(ctx context.Context, scanID string) error {
	if err := validateScanID(scanID); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "scans/"+scanID+"/cancel", nil, nil, nil)
}

// ScanFile runs the whole scan lifecycle for one local file: register,
// upload, trigger, and poll until the scan reaches a terminal status. On any
// failure after registration the scan is canceled and deleted before the
// error is returned, so no orphaned session is left behind.
func (c *Client) ScanFile(ctx context.Context, filePath string) (*ScanStatusInfo, error) {
	reg, err := c.RegisterScan(ctx)
	if err != nil {
		return nil, err
	}

	info, err := func() (*ScanStatusInfo, error) {
		if _, err := c.UploadFile(ctx, reg.ScanID, filePath); err != nil {
			return nil, err
		}
		if err := c.TriggerScan(ctx, reg.ScanID); err != nil {
			return nil, err
		}
		return c.waitForTerminal(ctx, reg.ScanID)
	}()
	if err != nil {
		c.cleanupScanData(ctx, reg.ScanID)
		return nil, err
	}
	return info, nil
}

// ScanRepo runs the whole scan lifecycle for a model repository: register,
// validate the URL and credentials, trigger, and poll until terminal. Like
// ScanFile it cleans up the session on failure.
func (c *Client) ScanRepo(ctx context.Context, repo *ModelRepoConfig) (*ScanStatusInfo, error) {
	reg, err := c.RegisterScan(ctx)
	if err != nil {
		return nil, err
	}

	info, err := func() (*ScanStatusInfo, error) {
		v, err := c.ValidateScanURL(ctx, reg.ScanID, repo)
		if err != nil {
			return nil, err
		}
		if !v.IsAccessible {
			return nil, &aidefense.ValidationError{
				Field:   "url",
				Message: fmt.Sprintf("repository is not accessible: %s", v.ErrorMessage),
			}
		}
		if err := c.TriggerScan(ctx, reg.ScanID); err != nil {
			return nil, err
		}
		return c.waitForTerminal(ctx, reg.ScanID)
	}()
	if err != nil {
		c.cleanupScanData(ctx, reg.ScanID)
		return nil, err
	}
	return info, nil
}

// waitForTerminal polls the scan until it reaches a terminal status or the
// polling budget runs out.
func (c *Client) waitForTerminal(ctx context.Context, scanID string) (*ScanStatusInfo, error) {
	return c.waitForStatus(ctx, scanID, ScanStatus.Terminal)
}

func (c *Client) waitForStatus(ctx context.Context, scanID string, reached func(ScanStatus) bool) (*ScanStatusInfo, error) {
	req := &GetScanStatusRequest{FileLimit: 50}
	for attempt := 0; attempt < pollAttempts; attempt++ {
		res, err := c.GetScan(ctx, scanID, req)
		if err != nil {
			return nil, err
		}
		if reached(res.ScanStatusInfo.Status) {
			return &res.ScanStatusInfo, nil
		}

		c.logger.Debug().Str("scan_id", scanID).
			Stringer("status", res.ScanStatusInfo.Status).Msg("scan in progress")

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return nil, &aidefense.APIError{Message: "scan polling aborted", Err: ctx.Err()}
		}
	}
	return nil, &aidefense.APIError{Message: fmt.Sprintf("scan %s timed out", scanID)}
}

// cleanupScanData cancels a scan, waits for the cancellation to land, and
// deletes the session. Used on failure paths; its own errors are logged and
// dropped so the original failure is what the caller sees.
func (c *Client) cleanupScanData(ctx context.Context, scanID string) {
	if err := c.CancelScan(ctx, scanID); err != nil {
		c.logger.Warn().Str("scan_id", scanID).Err(err).Msg("scan cancel failed")
		return
	}
	if _, err := c.waitForStatus(ctx, scanID, func(s ScanStatus) bool { return s == ScanStatusCanceled }); err != nil {
		c.logger.Warn().Str("scan_id", scanID).Err(err).Msg("scan did not reach canceled state")
	}
	if err := c.DeleteScan(ctx, scanID); err != nil {
		c.logger.Warn().Str("scan_id", scanID).Err(err).Msg("scan delete failed")
	}
}
