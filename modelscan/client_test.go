package modelscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aidefense "github.com/cisco-ai-defense/gosdk"
)

var testAPIKey = strings.Repeat("m", 64)

// scanStub is an httptest server implementing the management scan endpoints.
// It records which operations were hit, in order, and what was uploaded.
type scanStub struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	ops      []string
	uploaded []byte

	// scanStatus is the status GetScan reports.
	scanStatus ScanStatus
	// failOn, when set, makes the named operation answer 500.
	failOn string
}

func newScanStub(t *testing.T) *scanStub {
	t.Helper()
	s := &scanStub{t: t, scanStatus: ScanStatusCompleted}

	mux := http.NewServeMux()
	prefix := endpointPrefix + "/"

	mux.HandleFunc("PUT /upload/{object}", func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		s.record("upload", w)
		s.mu.Lock()
		s.uploaded = raw
		s.mu.Unlock()
	})

	mux.HandleFunc(prefix+"scans/register", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, testAPIKey, r.Header.Get(tenantKeyHeader))
		require.NotEmpty(t, r.Header.Get(requestIDHeader))
		if s.record("register", w) {
			return
		}
		json.NewEncoder(w).Encode(RegisterScanResponse{ScanID: "scan-1"})
	})

	mux.HandleFunc(prefix+"scans/scan-1/objects", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req CreateScanObjectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.FileName)
		if s.record("objects", w) {
			return
		}
		json.NewEncoder(w).Encode(CreateScanObjectResponse{
			ObjectID:  "obj-1",
			UploadURL: s.server.URL + "/upload/obj-1",
		})
	})

	mux.HandleFunc(prefix+"scans/scan-1/run", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		s.record("run", w)
	})

	mux.HandleFunc(prefix+"scans/scan-1/validate_url", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		if s.record("validate_url", w) {
			return
		}
		json.NewEncoder(w).Encode(ValidateModelURLResponse{IsAccessible: true})
	})

	mux.HandleFunc(prefix+"scans/scan-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		if s.record("cancel", w) {
			return
		}
		s.mu.Lock()
		s.scanStatus = ScanStatusCanceled
		s.mu.Unlock()
	})

	mux.HandleFunc(prefix+"scans/scan-1", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if s.record("get", w) {
				return
			}
			s.mu.Lock()
			status := s.scanStatus
			s.mu.Unlock()
			json.NewEncoder(w).Encode(GetScanStatusResponse{
				ScanStatusInfo: ScanStatusInfo{
					ScanID: "scan-1",
					Status: status,
					Type:   AnalysisTypeFile,
					AnalysisResults: AnalysisResult{
						Items: []FileInfo{{Name: "model.pkl", Status: status}},
					},
				},
			})
		case http.MethodDelete:
			s.record("delete", w)
		default:
			t.Errorf("unexpected method %s for %s", r.Method, r.URL.Path)
		}
	})

	mux.HandleFunc(prefix+"scans", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		if s.record("list?"+r.URL.RawQuery, w) {
			return
		}
		json.NewEncoder(w).Encode(ListScansResponse{
			Scans: Scans{
				Items:  []ScanSummary{{ScanID: "scan-1", Status: ScanStatusCompleted}},
				Paging: Paging{Total: 1, Limit: 100},
			},
		})
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

// record logs the operation and reports whether it was made to fail.
func (s *scanStub) record(op string, w http.ResponseWriter) bool {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	fail := s.failOn != "" && strings.HasPrefix(op, s.failOn)
	s.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"message": "internal failure"}`)
	}
	return fail
}

func (s *scanStub) operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func newTestClient(t *testing.T, stub *scanStub) *Client {
	t.Helper()
	client, err := New(
		WithAPIKey(testAPIKey),
		WithBaseURL(stub.server.URL),
	)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func writeTempModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.pkl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		wantErr error
	}{
		{
			name:    "missing API key",
			options: []Option{},
			wantErr: aidefense.ErrAPIKeyRequired,
		},
		{
			name:    "short API key",
			options: []Option{WithAPIKey("short")},
			wantErr: aidefense.ErrInvalidAPIKey,
		},
		{
			name:    "valid",
			options: []Option{WithAPIKey(testAPIKey)},
		},
		{
			name: "bad base URL",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithBaseURL("not-a-url"),
			},
			wantErr: aidefense.ErrInvalidBaseURL,
		},
		{
			name: "non-positive timeout",
			options: []Option{
				WithAPIKey(testAPIKey),
				WithTimeout(0),
			},
			wantErr: aidefense.ErrInvalidTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.options...)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			client.Close()
		})
	}
}

func TestScanFile(t *testing.T) {
	stub := newScanStub(t)
	client := newTestClient(t, stub)

	path := writeTempModel(t, "pickle-bytes")
	info, err := client.ScanFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "scan-1", info.ScanID)
	assert.Equal(t, ScanStatusCompleted, info.Status)
	require.Len(t, info.AnalysisResults.Items, 1)
	assert.Equal(t, "model.pkl", info.AnalysisResults.Items[0].Name)

	// The whole lifecycle ran in order and the file content reached storage.
	ops := stub.operations()
	assert.Equal(t, []string{"register", "objects", "upload", "run", "get"}, ops)
	assert.Equal(t, "pickle-bytes", string(stub.uploaded))
}

func TestScanFile_CleanupOnFailure(t *testing.T) {
	stub := newScanStub(t)
	stub.failOn = "run"
	client := newTestClient(t, stub)

	path := writeTempModel(t, "pickle-bytes")
	info, err := client.ScanFile(context.Background(), path)
	assert.Nil(t, info)

	var apiErr *aidefense.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)

	// The failed session is canceled and deleted, not left orphaned.
	ops := stub.operations()
	assert.Contains(t, ops, "cancel")
	assert.Contains(t, ops, "delete")
}

func TestScanRepo(t *testing.T) {
	stub := newScanStub(t)
	client := newTestClient(t, stub)

	info, err := client.ScanRepo(context.Background(), &ModelRepoConfig{
		URL:  "https://huggingface.co/acme/model",
		Type: URLTypeHuggingFace,
		Auth: &Auth{HuggingFace: &HuggingFaceAuth{AccessToken: "hf_token"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ScanStatusCompleted, info.Status)

	ops := stub.operations()
	assert.Equal(t, []string{"register", "validate_url", "run", "get"}, ops)
}

func TestScanRepo_InaccessibleURL(t *testing.T) {
	stub := newScanStub(t)
	client := newTestClient(t, stub)

	// Route validate_url to an explicit failure payload.
	stub.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/register"):
			json.NewEncoder(w).Encode(RegisterScanResponse{ScanID: "scan-1"})
		case strings.HasSuffix(r.URL.Path, "/validate_url"):
			json.NewEncoder(w).Encode(ValidateModelURLResponse{
				IsAccessible: false,
				ErrorMessage: "repository not found",
			})
		case strings.HasSuffix(r.URL.Path, "/scan-1") && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(GetScanStatusResponse{
				ScanStatusInfo: ScanStatusInfo{ScanID: "scan-1", Status: ScanStatusCanceled},
			})
		default:
			w.WriteHeader(http.StatusOK)
		}
	})

	info, err := client.ScanRepo(context.Background(), &ModelRepoConfig{
		URL:  "https://huggingface.co/acme/missing",
		Type: URLTypeHuggingFace,
	})
	assert.Nil(t, info)

	var vErr *aidefense.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "repository not found")
}

func TestListScans(t *testing.T) {
	stub := newScanStub(t)
	client := newTestClient(t, stub)

	res, err := client.ListScans(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Scans.Items, 1)
	assert.Equal(t, "scan-1", res.Scans.Items[0].ScanID)
	assert.Equal(t, 1, res.Scans.Paging.Total)

	// A nil request pages with the defaults.
	ops := stub.operations()
	require.Len(t, ops, 1)
	assert.Contains(t, ops[0], "limit=100")
	assert.Contains(t, ops[0], "offset=0")
}

func TestListScans_Filters(t *testing.T) {
	stub := newScanStub(t)
	client := newTestClient(t, stub)

	_, err := client.ListScans(context.Background(), &ListScansRequest{
		Limit:    10,
		Offset:   20,
		Name:     "model.pkl",
		Type:     AnalysisTypeFile,
		Severity: []Severity{SeverityHigh, SeverityCritical},
		Status:   []ScanStatus{ScanStatusCompleted},
	})
	require.NoError(t, err)

	ops := stub.operations()
	require.Len(t, ops, 1)
	assert.Contains(t, ops[0], "limit=10")
	assert.Contains(t, ops[0], "offset=20")
	assert.Contains(t, ops[0], "name=model.pkl")
	assert.Contains(t, ops[0], "type=FILE_ANALYSIS")
	assert.Contains(t, ops[0], "severity=HIGH")
	assert.Contains(t, ops[0], "severity=CRITICAL")
	assert.Contains(t, ops[0], "status=COMPLETED")
}

func TestGetScan_DefaultPaging(t *testing.T) {
	stub := newScanStub(t)
	client := newTestClient(t, stub)

	res, err := client.GetScan(context.Background(), "scan-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "scan-1", res.ScanStatusInfo.ScanID)
}

func TestValidationBeforeNetwork(t *testing.T) {
	stub := newScanStub(t)
	client := newTestClient(t, stub)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "empty scan id",
			call: func() error { return client.TriggerScan(ctx, "") },
		},
		{
			name: "missing file",
			call: func() error {
				_, err := client.UploadFile(ctx, "scan-1", filepath.Join(t.TempDir(), "missing.pkl"))
				return err
			},
		},
		{
			name: "missing repo URL",
			call: func() error {
				_, err := client.ValidateScanURL(ctx, "scan-1", &ModelRepoConfig{})
				return err
			},
		},
		{
			name: "scan object with both sides",
			call: func() error {
				_, err := client.CreateScanObject(ctx, "scan-1", &CreateScanObjectRequest{
					FileName: "model.pkl",
					ScanObject: &ScanObject{
						FileObject: &FileObject{FileName: "model.pkl"},
						URLObject:  &URLObject{URL: "https://huggingface.co/x"},
					},
				})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var vErr *aidefense.ValidationError
			require.ErrorAs(t, err, &vErr)
		})
	}

	assert.Empty(t, stub.operations())
}

func TestScanStatusTerminal(t *testing.T) {
	terminal := []ScanStatus{ScanStatusCompleted, ScanStatusFailed, ScanStatusCanceled}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), fmt.Sprintf("%s should be terminal", s))
	}

	inFlight := []ScanStatus{ScanStatusPending, ScanStatusInProgress, ScanStatusDownloading, ScanStatusNone}
	for _, s := range inFlight {
		assert.False(t, s.Terminal(), fmt.Sprintf("%s should not be terminal", s))
	}
}
