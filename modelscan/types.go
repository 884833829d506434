package modelscan

import (
	"net/url"
	"strconv"
	"time"
)

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	// ScanStatusNone is the zero value. Should not be used.
	ScanStatusNone ScanStatus = "NONE_SCAN_STATUS"
	// ScanStatusPending means the scan has been created but not yet started.
	ScanStatusPending ScanStatus = "PENDING"
	// ScanStatusInProgress means the scan is currently running.
	ScanStatusInProgress ScanStatus = "IN_PROGRESS"
	// ScanStatusCompleted means the scan has finished successfully.
	ScanStatusCompleted ScanStatus = "COMPLETED"
	// ScanStatusFailed means the scan encountered an error and failed.
	ScanStatusFailed ScanStatus = "FAILED"
	// ScanStatusCanceled means the scan was canceled before completion.
	ScanStatusCanceled ScanStatus = "CANCELED"
	// ScanStatusSkipped means the file was not scanned, see FileInfo.Reason.
	ScanStatusSkipped ScanStatus = "SKIPPED"
	// ScanStatusDownloading means the artifact is still being fetched.
	ScanStatusDownloading ScanStatus = "DOWNLOADING"
)

// String returns the string representation of the scan status.
func (s ScanStatus) String() string {
	return string(s)
}

// Terminal reports whether the status is an end state that no further
// polling will change.
func (s ScanStatus) Terminal() bool {
	switch s {
	case ScanStatusCompleted, ScanStatusFailed, ScanStatusCanceled:
		return true
	}
	return false
}

// AnalysisType is the kind of analysis a scan performs.
type AnalysisType string

const (
	AnalysisTypeNone       AnalysisType = "NONE_ANALYSIS_TYPE"
	AnalysisTypeFile       AnalysisType = "FILE_ANALYSIS"
	AnalysisTypeRepository AnalysisType = "REPOSITORY_ANALYSIS"
)

// String returns the string representation of the analysis type.
func (a AnalysisType) String() string {
	return string(a)
}

// RiskCategory is the aggregate risk classification for a scanned file.
type RiskCategory string

const (
	RiskCategoryNone       RiskCategory = "NONE_RISK_CATEGORY"
	RiskCategoryVulnerable RiskCategory = "VULNERABLE"
	RiskCategoryNoThreats  RiskCategory = "NO_THREATS"
	RiskCategoryNotScanned RiskCategory = "NOT_SCANNED"
)

// String returns the string representation of the risk category.
func (r RiskCategory) String() string {
	return string(r)
}

// ThreatType identifies the kind of threat found in a model artifact.
type ThreatType string

const (
	ThreatTypeNone                        ThreatType = "NONE_THREAT_TYPE"
	ThreatTypeStackedPickle               ThreatType = "STACKED_PICKLE"
	ThreatTypeUnsafeImport                ThreatType = "UNSAFE_IMPORT"
	ThreatTypeSuspiciousString            ThreatType = "SUSPICIOUS_STRING"
	ThreatTypeMethodTampering             ThreatType = "METHOD_TAMPERING"
	ThreatTypeReduceExploit               ThreatType = "REDUCE_EXPLOIT"
	ThreatTypeCodeExecution               ThreatType = "CODE_EXECUTION"
	ThreatTypeEvalExec                    ThreatType = "EVAL_EXEC"
	ThreatTypeOSCommand                   ThreatType = "OS_COMMAND"
	ThreatTypeMultipleProto               ThreatType = "MULTIPLE_PROTO"
	ThreatTypeSuspiciousImport            ThreatType = "SUSPICIOUS_IMPORT"
	ThreatTypeSuspiciousTensorFlowOp      ThreatType = "SUSPICIOUS_TENSORFLOW_OP"
	ThreatTypeDangerousTensorFlowOp       ThreatType = "DANGEROUS_TENSORFLOW_OP"
	ThreatTypeWarning                     ThreatType = "WARNING"
	ThreatTypeSuspiciousKerasConfig       ThreatType = "SUSPICIOUS_KERAS_CONFIG"
	ThreatTypeSuspiciousKerasLambdaLayer  ThreatType = "SUSPICIOUS_KERAS_LAMBDA_LAYER"
	ThreatTypeDangerousKerasLambdaLayer   ThreatType = "DANGEROUS_KERAS_LAMBDA_LAYER"
	ThreatTypeSuspiciousKerasCustomObject ThreatType = "SUSPICIOUS_KERAS_CUSTOM_OBJECTS"
	ThreatTypeSuspiciousConfig            ThreatType = "SUSPICIOUS_CONFIG"
	ThreatTypeSuspiciousDatasetCode       ThreatType = "SUSPICIOUS_DATASET_CODE"
	ThreatTypeMaliciousJinja2Template     ThreatType = "MALICIOUS_JINJA2_TEMPLATE"
)

// String returns the string representation of the threat type.
func (t ThreatType) String() string {
	return string(t)
}

// Severity grades a detected threat.
type Severity string

const (
	SeverityNone     Severity = "NONE_SEVERITY"
	SeveritySafe     Severity = "SAFE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// URLType identifies the provider a model URL points at. The wire carries it
// as a number.
type URLType int

const (
	// URLTypeNone is the zero value. Should not be used.
	URLTypeNone URLType = 0
	// URLTypeHuggingFace marks a huggingface.co model or repository URL.
	URLTypeHuggingFace URLType = 1
)

// String returns the string representation of the URL type.
func (u URLType) String() string {
	switch u {
	case URLTypeHuggingFace:
		return "HUGGING_FACE"
	}
	return "NONE_URLType"
}

// Paging reports the window a paginated list covers.
type Paging struct {
	Total  int `json:"total,omitempty"`
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

// FileSubcategory names one supported model format and its file extensions.
type FileSubcategory struct {
	Name           string   `json:"name"`
	FileExtensions []string `json:"file_extensions"`
}

// FileCategory groups supported file formats, for example "ML Models".
type FileCategory struct {
	Name          string            `json:"name"`
	Subcategories []FileSubcategory `json:"subcategories"`
}

// SupportedFileTypes describes what the service can scan, organized by
// category and subcategory.
type SupportedFileTypes struct {
	Categories []FileCategory `json:"categories"`
}

// RegisterScanResponse is returned when a new scan session is registered.
type RegisterScanResponse struct {
	// ScanID identifies the scan session in all subsequent calls.
	ScanID string `json:"scan_id"`
	// SupportedFileTypes lists the formats the service accepts.
	SupportedFileTypes SupportedFileTypes `json:"supported_file_types"`
}

// FileObject names a file to be scanned.
type FileObject struct {
	FileName string `json:"file_name"`
}

// HuggingFaceAuth carries a HuggingFace access token.
type HuggingFaceAuth struct {
	AccessToken string `json:"access_token"`
}

// Auth holds credentials for the repository provider. Set at most one
// provider.
type Auth struct {
	HuggingFace *HuggingFaceAuth `json:"huggingface,omitempty"`
}

// URLObject names a repository or model URL to be scanned.
type URLObject struct {
	URL       string  `json:"url"`
	Type      URLType `json:"type"`
	VersionID string  `json:"version_id,omitempty"`
	Auth      *Auth   `json:"auth,omitempty"`
}

// ScanObject is either a file or a URL to scan. Exactly one side must be set.
type ScanObject struct {
	FileObject *FileObject `json:"file_object,omitempty"`
	URLObject  *URLObject  `json:"url_object,omitempty"`
}

func (s *ScanObject) validate() error {
	if (s.FileObject == nil) == (s.URLObject == nil) {
		return errExactlyOneScanObject
	}
	return nil
}

// CreateScanObjectRequest registers one artifact within a scan session and
// asks for an upload URL.
type CreateScanObjectRequest struct {
	FileName   string      `json:"file_name"`
	Size       int64       `json:"size,omitempty"`
	ScanObject *ScanObject `json:"scan_object,omitempty"`
}

// CreateScanObjectResponse carries the object id and the pre-signed URL the
// file content is uploaded to.
type CreateScanObjectResponse struct {
	ObjectID  string `json:"object_id"`
	UploadURL string `json:"upload_url,omitempty"`
}

// ModelRepoConfig describes a repository to validate and scan.
type ModelRepoConfig struct {
	URL  string  `json:"url"`
	Type URLType `json:"type"`
	Auth *Auth   `json:"auth,omitempty"`
}

// ValidateModelURLResponse reports whether a repository URL is reachable with
// the supplied credentials.
type ValidateModelURLResponse struct {
	IsAccessible bool   `json:"is_accessible"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ThreatInfo is one detected threat.
type ThreatInfo struct {
	// ID uniquely identifies this detection.
	ID string `json:"id"`
	// ThreatID is the threat identifier code.
	ThreatID string `json:"threat_id"`
	// ThreatType is the kind of threat detected.
	ThreatType ThreatType `json:"threat_type"`
	// Severity of the detection.
	Severity Severity `json:"severity"`
	// Details holds the raw evidence.
	Details string `json:"details"`
	// Description is the human-readable account.
	Description string `json:"description"`
}

// SubTechnique groups detections under one sub-technique of the threat
// taxonomy, for example AITech-9.3.1.
type SubTechnique struct {
	SubTechniqueID   string       `json:"sub_technique_id"`
	SubTechniqueName string       `json:"sub_technique_name"`
	Description      string       `json:"description"`
	Indicators       []string     `json:"indicators,omitempty"`
	MaxSeverity      Severity     `json:"max_severity"`
	Items            []ThreatInfo `json:"items,omitempty"`
}

// Technique groups sub-techniques under one technique of the threat taxonomy.
type Technique struct {
	TechniqueID   string         `json:"technique_id"`
	TechniqueName string         `json:"technique_name"`
	Items         []SubTechnique `json:"items,omitempty"`
}

// ThreatInfoList is the hierarchical view of threats found in one file.
type ThreatInfoList struct {
	Items  []Technique `json:"items,omitempty"`
	Paging Paging      `json:"paging"`
}

// FileInfo is the per-file analysis outcome.
type FileInfo struct {
	Name    string         `json:"name"`
	Size    int64          `json:"size"`
	Status  ScanStatus     `json:"status"`
	Threats ThreatInfoList `json:"threats"`
	// Reason explains the status when the file was skipped or failed.
	Reason string `json:"reason,omitempty"`
}

// AnalysisResult lists analyzed files with pagination.
type AnalysisResult struct {
	Items  []FileInfo `json:"items,omitempty"`
	Paging Paging     `json:"paging"`
}

// RepositoryInfo describes a scanned repository.
type RepositoryInfo struct {
	URL          string `json:"url"`
	Version      string `json:"version"`
	FilesScanned int    `json:"files_scanned"`
}

// ScanStatusInfo is the full status of one scan.
type ScanStatusInfo struct {
	ScanID      string       `json:"scan_id"`
	Status      ScanStatus   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Type        AnalysisType `json:"type"`
	// Repository is set for repository scans.
	Repository      *RepositoryInfo `json:"repository,omitempty"`
	AnalysisResults AnalysisResult  `json:"analysis_results"`
}

// GetScanStatusRequest filters and pages the per-file results returned with a
// scan's status.
type GetScanStatusRequest struct {
	// FileLimit caps the number of files returned. Zero means 10.
	FileLimit int
	// FileOffset is the pagination offset into the file list.
	FileOffset int
	// Query filters vulnerabilities by search string.
	Query string
	// Severity keeps only files with findings at the given severities.
	Severity []Severity
	// RiskCategory keeps only files in the given risk category.
	RiskCategory RiskCategory
}

func (r *GetScanStatusRequest) params() url.Values {
	v := url.Values{}
	limit := r.FileLimit
	if limit == 0 {
		limit = 10
	}
	v.Set("file_limit", strconv.Itoa(limit))
	v.Set("file_offset", strconv.Itoa(r.FileOffset))
	if r.Query != "" {
		v.Set("query", r.Query)
	}
	for _, s := range r.Severity {
		v.Add("severity", s.String())
	}
	if r.RiskCategory != "" {
		v.Set("risk_category", r.RiskCategory.String())
	}
	return v
}

// GetScanStatusResponse wraps the scan status details.
type GetScanStatusResponse struct {
	ScanStatusInfo ScanStatusInfo `json:"scan_status_info"`
}

// ScanSummary is the high-level view of one scan in a listing.
type ScanSummary struct {
	ScanID       string       `json:"scan_id"`
	Name         string       `json:"name"`
	Type         AnalysisType `json:"type"`
	FilesScanned int          `json:"files_scanned"`
	CreatedAt    time.Time    `json:"created_at"`
	// IssuesBySeverity maps severity names to issue counts.
	IssuesBySeverity map[string]int `json:"issues_by_severity,omitempty"`
	Status           ScanStatus     `json:"status"`
}

// Scans is a page of scan summaries.
type Scans struct {
	Items  []ScanSummary `json:"items,omitempty"`
	Paging Paging        `json:"paging"`
}

// ListScansRequest filters and pages the scan listing.
type ListScansRequest struct {
	// Limit caps the number of scans returned. Zero means 100.
	Limit int
	// Offset is the pagination offset.
	Offset int
	// Name filters by file or repository name.
	Name string
	// ScanDate filters by creation date.
	ScanDate time.Time
	// Type filters by analysis type.
	Type AnalysisType
	// Severity filters by threat severity levels.
	Severity []Severity
	// Status filters by scan status values.
	Status []ScanStatus
}

func (r *ListScansRequest) params() url.Values {
	v := url.Values{}
	limit := r.Limit
	if limit == 0 {
		limit = 100
	}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(r.Offset))
	if r.Name != "" {
		v.Set("name", r.Name)
	}
	if !r.ScanDate.IsZero() {
		v.Set("scan_date", r.ScanDate.UTC().Format(time.RFC3339))
	}
	if r.Type != "" {
		v.Set("type", r.Type.String())
	}
	for _, s := range r.Severity {
		v.Add("severity", s.String())
	}
	for _, s := range r.Status {
		v.Add("status", s.String())
	}
	return v
}

// ListScansResponse is the scan listing with pagination.
type ListScansResponse struct {
	Scans Scans `json:"scans"`
}
