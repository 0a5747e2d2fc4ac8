package analyzer

// Status represents the verdict assigned to a scanned file
type Status string

const (
	StatusClean      Status = "CLEAN"
	StatusSuspicious Status = "SUSPICIOUS"
	StatusMalicious  Status = "MALICIOUS"
	StatusNotFound   Status = "NOT_FOUND"
	StatusQueued     Status = "QUEUED"
)

// FileReport is the decoded body of a file report lookup
type FileReport struct {
	ResponseCode int                     `json:"response_code"`
	VerboseMsg   string                  `json:"verbose_msg,omitempty"`
	Resource     string                  `json:"resource,omitempty"`
	ScanID       string                  `json:"scan_id,omitempty"`
	MD5          string                  `json:"md5,omitempty"`
	SHA1         string                  `json:"sha1,omitempty"`
	SHA256       string                  `json:"sha256,omitempty"`
	ScanDate     string                  `json:"scan_date,omitempty"`
	Permalink    string                  `json:"permalink,omitempty"`
	Positives    int                     `json:"positives"`
	Total        int                     `json:"total"`
	Scans        map[string]EngineResult `json:"scans,omitempty"`
}

// EngineResult is one engine's entry in a file report
type EngineResult struct {
	Detected bool   `json:"detected"`
	Version  string `json:"version,omitempty"`
	Result   string `json:"result,omitempty"`
	Update   string `json:"update,omitempty"`
}

// Subject pairs a looked-up resource with the report the service returned
type Subject struct {
	Resource string
	Source   string // local path or file:line the resource came from
	Report   *FileReport
}

// Detection is a single engine that flagged a file
type Detection struct {
	Engine  string `json:"engine"`
	Result  string `json:"result"`
	Version string `json:"version,omitempty"`
}

// FileAnalysis contains the verdict for a single resource
type FileAnalysis struct {
	Resource   string      `json:"resource"`
	Source     string      `json:"source,omitempty"`
	Status     Status      `json:"status"`
	Message    string      `json:"message"`
	SHA256     string      `json:"sha256,omitempty"`
	Positives  int         `json:"positives"`
	Total      int         `json:"total"`
	ScanDate   string      `json:"scan_date,omitempty"`
	Permalink  string      `json:"permalink,omitempty"`
	Detections []Detection `json:"detections,omitempty"`
}

// Summary contains high-level statistics
type Summary struct {
	TotalFiles      int      `json:"total_files"`
	CleanFiles      int      `json:"clean_files"`
	MaliciousFiles  []string `json:"malicious_files,omitempty"`
	SuspiciousFiles []string `json:"suspicious_files,omitempty"`
	NotFoundFiles   []string `json:"not_found_files,omitempty"`
	QueuedFiles     []string `json:"queued_files,omitempty"`
}

// Result contains the complete analysis result
type Result struct {
	Summary Summary                  `json:"summary"`
	Files   map[string]*FileAnalysis `json:"files"`
}

// Config contains analyzer configuration
type Config struct {
	SuspiciousThreshold int
	MaliciousThreshold  int
}

// DefaultConfig returns the thresholds used when none are configured
func DefaultConfig() Config {
	return Config{SuspiciousThreshold: 1, MaliciousThreshold: 5}
}
