package report

import (
	"time"

	"github.com/ppiankov/filescan/internal/analyzer"
	"github.com/ppiankov/filescan/internal/scanner"
)

// Reporter interface for different report formats
type Reporter interface {
	Generate(data Data) error
	GenerateClusters(data ClusterData) error
}

// Data contains all report data
type Data struct {
	Tool       string                            `json:"tool"`
	Version    string                            `json:"version"`
	Timestamp  time.Time                         `json:"timestamp"`
	Config     Config                            `json:"config"`
	Summary    analyzer.Summary                  `json:"summary"`
	Files      map[string]*analyzer.FileAnalysis `json:"files"`
	Indicators []scanner.Indicator               `json:"indicators,omitempty"`
}

// Config contains lookup configuration
type Config struct {
	Source              string `json:"source,omitempty"`
	BaseURL             string `json:"base_url,omitempty"`
	SuspiciousThreshold int    `json:"suspicious_threshold"`
	MaliciousThreshold  int    `json:"malicious_threshold"`
}

// ClusterData contains cluster report data
type ClusterData struct {
	Tool      string                      `json:"tool"`
	Version   string                      `json:"version"`
	Timestamp time.Time                   `json:"timestamp"`
	Date      string                      `json:"date"`
	Summary   analyzer.ClusterSummary     `json:"summary"`
	Clusters  []*analyzer.ClusterAnalysis `json:"clusters"`
}
