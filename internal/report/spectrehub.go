package report

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/ppiankov/filescan/internal/analyzer"
)

// spectre/v1 envelope types

type spectreEnvelope struct {
	Schema    string           `json:"schema"`
	Tool      string           `json:"tool"`
	Version   string           `json:"version"`
	Timestamp string           `json:"timestamp"`
	Target    spectreTarget    `json:"target"`
	Findings  []spectreFinding `json:"findings"`
	Summary   spectreSummary   `json:"summary"`
}

type spectreTarget struct {
	Type    string `json:"type"`
	URIHash string `json:"uri_hash"`
}

type spectreFinding struct {
	ID       string         `json:"id"`
	Severity string         `json:"severity"`
	Location string         `json:"location"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type spectreSummary struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Info   int `json:"info"`
}

// HashTarget produces a sha256 hash of the service endpoint and scanned
// source for target identification.
func HashTarget(baseURL, source string) string {
	h := sha256.Sum256([]byte(baseURL + ":" + source))
	return fmt.Sprintf("sha256:%x", h)
}

// SpectreHubReporter generates spectre/v1 JSON envelope output.
type SpectreHubReporter struct {
	writer io.Writer
}

// NewSpectreHubReporter creates a new SpectreHub reporter.
func NewSpectreHubReporter(w io.Writer) *SpectreHubReporter {
	return &SpectreHubReporter{writer: w}
}

// Generate writes lookup results as a spectre/v1 envelope.
func (r *SpectreHubReporter) Generate(data Data) error {
	envelope := newEnvelope(data.Version, data.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		HashTarget(data.Config.BaseURL, data.Config.Source))

	resources := make([]string, 0, len(data.Files))
	for resource := range data.Files {
		resources = append(resources, resource)
	}
	sort.Strings(resources)

	for _, resource := range resources {
		file := data.Files[resource]
		if file.Status == analyzer.StatusClean {
			continue
		}
		severity := fileStatusSeverity(file.Status)
		location := resource
		if file.Source != "" {
			location = file.Source
		}
		finding := spectreFinding{
			ID:       string(file.Status),
			Severity: severity,
			Location: location,
			Message:  file.Message,
		}
		if file.Total > 0 {
			finding.Metadata = map[string]any{
				"resource":  resource,
				"positives": file.Positives,
				"total":     file.Total,
				"permalink": file.Permalink,
			}
		}
		envelope.Findings = append(envelope.Findings, finding)
		countSeverity(&envelope.Summary, severity)
	}

	return r.write(envelope)
}

// GenerateClusters writes cluster results as a spectre/v1 envelope.
func (r *SpectreHubReporter) GenerateClusters(data ClusterData) error {
	envelope := newEnvelope(data.Version, data.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		HashTarget("clusters", data.Date))

	for _, c := range data.Clusters {
		if c.Status == analyzer.StatusClean {
			continue
		}
		severity := fileStatusSeverity(c.Status)
		envelope.Findings = append(envelope.Findings, spectreFinding{
			ID:       string(c.Status) + "_CLUSTER",
			Severity: severity,
			Location: c.ID,
			Message:  c.Message,
			Metadata: map[string]any{
				"label":         c.Label,
				"size":          c.Size,
				"avg_positives": c.AvgPositives,
			},
		})
		countSeverity(&envelope.Summary, severity)
	}

	return r.write(envelope)
}

func newEnvelope(version, timestamp, target string) spectreEnvelope {
	return spectreEnvelope{
		Schema:    "spectre/v1",
		Tool:      "filescan",
		Version:   version,
		Timestamp: timestamp,
		Target: spectreTarget{
			Type:    "file",
			URIHash: target,
		},
	}
}

func (r *SpectreHubReporter) write(envelope spectreEnvelope) error {
	envelope.Summary.Total = len(envelope.Findings)
	if envelope.Findings == nil {
		envelope.Findings = []spectreFinding{}
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope)
}

func fileStatusSeverity(status analyzer.Status) string {
	switch status {
	case analyzer.StatusMalicious:
		return "high"
	case analyzer.StatusSuspicious:
		return "medium"
	case analyzer.StatusNotFound:
		return "low"
	default:
		return "info"
	}
}

func countSeverity(s *spectreSummary, severity string) {
	switch severity {
	case "high":
		s.High++
	case "medium":
		s.Medium++
	case "low":
		s.Low++
	case "info":
		s.Info++
	}
}
