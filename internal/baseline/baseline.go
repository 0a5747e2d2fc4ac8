package baseline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ppiankov/filescan/internal/analyzer"
	"github.com/ppiankov/filescan/internal/report"
)

// findingDetection marks a single engine flagging a resource
const findingDetection = "DETECTION"

// Finding is a flattened, identity-comparable issue from a lookup or cluster report.
type Finding struct {
	Type     string `json:"type"`
	Resource string `json:"resource"`
	Engine   string `json:"engine,omitempty"`
}

func (f Finding) key() string {
	if f.Engine != "" {
		return fmt.Sprintf("%s|%s|%s", f.Type, f.Resource, f.Engine)
	}
	return fmt.Sprintf("%s|%s", f.Type, f.Resource)
}

// DiffResult holds the outcome of comparing current findings against a baseline.
type DiffResult struct {
	New       []Finding
	Resolved  []Finding
	Unchanged []Finding
}

// FlattenFindings converts a lookup report into a flat finding list. Every
// non-clean file is one finding and every flagging engine is another, so a
// newly detecting engine shows up as new even when the verdict is unchanged.
func FlattenFindings(data report.Data) []Finding {
	var findings []Finding
	for resource, fa := range data.Files {
		if fa.Status == analyzer.StatusClean {
			continue
		}
		findings = append(findings, Finding{Type: string(fa.Status), Resource: resource})
		for _, d := range fa.Detections {
			findings = append(findings, Finding{Type: findingDetection, Resource: resource, Engine: d.Engine})
		}
	}
	return findings
}

// FlattenClusterFindings converts a cluster report into a flat finding list.
func FlattenClusterFindings(data report.ClusterData) []Finding {
	var findings []Finding
	for _, c := range data.Clusters {
		if c.Status != analyzer.StatusClean {
			findings = append(findings, Finding{Type: string(c.Status), Resource: c.ID})
		}
	}
	return findings
}

// LoadBaseline reads a previous JSON lookup report and extracts findings.
func LoadBaseline(path string) ([]Finding, error) {
	var data report.Data
	if err := load(path, &data); err != nil {
		return nil, err
	}
	return FlattenFindings(data), nil
}

// LoadClusterBaseline reads a previous JSON cluster report and extracts findings.
func LoadClusterBaseline(path string) ([]Finding, error) {
	var data report.ClusterData
	if err := load(path, &data); err != nil {
		return nil, err
	}
	return FlattenClusterFindings(data), nil
}

// Save writes v as an indented JSON baseline.
func Save(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	return nil
}

func load(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read baseline: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse baseline: %w", err)
	}
	return nil
}

// Diff compares current findings against a baseline.
func Diff(current, baseline []Finding) DiffResult {
	baseMap := make(map[string]struct{}, len(baseline))
	for _, f := range baseline {
		baseMap[f.key()] = struct{}{}
	}
	curMap := make(map[string]struct{}, len(current))
	for _, f := range current {
		curMap[f.key()] = struct{}{}
	}

	var result DiffResult
	for _, f := range current {
		if _, exists := baseMap[f.key()]; exists {
			result.Unchanged = append(result.Unchanged, f)
		} else {
			result.New = append(result.New, f)
		}
	}
	for _, f := range baseline {
		if _, exists := curMap[f.key()]; !exists {
			result.Resolved = append(result.Resolved, f)
		}
	}
	return result
}
