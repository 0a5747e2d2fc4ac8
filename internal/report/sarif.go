package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ppiankov/filescan/internal/analyzer"
	"github.com/ppiankov/filescan/internal/scanner"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"

	sarifRuleMalicious         = "filescan/MALICIOUS"
	sarifRuleSuspicious        = "filescan/SUSPICIOUS"
	sarifRuleNotFound          = "filescan/NOT_FOUND"
	sarifRuleMaliciousCluster  = "filescan/MALICIOUS_CLUSTER"
	sarifRuleSuspiciousCluster = "filescan/SUSPICIOUS_CLUSTER"
)

type SARIFReporter struct {
	writer io.Writer
}

func NewSARIFReporter(w io.Writer) *SARIFReporter {
	return &SARIFReporter{writer: w}
}

type sarifLog struct {
	Schema  string     `json:"$schema,omitempty"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name,omitempty"`
	ShortDescription sarifMessage `json:"shortDescription,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level,omitempty"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

type sarifRuleMeta struct {
	Name        string
	Description string
	Level       string
}

var sarifRules = map[string]sarifRuleMeta{
	sarifRuleMalicious: {
		Name:        "MaliciousFile",
		Description: "File is flagged by at least the malicious threshold of engines",
		Level:       "error",
	},
	sarifRuleSuspicious: {
		Name:        "SuspiciousFile",
		Description: "File is flagged by some engines",
		Level:       "warning",
	},
	sarifRuleNotFound: {
		Name:        "UnknownFile",
		Description: "File has never been analysed by the service",
		Level:       "note",
	},
	sarifRuleMaliciousCluster: {
		Name:        "MaliciousCluster",
		Description: "Similarity cluster averages at least the malicious threshold of detections",
		Level:       "error",
	},
	sarifRuleSuspiciousCluster: {
		Name:        "SuspiciousCluster",
		Description: "Similarity cluster has some detections",
		Level:       "warning",
	},
}

func (r *SARIFReporter) Generate(data Data) error {
	indicatorsByHash := collectIndicators(data.Indicators)

	var results []sarifResult
	usedRules := make(map[string]sarifRule)

	resources := make([]string, 0, len(data.Files))
	for resource := range data.Files {
		resources = append(resources, resource)
	}
	sort.Strings(resources)

	for _, resource := range resources {
		analysis := data.Files[resource]
		if analysis == nil {
			continue
		}

		var ruleID string
		switch analysis.Status {
		case analyzer.StatusMalicious:
			ruleID = sarifRuleMalicious
		case analyzer.StatusSuspicious:
			ruleID = sarifRuleSuspicious
		case analyzer.StatusNotFound:
			ruleID = sarifRuleNotFound
		default:
			continue
		}

		message := fmt.Sprintf("%s: %s", resource, fallbackMessage(analysis.Message, ruleID))
		locations := locationsWithFallback(indicatorsByHash[strings.ToLower(resource)], fileURI(analysis))
		results = appendResult(results, usedRules, ruleID, message, locations)
	}

	return r.writeSARIF(data.Tool, data.Version, results, usedRules)
}

func (r *SARIFReporter) GenerateClusters(data ClusterData) error {
	var results []sarifResult
	usedRules := make(map[string]sarifRule)

	for _, c := range data.Clusters {
		if c == nil {
			continue
		}
		var ruleID string
		switch c.Status {
		case analyzer.StatusMalicious:
			ruleID = sarifRuleMaliciousCluster
		case analyzer.StatusSuspicious:
			ruleID = sarifRuleSuspiciousCluster
		default:
			continue
		}
		message := fmt.Sprintf("Cluster %s (%s): %s", c.ID, c.Label, c.Message)
		locations := locationsWithFallback(nil, "cluster:"+data.Date+"/"+c.ID)
		results = appendResult(results, usedRules, ruleID, message, locations)
	}

	return r.writeSARIF(data.Tool, data.Version, results, usedRules)
}

func (r *SARIFReporter) writeSARIF(toolName, toolVersion string, results []sarifResult, usedRules map[string]sarifRule) error {
	ruleIDs := make([]string, 0, len(usedRules))
	for id := range usedRules {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)

	rules := make([]sarifRule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		rules = append(rules, usedRules[id])
	}

	log := sarifLog{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:    toolName,
					Version: toolVersion,
					Rules:   rules,
				},
			},
			Results: results,
		}},
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(log)
}

func appendResult(results []sarifResult, usedRules map[string]sarifRule, ruleID, message string, locations []sarifLocation) []sarifResult {
	rule := sarifRule{ID: ruleID}
	level := "warning"
	if meta, ok := sarifRules[ruleID]; ok {
		rule.Name = meta.Name
		rule.ShortDescription = sarifMessage{Text: meta.Description}
		level = meta.Level
	}
	if message == "" {
		message = rule.ShortDescription.Text
	}
	if _, exists := usedRules[ruleID]; !exists {
		usedRules[ruleID] = rule
	}

	results = append(results, sarifResult{
		RuleID:    ruleID,
		Level:     level,
		Message:   sarifMessage{Text: message},
		Locations: locations,
	})

	return results
}

func fallbackMessage(message, ruleID string) string {
	if message != "" {
		return message
	}
	if meta, ok := sarifRules[ruleID]; ok {
		return meta.Description
	}
	return message
}

func collectIndicators(indicators []scanner.Indicator) map[string][]scanner.Indicator {
	byHash := make(map[string][]scanner.Indicator)
	for _, ind := range indicators {
		key := strings.ToLower(ind.Hash)
		byHash[key] = append(byHash[key], ind)
	}
	return byHash
}

func locationsWithFallback(refs []scanner.Indicator, fallbackURI string) []sarifLocation {
	locations := buildLocationsFromRefs(refs)
	if len(locations) > 0 {
		return locations
	}
	if fallbackURI == "" {
		return nil
	}
	return []sarifLocation{{
		PhysicalLocation: &sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{URI: fallbackURI},
		},
	}}
}

func buildLocationsFromRefs(refs []scanner.Indicator) []sarifLocation {
	type locationKey struct {
		file string
		line int
	}
	seen := make(map[locationKey]struct{})
	keys := make([]locationKey, 0, len(refs))
	for _, ref := range refs {
		if ref.File == "" {
			continue
		}
		key := locationKey{file: ref.File, line: ref.Line}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].file == keys[j].file {
			return keys[i].line < keys[j].line
		}
		return keys[i].file < keys[j].file
	})

	locations := make([]sarifLocation, 0, len(keys))
	for _, key := range keys {
		physical := &sarifPhysicalLocation{
			ArtifactLocation: sarifArtifactLocation{URI: key.file},
		}
		if key.line > 0 {
			physical.Region = &sarifRegion{StartLine: key.line}
		}
		locations = append(locations, sarifLocation{PhysicalLocation: physical})
	}
	return locations
}

// fileURI locates a finding that has no indicator entry
func fileURI(analysis *analyzer.FileAnalysis) string {
	if analysis.Source != "" {
		return analysis.Source
	}
	if analysis.Permalink != "" {
		return analysis.Permalink
	}
	return analysis.Resource
}
