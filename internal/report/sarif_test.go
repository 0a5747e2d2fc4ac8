package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type sarifResultOutput struct {
	RuleID  string `json:"ruleId"`
	Level   string `json:"level"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	Locations []struct {
		PhysicalLocation *struct {
			ArtifactLocation struct {
				URI string `json:"uri"`
			} `json:"artifactLocation"`
			Region *struct {
				StartLine int `json:"startLine"`
			} `json:"region"`
		} `json:"physicalLocation"`
	} `json:"locations"`
}

type sarifOutput struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []struct {
		Tool struct {
			Driver struct {
				Name  string `json:"name"`
				Rules []struct {
					ID string `json:"id"`
				} `json:"rules"`
			} `json:"driver"`
		} `json:"tool"`
		Results []sarifResultOutput `json:"results"`
	} `json:"runs"`
}

func decodeSARIF(t *testing.T, buf *bytes.Buffer) sarifOutput {
	t.Helper()
	var decoded sarifOutput
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid SARIF JSON: %v", err)
	}
	if decoded.Version != sarifVersion || decoded.Schema != sarifSchema {
		t.Fatalf("unexpected SARIF header: %s %s", decoded.Version, decoded.Schema)
	}
	if len(decoded.Runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(decoded.Runs))
	}
	return decoded
}

func TestSARIFReporter_Generate(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewSARIFReporter(&buf)

	if err := reporter.Generate(sampleData()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	decoded := decodeSARIF(t, &buf)
	run := decoded.Runs[0]
	if run.Tool.Driver.Name != "filescan" {
		t.Fatalf("unexpected driver name %q", run.Tool.Driver.Name)
	}
	// clean files produce no result
	if len(run.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(run.Results))
	}
	if len(run.Tool.Driver.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(run.Tool.Driver.Rules))
	}

	malicious, ok := findResult(run.Results, sarifRuleMalicious)
	if !ok {
		t.Fatalf("missing result for %s", sarifRuleMalicious)
	}
	if malicious.Level != "error" {
		t.Fatalf("expected malicious level error, got %q", malicious.Level)
	}
	if !strings.HasPrefix(malicious.Message.Text, badHash+": ") {
		t.Fatalf("expected message to name the resource, got %q", malicious.Message.Text)
	}
	loc := malicious.Locations[0].PhysicalLocation
	if loc.ArtifactLocation.URI != "iocs/feed.yaml" || loc.Region == nil || loc.Region.StartLine != 4 {
		t.Fatalf("expected indicator location, got %+v", loc)
	}

	suspicious, ok := findResult(run.Results, sarifRuleSuspicious)
	if !ok {
		t.Fatalf("missing result for %s", sarifRuleSuspicious)
	}
	if got := suspicious.Locations[0].PhysicalLocation.ArtifactLocation.URI; got != "samples/dropper.bin" {
		t.Fatalf("expected source fallback location, got %q", got)
	}
	if suspicious.Locations[0].PhysicalLocation.Region != nil {
		t.Fatal("expected no region for source fallback")
	}

	notFound, ok := findResult(run.Results, sarifRuleNotFound)
	if !ok {
		t.Fatalf("missing result for %s", sarifRuleNotFound)
	}
	if notFound.Level != "note" {
		t.Fatalf("expected not found level note, got %q", notFound.Level)
	}
	if got := notFound.Locations[0].PhysicalLocation.Region.StartLine; got != 9 {
		t.Fatalf("expected line 9, got %d", got)
	}
}

func TestSARIFReporter_GenerateClusters(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewSARIFReporter(&buf)

	if err := reporter.GenerateClusters(sampleClusters()); err != nil {
		t.Fatalf("GenerateClusters failed: %v", err)
	}

	decoded := decodeSARIF(t, &buf)
	results := decoded.Runs[0].Results
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	result, ok := findResult(results, sarifRuleMaliciousCluster)
	if !ok {
		t.Fatalf("missing result for %s", sarifRuleMaliciousCluster)
	}
	if got := result.Locations[0].PhysicalLocation.ArtifactLocation.URI; got != "cluster:2024-04-04/c-bad" {
		t.Fatalf("unexpected cluster location %q", got)
	}
}

func findResult(results []sarifResultOutput, ruleID string) (sarifResultOutput, bool) {
	for _, result := range results {
		if result.RuleID == ruleID {
			return result, true
		}
	}
	return sarifResultOutput{}, false
}
