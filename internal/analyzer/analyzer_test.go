package analyzer

import (
	"testing"
)

func presentReport(positives, total int, detected ...string) *FileReport {
	scans := make(map[string]EngineResult)
	for i := 0; i < total; i++ {
		scans[string(rune('a'+i))+"-engine"] = EngineResult{Version: "1.0"}
	}
	for _, engine := range detected {
		scans[engine] = EngineResult{Detected: true, Result: "Trojan.Generic", Version: "2.1"}
	}
	return &FileReport{
		ResponseCode: 1,
		SHA256:       "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ScanDate:     "2024-03-05 12:07:09",
		Permalink:    "https://example.com/file/e3b0/analysis/",
		Positives:    positives,
		Total:        total,
		Scans:        scans,
	}
}

func TestAnalyze_Clean(t *testing.T) {
	result := Analyze([]Subject{{Resource: "abc", Report: presentReport(0, 3)}}, DefaultConfig())

	analysis := result.Files["abc"]
	if analysis.Status != StatusClean {
		t.Fatalf("expected CLEAN, got %s", analysis.Status)
	}
	if result.Summary.CleanFiles != 1 || result.Summary.TotalFiles != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if len(analysis.Detections) != 0 {
		t.Fatalf("expected no detections, got %v", analysis.Detections)
	}
}

func TestAnalyze_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		positives int
		want      Status
	}{
		{"below suspicious", 0, StatusClean},
		{"suspicious", 2, StatusSuspicious},
		{"at malicious", 5, StatusMalicious},
		{"above malicious", 40, StatusMalicious},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Analyze([]Subject{{Resource: "r", Report: presentReport(tt.positives, 60)}},
				Config{SuspiciousThreshold: 2, MaliciousThreshold: 5})
			if got := result.Files["r"].Status; got != tt.want {
				t.Fatalf("positives=%d: expected %s, got %s", tt.positives, tt.want, got)
			}
		})
	}
}

func TestAnalyze_DetectionsSorted(t *testing.T) {
	report := presentReport(3, 10, "Zeta", "Alpha", "Mid")
	result := Analyze([]Subject{{Resource: "r", Source: "samples/x.bin", Report: report}}, DefaultConfig())

	analysis := result.Files["r"]
	if analysis.Status != StatusSuspicious {
		t.Fatalf("expected SUSPICIOUS, got %s", analysis.Status)
	}
	if analysis.Source != "samples/x.bin" {
		t.Fatalf("source not carried: %q", analysis.Source)
	}
	want := []string{"Alpha", "Mid", "Zeta"}
	if len(analysis.Detections) != len(want) {
		t.Fatalf("expected %d detections, got %d", len(want), len(analysis.Detections))
	}
	for i, d := range analysis.Detections {
		if d.Engine != want[i] {
			t.Fatalf("detection %d: expected %s, got %s", i, want[i], d.Engine)
		}
		if d.Result != "Trojan.Generic" {
			t.Fatalf("unexpected result %q", d.Result)
		}
	}
}

func TestAnalyze_PositivesFromScans(t *testing.T) {
	report := &FileReport{
		ResponseCode: 1,
		Scans: map[string]EngineResult{
			"A": {Detected: true}, "B": {Detected: true}, "C": {Detected: true},
			"D": {Detected: true}, "E": {Detected: true}, "F": {},
		},
	}
	result := Analyze([]Subject{{Resource: "r", Report: report}}, DefaultConfig())

	analysis := result.Files["r"]
	if analysis.Positives != 5 || analysis.Total != 6 {
		t.Fatalf("expected 5/6, got %d/%d", analysis.Positives, analysis.Total)
	}
	if analysis.Status != StatusMalicious {
		t.Fatalf("expected MALICIOUS, got %s", analysis.Status)
	}
}

func TestAnalyze_NotFoundAndQueued(t *testing.T) {
	subjects := []Subject{
		{Resource: "missing", Report: &FileReport{ResponseCode: 0, VerboseMsg: "The requested resource is not among the finished, queued or pending scans"}},
		{Resource: "queued", Report: &FileReport{ResponseCode: -2}},
		{Resource: "empty"},
	}
	result := Analyze(subjects, DefaultConfig())

	if got := result.Files["missing"].Status; got != StatusNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", got)
	}
	if got := result.Files["missing"].Message; got == "" {
		t.Fatal("expected service message to be carried")
	}
	if got := result.Files["queued"].Status; got != StatusQueued {
		t.Fatalf("expected QUEUED, got %s", got)
	}
	if got := result.Files["empty"].Status; got != StatusNotFound {
		t.Fatalf("expected NOT_FOUND for nil report, got %s", got)
	}

	if len(result.Summary.NotFoundFiles) != 2 {
		t.Fatalf("expected 2 not found, got %v", result.Summary.NotFoundFiles)
	}
	if result.Summary.NotFoundFiles[0] != "empty" || result.Summary.NotFoundFiles[1] != "missing" {
		t.Fatalf("expected sorted summary, got %v", result.Summary.NotFoundFiles)
	}
	if len(result.Summary.QueuedFiles) != 1 {
		t.Fatalf("expected 1 queued, got %v", result.Summary.QueuedFiles)
	}
}

func TestAnalyze_ConfigNormalized(t *testing.T) {
	result := Analyze([]Subject{{Resource: "r", Report: presentReport(1, 10)}}, Config{})
	if got := result.Files["r"].Status; got != StatusSuspicious {
		t.Fatalf("zero config should use defaults, got %s", got)
	}

	result = Analyze([]Subject{{Resource: "r", Report: presentReport(3, 10)}},
		Config{SuspiciousThreshold: 3, MaliciousThreshold: 1})
	if got := result.Files["r"].Status; got != StatusMalicious {
		t.Fatalf("inverted thresholds should collapse, got %s", got)
	}
}
