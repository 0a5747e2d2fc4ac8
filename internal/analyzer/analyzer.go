package analyzer

import (
	"fmt"
	"sort"
)

const (
	responseCodeQueued  = -2
	responseCodePresent = 1
)

// Analyze assigns a verdict to every subject and builds the summary
func Analyze(subjects []Subject, config Config) *Result {
	config = normalize(config)
	result := &Result{
		Files: make(map[string]*FileAnalysis),
	}

	for _, subject := range subjects {
		analysis := analyzeFile(subject, config)
		result.Files[subject.Resource] = analysis
	}

	for _, resource := range sortedResources(result.Files) {
		analysis := result.Files[resource]
		result.Summary.TotalFiles++

		switch analysis.Status {
		case StatusClean:
			result.Summary.CleanFiles++
		case StatusMalicious:
			result.Summary.MaliciousFiles = append(result.Summary.MaliciousFiles, resource)
		case StatusSuspicious:
			result.Summary.SuspiciousFiles = append(result.Summary.SuspiciousFiles, resource)
		case StatusNotFound:
			result.Summary.NotFoundFiles = append(result.Summary.NotFoundFiles, resource)
		case StatusQueued:
			result.Summary.QueuedFiles = append(result.Summary.QueuedFiles, resource)
		}
	}

	return result
}

func analyzeFile(subject Subject, config Config) *FileAnalysis {
	analysis := &FileAnalysis{
		Resource: subject.Resource,
		Source:   subject.Source,
	}

	report := subject.Report
	if report == nil {
		analysis.Status = StatusNotFound
		analysis.Message = "No report returned"
		return analysis
	}

	switch report.ResponseCode {
	case responseCodePresent:
	case responseCodeQueued:
		analysis.Status = StatusQueued
		analysis.Message = "Queued for analysis"
		return analysis
	default:
		analysis.Status = StatusNotFound
		analysis.Message = "Not present in the service dataset"
		if report.VerboseMsg != "" {
			analysis.Message = report.VerboseMsg
		}
		return analysis
	}

	analysis.SHA256 = report.SHA256
	analysis.Positives = report.Positives
	analysis.Total = report.Total
	analysis.ScanDate = report.ScanDate
	analysis.Permalink = report.Permalink
	analysis.Detections = detections(report.Scans)

	// Older reports omit positives; fall back to counting engines.
	if analysis.Positives == 0 && len(analysis.Detections) > 0 {
		analysis.Positives = len(analysis.Detections)
	}
	if analysis.Total == 0 {
		analysis.Total = len(report.Scans)
	}

	switch {
	case analysis.Positives >= config.MaliciousThreshold:
		analysis.Status = StatusMalicious
		analysis.Message = fmt.Sprintf("Detected by %d/%d engines", analysis.Positives, analysis.Total)
	case analysis.Positives >= config.SuspiciousThreshold:
		analysis.Status = StatusSuspicious
		analysis.Message = fmt.Sprintf("Detected by %d/%d engines", analysis.Positives, analysis.Total)
	default:
		analysis.Status = StatusClean
		analysis.Message = fmt.Sprintf("No detections across %d engines", analysis.Total)
	}

	return analysis
}

// detections returns the flagging engines sorted by name
func detections(scans map[string]EngineResult) []Detection {
	var out []Detection
	for engine, res := range scans {
		if !res.Detected {
			continue
		}
		out = append(out, Detection{
			Engine:  engine,
			Result:  res.Result,
			Version: res.Version,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Engine < out[j].Engine })
	return out
}

func normalize(config Config) Config {
	def := DefaultConfig()
	if config.SuspiciousThreshold <= 0 {
		config.SuspiciousThreshold = def.SuspiciousThreshold
	}
	if config.MaliciousThreshold <= 0 {
		config.MaliciousThreshold = def.MaliciousThreshold
	}
	if config.MaliciousThreshold < config.SuspiciousThreshold {
		config.MaliciousThreshold = config.SuspiciousThreshold
	}
	return config
}

func sortedResources(files map[string]*FileAnalysis) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
