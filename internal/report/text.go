package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/ppiankov/filescan/internal/analyzer"
)

// maxListed caps how many clean entries are printed individually
const maxListed = 10

// TextReporter generates human-readable text reports
type TextReporter struct {
	writer io.Writer
}

// NewTextReporter creates a new text reporter
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{writer: w}
}

// Generate generates a text report
func (r *TextReporter) Generate(data Data) error {
	// Header
	fmt.Fprintf(r.writer, "FileScan Report\n")
	fmt.Fprintf(r.writer, "===============\n\n")
	fmt.Fprintf(r.writer, "Scan Time: %s\n", data.Timestamp.Format("2006-01-02 15:04:05"))
	if data.Config.Source != "" {
		fmt.Fprintf(r.writer, "Source: %s\n", data.Config.Source)
	}
	fmt.Fprintf(r.writer, "Thresholds: suspicious >= %d, malicious >= %d\n",
		data.Config.SuspiciousThreshold, data.Config.MaliciousThreshold)
	fmt.Fprintf(r.writer, "\n")

	r.printSummary(data.Summary)
	r.printFindings(data.Files, data.Summary)

	return nil
}

func (r *TextReporter) printSummary(summary analyzer.Summary) {
	fmt.Fprintf(r.writer, "Summary\n")
	fmt.Fprintf(r.writer, "-------\n")
	fmt.Fprintf(r.writer, "Total Files Checked: %d\n", summary.TotalFiles)
	fmt.Fprintf(r.writer, "Clean: %d\n", summary.CleanFiles)

	if len(summary.MaliciousFiles) > 0 {
		fmt.Fprintf(r.writer, "%s: %d\n", color.RedString("Malicious"), len(summary.MaliciousFiles))
	}
	if len(summary.SuspiciousFiles) > 0 {
		fmt.Fprintf(r.writer, "%s: %d\n", color.YellowString("Suspicious"), len(summary.SuspiciousFiles))
	}
	if len(summary.QueuedFiles) > 0 {
		fmt.Fprintf(r.writer, "%s: %d\n", color.CyanString("Queued"), len(summary.QueuedFiles))
	}
	if len(summary.NotFoundFiles) > 0 {
		fmt.Fprintf(r.writer, "%s: %d\n", color.MagentaString("Not Found"), len(summary.NotFoundFiles))
	}

	fmt.Fprintf(r.writer, "\n")
}

func (r *TextReporter) printFindings(files map[string]*analyzer.FileAnalysis, summary analyzer.Summary) {
	r.printSection(files, summary.MaliciousFiles, "Malicious Files", "[MALICIOUS]", color.RedString, true)
	r.printSection(files, summary.SuspiciousFiles, "Suspicious Files", "[SUSPICIOUS]", color.YellowString, true)
	r.printSection(files, summary.QueuedFiles, "Queued Files", "[QUEUED]", color.CyanString, false)
	r.printSection(files, summary.NotFoundFiles, "Unknown Files", "[NOT_FOUND]", color.MagentaString, false)

	if summary.CleanFiles == 0 {
		return
	}

	fmt.Fprintf(r.writer, "%s\n", color.GreenString("Clean Files: %d", summary.CleanFiles))
	fmt.Fprintf(r.writer, "%s\n", strings.Repeat("-", 50))

	var clean []string
	for resource, analysis := range files {
		if analysis.Status == analyzer.StatusClean {
			clean = append(clean, resource)
		}
	}
	sort.Strings(clean)

	for i, resource := range clean {
		if i == maxListed {
			fmt.Fprintf(r.writer, "  ... and %d more\n", len(clean)-maxListed)
			break
		}
		fmt.Fprintf(r.writer, "  %s: %s\n", color.GreenString("[CLEAN]"), label(files[resource]))
	}
	fmt.Fprintf(r.writer, "\n")
}

func (r *TextReporter) printSection(files map[string]*analyzer.FileAnalysis, resources []string, title, tag string, paint func(string, ...interface{}) string, detail bool) {
	if len(resources) == 0 {
		return
	}

	fmt.Fprintf(r.writer, "%s\n", paint(title))
	fmt.Fprintf(r.writer, "%s\n", strings.Repeat("-", 50))

	sorted := append([]string(nil), resources...)
	sort.Strings(sorted)
	for _, resource := range sorted {
		analysis := files[resource]
		if analysis == nil {
			continue
		}
		fmt.Fprintf(r.writer, "  %s: %s\n", paint(tag), label(analysis))
		if analysis.Message != "" {
			fmt.Fprintf(r.writer, "    %s\n", analysis.Message)
		}
		if !detail {
			continue
		}
		if analysis.Permalink != "" {
			fmt.Fprintf(r.writer, "    %s\n", analysis.Permalink)
		}
		if len(analysis.Detections) > 0 {
			fmt.Fprintf(r.writer, "    Detections:\n")
			for _, d := range analysis.Detections {
				fmt.Fprintf(r.writer, "      - %s: %s\n", d.Engine, d.Result)
			}
		}
	}
	fmt.Fprintf(r.writer, "\n")
}

// label names a file by where it came from when known
func label(analysis *analyzer.FileAnalysis) string {
	if analysis.Source != "" && analysis.Source != analysis.Resource {
		return fmt.Sprintf("%s (%s)", analysis.Source, analysis.Resource)
	}
	return analysis.Resource
}

// GenerateClusters generates a text cluster report
func (r *TextReporter) GenerateClusters(data ClusterData) error {
	fmt.Fprintf(r.writer, "FileScan Cluster Report\n")
	fmt.Fprintf(r.writer, "=======================\n\n")
	fmt.Fprintf(r.writer, "Scan Time: %s\n", data.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(r.writer, "Date: %s\n\n", data.Date)

	fmt.Fprintf(r.writer, "Summary\n")
	fmt.Fprintf(r.writer, "-------\n")
	fmt.Fprintf(r.writer, "Total Clusters: %d\n", data.Summary.TotalClusters)
	fmt.Fprintf(r.writer, "Total Files: %d\n", data.Summary.TotalFiles)
	fmt.Fprintf(r.writer, "Clean: %d\n", data.Summary.CleanClusters)
	if n := len(data.Summary.MaliciousClusters); n > 0 {
		fmt.Fprintf(r.writer, "%s: %d\n", color.RedString("Malicious"), n)
	}
	if n := len(data.Summary.SuspiciousClusters); n > 0 {
		fmt.Fprintf(r.writer, "%s: %d\n", color.YellowString("Suspicious"), n)
	}
	fmt.Fprintf(r.writer, "\n")

	if len(data.Clusters) == 0 {
		return nil
	}

	fmt.Fprintf(r.writer, "Clusters\n")
	fmt.Fprintf(r.writer, "%s\n", strings.Repeat("-", 70))
	for _, c := range data.Clusters {
		var tag string
		switch c.Status {
		case analyzer.StatusMalicious:
			tag = color.RedString("[MALICIOUS]")
		case analyzer.StatusSuspicious:
			tag = color.YellowString("[SUSPICIOUS]")
		default:
			tag = color.GreenString("[CLEAN]")
		}
		fmt.Fprintf(r.writer, "  %s: %s %s\n", tag, c.ID, c.Label)
		fmt.Fprintf(r.writer, "    %s\n", c.Message)
	}
	fmt.Fprintf(r.writer, "\n")

	return nil
}
