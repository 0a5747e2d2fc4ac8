package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/filescan/internal/analyzer"
	"github.com/ppiankov/filescan/internal/baseline"
	"github.com/ppiankov/filescan/internal/filescan"
	"github.com/ppiankov/filescan/internal/report"
	"github.com/ppiankov/filescan/internal/scanner"
	"github.com/spf13/cobra"
)

var reportFlags struct {
	from                string
	offset              string
	allInfo             bool
	outputFormat        string
	outputFile          string
	baselinePath        string
	updateBaseline      bool
	failOnMalicious     bool
	failOnSuspicious    bool
	suspiciousThreshold int
	maliciousThreshold  int
}

var reportCmd = &cobra.Command{
	Use:   "report [resource]...",
	Short: "Fetch and grade analysis reports",
	Long: `Fetches the latest report for each resource (MD5, SHA-1, SHA-256 or scan id)
and grades it by the number of engines that flagged it. --from reads hashes
out of an indicator list or a directory of them.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFlags.from, "from", "", "File or directory to read hashes from")
	reportCmd.Flags().StringVar(&reportFlags.offset, "offset", "", "Pagination token sent with the first lookup")
	reportCmd.Flags().BoolVar(&reportFlags.allInfo, "all-info", false, "Request extended report data (private API keys only)")
	reportCmd.Flags().StringVarP(&reportFlags.outputFormat, "format", "f", "text", "Output format: text, json, sarif, spectrehub or raw")
	reportCmd.Flags().StringVarP(&reportFlags.outputFile, "output", "o", "", "Output file (default: stdout)")
	reportCmd.Flags().StringVar(&reportFlags.baselinePath, "baseline", "", "Path to previous JSON report for diff comparison")
	reportCmd.Flags().BoolVar(&reportFlags.updateBaseline, "update-baseline", false, "Write current results as the new baseline (requires --output)")
	reportCmd.Flags().BoolVar(&reportFlags.failOnMalicious, "fail-on-malicious", false, "Exit with error if malicious files found")
	reportCmd.Flags().BoolVar(&reportFlags.failOnSuspicious, "fail-on-suspicious", false, "Exit with error if suspicious files found")
	reportCmd.Flags().IntVar(&reportFlags.suspiciousThreshold, "suspicious-threshold", 1, "Detections at which a file is suspicious")
	reportCmd.Flags().IntVar(&reportFlags.maliciousThreshold, "malicious-threshold", 5, "Detections at which a file is malicious")
}

func runReport(cmd *cobra.Command, args []string) error {
	applyConfigToVerdictFlags(cmd, &reportFlags.outputFormat, &reportFlags.suspiciousThreshold, &reportFlags.maliciousThreshold)
	raw := reportFlags.outputFormat == "raw"
	if !raw {
		if _, err := selectReporter(reportFlags.outputFormat, nil); err != nil {
			return err
		}
	}
	if len(args) == 0 && reportFlags.from == "" {
		return fmt.Errorf("nothing to look up: pass resources or --from")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	start := time.Now()

	var indicators []scanner.Indicator
	if reportFlags.from != "" {
		printStatus("Reading hashes from %s", reportFlags.from)
		found, err := scanner.NewIndicatorScanner(reportFlags.from).Scan(ctx)
		if err != nil {
			return enhanceError("indicator scan", err)
		}
		indicators = found
		printStatus("Found %d hashes", len(indicators))
	}

	subjects := make([]analyzer.Subject, 0, len(args)+len(indicators))
	for _, arg := range args {
		subjects = append(subjects, analyzer.Subject{Resource: arg})
	}
	for _, ind := range indicators {
		subjects = append(subjects, analyzer.Subject{
			Resource: ind.Hash,
			Source:   fmt.Sprintf("%s:%d", ind.File, ind.Line),
		})
	}

	client, err := newFileScan()
	if err != nil {
		return enhanceError("client initialization", err)
	}
	defer filescan.Put(&client)
	client.SetAllInfo(reportFlags.allInfo)
	if reportFlags.offset != "" {
		client.SetOffset(reportFlags.offset)
	}

	writer, closeOutput, err := openOutput(reportFlags.outputFile, cmd.OutOrStdout())
	if err != nil {
		return enhanceError("output file creation", err)
	}
	defer func() { _ = closeOutput() }()

	for i := range subjects {
		if _, err := client.Report(ctx, subjects[i].Resource); err != nil {
			return enhanceError("report", err)
		}
		if raw {
			if err := printReply(writer, client, subjects[i].Resource, "raw"); err != nil {
				return enhanceError("output", err)
			}
			continue
		}
		var fr analyzer.FileReport
		if err := client.Response().Decode(&fr); err != nil {
			return enhanceError("report decode", err)
		}
		subjects[i].Report = &fr
	}
	if raw {
		return nil
	}

	config := analyzer.Config{
		SuspiciousThreshold: reportFlags.suspiciousThreshold,
		MaliciousThreshold:  reportFlags.maliciousThreshold,
	}
	analysis := analyzer.Analyze(subjects, config)

	reportData := report.Data{
		Tool:      "filescan",
		Version:   GetVersion(),
		Timestamp: time.Now(),
		Config: report.Config{
			Source:              reportFlags.from,
			BaseURL:             rootFlags.baseURL,
			SuspiciousThreshold: reportFlags.suspiciousThreshold,
			MaliciousThreshold:  reportFlags.maliciousThreshold,
		},
		Summary:    analysis.Summary,
		Files:      analysis.Files,
		Indicators: indicators,
	}

	reporter, err := selectReporter(reportFlags.outputFormat, writer)
	if err != nil {
		return err
	}
	if err := reporter.Generate(reportData); err != nil {
		return enhanceError("report generation", err)
	}

	if reportFlags.baselinePath != "" {
		previous, err := baseline.LoadBaseline(reportFlags.baselinePath)
		if err != nil {
			return enhanceError("baseline load", err)
		}
		logDiff(baseline.Diff(baseline.FlattenFindings(reportData), previous))
	}

	if reportFlags.updateBaseline && reportFlags.outputFile != "" {
		if err := baseline.Save(reportFlags.outputFile, reportData); err != nil {
			return enhanceError("baseline write", err)
		}
		slog.Info("Updated baseline", slog.String("path", reportFlags.outputFile))
	}

	slog.Info("Lookup complete",
		slog.Int("file_count", analysis.Summary.TotalFiles),
		slog.Int("malicious", len(analysis.Summary.MaliciousFiles)),
		slog.Int("suspicious", len(analysis.Summary.SuspiciousFiles)),
		slog.Duration("duration", time.Since(start)),
	)

	if reportFlags.failOnMalicious && len(analysis.Summary.MaliciousFiles) > 0 {
		return fmt.Errorf("found %d malicious files", len(analysis.Summary.MaliciousFiles))
	}
	if reportFlags.failOnSuspicious && len(analysis.Summary.SuspiciousFiles) > 0 {
		return fmt.Errorf("found %d suspicious files", len(analysis.Summary.SuspiciousFiles))
	}
	return nil
}

func logDiff(diff baseline.DiffResult) {
	slog.Info("Baseline comparison",
		slog.Int("new", len(diff.New)),
		slog.Int("resolved", len(diff.Resolved)),
		slog.Int("unchanged", len(diff.Unchanged)),
	)
}

// applyConfigToVerdictFlags fills format and thresholds from the config file
// when the flags were not set explicitly
func applyConfigToVerdictFlags(cmd *cobra.Command, format *string, suspicious, malicious *int) {
	if !cmd.Flags().Lookup("format").Changed && cfg.Format != "" {
		*format = cfg.Format
	}
	if !cmd.Flags().Lookup("suspicious-threshold").Changed && cfg.SuspiciousThreshold > 0 {
		*suspicious = cfg.SuspiciousThreshold
	}
	if !cmd.Flags().Lookup("malicious-threshold").Changed && cfg.MaliciousThreshold > 0 {
		*malicious = cfg.MaliciousThreshold
	}
}
