package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/filescan/internal/analyzer"
	"github.com/ppiankov/filescan/internal/baseline"
	"github.com/ppiankov/filescan/internal/filescan"
	"github.com/ppiankov/filescan/internal/report"
	"github.com/spf13/cobra"
)

const clusterDateLayout = "2006-01-02"

var clustersFlags struct {
	outputFormat        string
	outputFile          string
	baselinePath        string
	updateBaseline      bool
	suspiciousThreshold int
	maliciousThreshold  int
}

var clustersCmd = &cobra.Command{
	Use:   "clusters [YYYY-MM-DD]",
	Short: "Grade a day's similarity clusters",
	Long: `Fetches the file similarity clusters computed for a day (private API keys
only) and grades each by its average detection count. The date defaults to
yesterday (UTC).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClusters,
}

func init() {
	clustersCmd.Flags().StringVarP(&clustersFlags.outputFormat, "format", "f", "text", "Output format: text, json, sarif or spectrehub")
	clustersCmd.Flags().StringVarP(&clustersFlags.outputFile, "output", "o", "", "Output file (default: stdout)")
	clustersCmd.Flags().StringVar(&clustersFlags.baselinePath, "baseline", "", "Path to previous JSON cluster report for diff comparison")
	clustersCmd.Flags().BoolVar(&clustersFlags.updateBaseline, "update-baseline", false, "Write current results as the new baseline (requires --output)")
	clustersCmd.Flags().IntVar(&clustersFlags.suspiciousThreshold, "suspicious-threshold", 1, "Average detections at which a cluster is suspicious")
	clustersCmd.Flags().IntVar(&clustersFlags.maliciousThreshold, "malicious-threshold", 5, "Average detections at which a cluster is malicious")
}

func runClusters(cmd *cobra.Command, args []string) error {
	applyConfigToVerdictFlags(cmd, &clustersFlags.outputFormat, &clustersFlags.suspiciousThreshold, &clustersFlags.maliciousThreshold)
	if _, err := selectReporter(clustersFlags.outputFormat, nil); err != nil {
		return err
	}

	day := time.Now().UTC().AddDate(0, 0, -1).Format(clusterDateLayout)
	if len(args) == 1 {
		if _, err := time.Parse(clusterDateLayout, args[0]); err != nil {
			return fmt.Errorf("invalid date %q: use YYYY-MM-DD", args[0])
		}
		day = args[0]
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	client, err := newFileScan()
	if err != nil {
		return enhanceError("client initialization", err)
	}
	defer filescan.Put(&client)

	printStatus("Fetching clusters for %s", day)
	var clusters []filescan.Cluster
	if _, err := client.Clusters(ctx, day, filescan.Collect(&clusters)); err != nil {
		return enhanceError("clusters", err)
	}

	config := analyzer.Config{
		SuspiciousThreshold: clustersFlags.suspiciousThreshold,
		MaliciousThreshold:  clustersFlags.maliciousThreshold,
	}
	analysis := analyzer.AnalyzeClusters(day, clusters, config)

	data := report.ClusterData{
		Tool:      "filescan",
		Version:   GetVersion(),
		Timestamp: time.Now(),
		Date:      day,
		Summary:   analysis.Summary,
		Clusters:  analysis.Clusters,
	}

	writer, closeOutput, err := openOutput(clustersFlags.outputFile, cmd.OutOrStdout())
	if err != nil {
		return enhanceError("output file creation", err)
	}
	defer func() { _ = closeOutput() }()

	reporter, err := selectReporter(clustersFlags.outputFormat, writer)
	if err != nil {
		return err
	}
	if err := reporter.GenerateClusters(data); err != nil {
		return enhanceError("report generation", err)
	}

	if clustersFlags.baselinePath != "" {
		previous, err := baseline.LoadClusterBaseline(clustersFlags.baselinePath)
		if err != nil {
			return enhanceError("baseline load", err)
		}
		logDiff(baseline.Diff(baseline.FlattenClusterFindings(data), previous))
	}

	if clustersFlags.updateBaseline && clustersFlags.outputFile != "" {
		if err := baseline.Save(clustersFlags.outputFile, data); err != nil {
			return enhanceError("baseline write", err)
		}
		slog.Info("Updated baseline", slog.String("path", clustersFlags.outputFile))
	}

	slog.Info("Clusters complete",
		slog.String("date", day),
		slog.Int("cluster_count", analysis.Summary.TotalClusters),
		slog.Int("file_count", analysis.Summary.TotalFiles),
	)
	return nil
}
