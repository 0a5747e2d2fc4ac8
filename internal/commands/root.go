package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/filescan/internal/config"
	"github.com/ppiankov/filescan/internal/filescan"
	"github.com/ppiankov/filescan/internal/logging"
	"github.com/spf13/cobra"
)

const apiKeyEnv = "FILESCAN_API_KEY"

var (
	verbose bool
	version string
	commit  string
	date    string
	cfg     config.Config
)

var rootFlags struct {
	logFormat string
	apiKey    string
	baseURL   string
	userAgent string
	timeout   time.Duration
}

var rootCmd = &cobra.Command{
	Use:   "filescan",
	Short: "FileScan - file reputation lookups from the command line",
	Long: `FileScan submits files for multi-engine malware analysis, schedules
rescans, fetches and grades reports, searches the sample corpus, reads daily
similarity clusters and downloads samples.

Set the API key with --api-key or the FILESCAN_API_KEY environment variable.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(verbose, rootFlags.logFormat); err != nil {
			return err
		}
		loaded, err := config.Load(".")
		if err != nil {
			slog.Warn("Failed to load config file", "error", err)
		} else {
			cfg = loaded
		}
		applyConfigToRootFlags(cmd)
		return nil
	},
}

// Execute runs the root command with injected build info. Cancelling ctx
// aborts the running operation.
func Execute(ctx context.Context, v, c, d string) error {
	version = v
	commit = c
	date = d
	return rootCmd.ExecuteContext(ctx)
}

// GetVersion returns the current version.
func GetVersion() string {
	return version
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&rootFlags.apiKey, "api-key", "", "Service API key (default $"+apiKeyEnv+")")
	rootCmd.PersistentFlags().StringVar(&rootFlags.baseURL, "base-url", filescan.DefaultBaseURL, "Service API root")
	rootCmd.PersistentFlags().StringVar(&rootFlags.userAgent, "user-agent", "", "User-Agent sent with every request")
	rootCmd.PersistentFlags().DurationVar(&rootFlags.timeout, "timeout", 0, "Total operation timeout (e.g. 5m, 30s). 0 means no timeout")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rescanCmd)
	rootCmd.AddCommand(cancelRescanCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(clustersCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(versionCmd)
}

func applyConfigToRootFlags(cmd *cobra.Command) {
	if f := cmd.Flag("base-url"); f != nil && !f.Changed && cfg.BaseURL != "" {
		rootFlags.baseURL = cfg.BaseURL
	}
	if f := cmd.Flag("user-agent"); f != nil && !f.Changed && cfg.UserAgent != "" {
		rootFlags.userAgent = cfg.UserAgent
	}
	if f := cmd.Flag("timeout"); f != nil && !f.Changed {
		if d := cfg.TimeoutDuration(); d > 0 {
			rootFlags.timeout = d
		}
	}
}
