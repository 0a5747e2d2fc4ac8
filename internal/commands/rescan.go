package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/filescan/internal/filescan"
	"github.com/spf13/cobra"
)

var rescanFlags struct {
	outputFormat      string
	date              string
	period            int
	repeat            int
	notifyURL         string
	notifyChangesOnly bool
}

var cancelRescanFlags struct {
	outputFormat string
}

var rescanCmd = &cobra.Command{
	Use:   "rescan <hash>...",
	Short: "Re-analyse files already known to the service",
	Long: `Asks the service to analyse known files again. Without scheduling flags
the rescan runs once, as soon as possible. --date, --period and --repeat
schedule recurring rescans (private API keys only).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRescan,
}

var cancelRescanCmd = &cobra.Command{
	Use:   "cancel-rescan <hash>...",
	Short: "Cancel scheduled rescans",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCancelRescan,
}

func init() {
	rescanCmd.Flags().StringVarP(&rescanFlags.outputFormat, "format", "f", "text", "Output format: text or raw")
	rescanCmd.Flags().StringVar(&rescanFlags.date, "date", "", "First rescan time (RFC 3339 or YYYYMMDDhhmmss, UTC)")
	rescanCmd.Flags().IntVar(&rescanFlags.period, "period", 0, "Days between scheduled rescans")
	rescanCmd.Flags().IntVar(&rescanFlags.repeat, "repeat", 0, "Number of scheduled rescans")
	rescanCmd.Flags().StringVar(&rescanFlags.notifyURL, "notify-url", "", "URL to POST results to when a rescan finishes")
	rescanCmd.Flags().BoolVar(&rescanFlags.notifyChangesOnly, "notify-changes-only", false, "Only notify when the verdict changes (requires --notify-url)")

	cancelRescanCmd.Flags().StringVarP(&cancelRescanFlags.outputFormat, "format", "f", "text", "Output format: text or raw")
}

func runRescan(cmd *cobra.Command, args []string) error {
	if err := validateReplyFormat(rescanFlags.outputFormat); err != nil {
		return err
	}
	opts, err := rescanOptions()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	client, err := newFileScan()
	if err != nil {
		return enhanceError("client initialization", err)
	}
	defer filescan.Put(&client)

	for _, hash := range args {
		if _, err := client.RescanHash(ctx, hash, opts); err != nil {
			return enhanceError("rescan", err)
		}
		if err := printReply(cmd.OutOrStdout(), client, hash, rescanFlags.outputFormat); err != nil {
			return enhanceError("output", err)
		}
	}
	slog.Info("Rescan requested", slog.Int("count", len(args)))
	return nil
}

func runCancelRescan(cmd *cobra.Command, args []string) error {
	if err := validateReplyFormat(cancelRescanFlags.outputFormat); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	client, err := newFileScan()
	if err != nil {
		return enhanceError("client initialization", err)
	}
	defer filescan.Put(&client)

	for _, hash := range args {
		if _, err := client.RescanDelete(ctx, hash); err != nil {
			return enhanceError("cancel rescan", err)
		}
		if err := printReply(cmd.OutOrStdout(), client, hash, cancelRescanFlags.outputFormat); err != nil {
			return enhanceError("output", err)
		}
	}
	return nil
}

func rescanOptions() (filescan.RescanOptions, error) {
	opts := filescan.RescanOptions{
		Period:            rescanFlags.period,
		Repeat:            rescanFlags.repeat,
		NotifyURL:         rescanFlags.notifyURL,
		NotifyChangesOnly: rescanFlags.notifyChangesOnly,
	}
	if rescanFlags.period < 0 || rescanFlags.repeat < 0 {
		return opts, fmt.Errorf("--period and --repeat must not be negative")
	}
	if rescanFlags.notifyChangesOnly && rescanFlags.notifyURL == "" {
		return opts, fmt.Errorf("--notify-changes-only requires --notify-url")
	}
	if rescanFlags.date != "" {
		d, err := parseRescanDate(rescanFlags.date)
		if err != nil {
			return opts, err
		}
		opts.Date = d
	}
	return opts, nil
}

func parseRescanDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("20060102150405", s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --date %q: use RFC 3339 or YYYYMMDDhhmmss", s)
}
