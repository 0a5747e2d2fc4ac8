package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/ppiankov/filescan/internal/filescan"
	"github.com/ppiankov/filescan/internal/s3"
	"github.com/spf13/cobra"
)

var scanFlags struct {
	outputFormat string
	awsProfile   string
	awsRegion    string
	noProgress   bool
}

var scanCmd = &cobra.Command{
	Use:   "scan <path|s3://bucket/key>...",
	Short: "Submit files for analysis",
	Long: `Uploads each file for multi-engine analysis and prints the scan id and
permalink. Files above 32 MiB are sent through a one-time upload URL.
Arguments of the form s3://bucket/key are staged locally first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanFlags.outputFormat, "format", "f", "text", "Output format: text or raw")
	scanCmd.Flags().StringVar(&scanFlags.awsProfile, "aws-profile", "", "AWS profile for s3:// inputs")
	scanCmd.Flags().StringVar(&scanFlags.awsRegion, "aws-region", "", "AWS region for s3:// inputs (defaults to profile default)")
	scanCmd.Flags().BoolVar(&scanFlags.noProgress, "no-progress", false, "Disable progress indicators")
}

func runScan(cmd *cobra.Command, args []string) error {
	applyConfigToAWSFlags(cmd, &scanFlags.awsProfile, &scanFlags.awsRegion)
	if err := validateReplyFormat(scanFlags.outputFormat); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	start := time.Now()

	client, err := newFileScan()
	if err != nil {
		return enhanceError("client initialization", err)
	}
	defer filescan.Put(&client)

	var transfer *s3.Transfer
	failed := 0
	for _, arg := range args {
		var submitErr error
		if s3.IsURI(arg) {
			if transfer == nil {
				transfer, err = newTransfer(ctx, scanFlags.awsProfile, scanFlags.awsRegion)
				if err != nil {
					return enhanceError("S3 client initialization", err)
				}
				if showProgress(scanFlags.noProgress) {
					transfer.SetProgressCallback(progressPrinter("staging"))
				}
			}
			staged, name, err := stageObject(ctx, transfer, arg)
			if err != nil {
				slog.Warn("Staging failed", "source", arg, "error", err)
				failed++
				continue
			}
			printStatus("Submitting %s", arg)
			submitErr = scanStaged(ctx, client, staged, name)
		} else {
			printStatus("Submitting %s", arg)
			_, submitErr = client.Scan(ctx, arg)
		}

		if submitErr != nil {
			slog.Warn("Submission failed", "source", arg, "error", enhanceError("scan", submitErr))
			failed++
			continue
		}
		if err := printReply(cmd.OutOrStdout(), client, arg, scanFlags.outputFormat); err != nil {
			return enhanceError("output", err)
		}
	}

	slog.Info("Scan complete",
		slog.Int("submitted", len(args)-failed),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)

	if failed > 0 {
		return fmt.Errorf("%d of %d submissions failed", failed, len(args))
	}
	return nil
}

func newTransfer(ctx context.Context, profile, region string) (*s3.Transfer, error) {
	printStatus("Initializing AWS S3 client...")
	client, err := s3.NewClient(ctx, profile, region)
	if err != nil {
		return nil, err
	}
	slog.Debug("S3 client ready", "region", client.GetRegion())
	return s3.NewTransfer(client), nil
}

// stageObject copies an s3:// object to a local temporary file and returns
// its path together with the object's own file name
func stageObject(ctx context.Context, transfer *s3.Transfer, uri string) (string, string, error) {
	loc, err := s3.ParseURI(uri)
	if err != nil {
		return "", "", err
	}
	staged, info, err := transfer.Fetch(ctx, loc, "")
	if err != nil {
		return "", "", err
	}
	slog.Debug("Staged object", "source", uri, "path", staged, "size", info.Size)
	return staged, path.Base(loc.Key), nil
}

// scanStaged submits a staged copy under name and removes it afterwards
func scanStaged(ctx context.Context, client *filescan.FileScan, staged, name string) error {
	defer func() {
		if err := os.Remove(staged); err != nil {
			slog.Debug("Failed to remove staged copy", "path", staged, "error", err)
		}
	}()
	_, err := client.ScanAs(ctx, staged, name)
	return err
}

func applyConfigToAWSFlags(cmd *cobra.Command, profile, region *string) {
	if f := cmd.Flags().Lookup("aws-profile"); f != nil && !f.Changed && cfg.AWSProfile != "" {
		*profile = cfg.AWSProfile
	}
	if f := cmd.Flags().Lookup("aws-region"); f != nil && !f.Changed && cfg.AWSRegion != "" {
		*region = cfg.AWSRegion
	}
}
