package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ppiankov/filescan/internal/filescan"
	"github.com/ppiankov/filescan/internal/s3"
	"github.com/spf13/cobra"
)

var downloadFlags struct {
	outputFile string
	noProgress bool
	s3Target   string
	awsProfile string
	awsRegion  string
}

var downloadCmd = &cobra.Command{
	Use:   "download <hash>",
	Short: "Download a sample",
	Long: `Downloads the sample identified by hash (private API keys only). The file is
written to --output, named after the hash by default; "-" streams it to
stdout. A partial download never replaces an existing file. With --s3 the
sample is uploaded to s3://bucket/prefix/ after it has been saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadFlags.outputFile, "output", "o", "", "Destination path, or - for stdout (default: the hash)")
	downloadCmd.Flags().BoolVar(&downloadFlags.noProgress, "no-progress", false, "Disable progress indicators")
	downloadCmd.Flags().StringVar(&downloadFlags.s3Target, "s3", "", "Also upload the sample to this s3:// location")
	downloadCmd.Flags().StringVar(&downloadFlags.awsProfile, "aws-profile", "", "AWS profile for --s3")
	downloadCmd.Flags().StringVar(&downloadFlags.awsRegion, "aws-region", "", "AWS region for --s3 (defaults to profile default)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	applyConfigToAWSFlags(cmd, &downloadFlags.awsProfile, &downloadFlags.awsRegion)
	hash := args[0]

	outPath := downloadFlags.outputFile
	if outPath == "" {
		outPath = hash
	}
	toStdout := outPath == "-"

	var target s3.Location
	if downloadFlags.s3Target != "" {
		if toStdout {
			return fmt.Errorf("--s3 cannot be combined with --output -")
		}
		loc, err := s3.ParseURI(downloadFlags.s3Target)
		if err != nil {
			return err
		}
		target = loc
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	client, err := newFileScan()
	if err != nil {
		return enhanceError("client initialization", err)
	}
	defer filescan.Put(&client)

	if toStdout {
		out := cmd.OutOrStdout()
		_, err := client.Download(ctx, hash, filescan.SinkFunc[[]byte](func(chunk []byte) error {
			_, err := out.Write(chunk)
			return err
		}))
		if err != nil {
			return enhanceError("download", err)
		}
		return nil
	}

	if showProgress(downloadFlags.noProgress) {
		client.SetProgressCallback(progressPrinter(filepath.Base(outPath)))
	}
	printStatus("Downloading %s to %s", hash, outPath)
	if _, err := client.DownloadToFile(ctx, hash, outPath); err != nil {
		return enhanceError("download", err)
	}
	if info, err := os.Stat(outPath); err == nil {
		slog.Info("Download complete", slog.String("path", outPath), slog.Int64("size", info.Size()))
	}

	if downloadFlags.s3Target == "" {
		return nil
	}
	transfer, err := newTransfer(ctx, downloadFlags.awsProfile, downloadFlags.awsRegion)
	if err != nil {
		return enhanceError("S3 client initialization", err)
	}
	stored, err := transfer.Store(ctx, outPath, target)
	if err != nil {
		return enhanceError("S3 upload", err)
	}
	slog.Info("Uploaded sample", slog.String("location", stored.Location.String()), slog.Int64("size", stored.Size))
	return nil
}
