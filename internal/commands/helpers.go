package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/ppiankov/filescan/internal/filescan"
	"github.com/ppiankov/filescan/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errMissingAPIKey = errors.New("no API key configured")

// newHTTPClient builds the client every handle uses; tests replace it.
var newHTTPClient = func() *http.Client {
	return cleanhttp.DefaultPooledClient()
}

func printStatus(format string, args ...interface{}) {
	slog.Info(fmt.Sprintf(format, args...))
}

// newFileScan creates a handle configured from the root flags. The caller
// releases it with filescan.Put.
func newFileScan() (*filescan.FileScan, error) {
	key := rootFlags.apiKey
	if key == "" {
		key = os.Getenv(apiKeyEnv)
	}
	if key == "" {
		return nil, errMissingAPIKey
	}

	client, err := filescan.New(
		filescan.WithBaseURL(rootFlags.baseURL),
		filescan.WithHTTPClient(newHTTPClient()),
		filescan.WithUserAgent(userAgent()),
		filescan.WithLogger(slog.Default()),
	)
	if err != nil {
		return nil, err
	}
	client.SetAPIKey(key)
	return client, nil
}

func userAgent() string {
	if rootFlags.userAgent != "" {
		return rootFlags.userAgent
	}
	v := version
	if v == "" {
		v = "dev"
	}
	return "filescan/" + v
}

// commandContext applies the --timeout flag
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if rootFlags.timeout > 0 {
		return context.WithTimeout(ctx, rootFlags.timeout)
	}
	return context.WithCancel(ctx)
}

// showProgress reports whether progress lines should be drawn on stderr
func showProgress(disabled bool) bool {
	return !disabled && term.IsTerminal(int(os.Stderr.Fd()))
}

// progressPrinter renders byte progress on a single stderr line
func progressPrinter(label string) func(written, total int64) {
	return func(written, total int64) {
		if total > 0 {
			fmt.Fprintf(os.Stderr, "\r%s: %d/%d bytes (%.0f%%)", label, written, total, float64(written)/float64(total)*100)
			if written >= total {
				fmt.Fprintln(os.Stderr)
			}
			return
		}
		fmt.Fprintf(os.Stderr, "\r%s: %d bytes", label, written)
	}
}

// enhanceError enhances an error with additional context and helpful suggestions
func enhanceError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, errMissingAPIKey) {
		return fmt.Errorf("%s failed: No API key found.\n"+
			"Solutions:\n"+
			"  - Set the %s environment variable\n"+
			"  - Use --api-key flag\n"+
			"Original error: %w", operation, apiKeyEnv, err)
	}

	if filescan.IsAuthorization(err) {
		return fmt.Errorf("%s failed: API key rejected (status %d).\n"+
			"Solutions:\n"+
			"  - Check the key is correct and active\n"+
			"  - Some operations (rescan scheduling, search, clusters, download) need a private API key\n"+
			"Original error: %w", operation, filescan.StatusCode(err), err)
	}

	if filescan.IsQuotaExceeded(err) {
		return fmt.Errorf("%s failed: Request quota exceeded.\n"+
			"Solutions:\n"+
			"  - Wait a minute and try again\n"+
			"  - Public keys are limited to a few requests per minute\n"+
			"Original error: %w", operation, err)
	}

	if filescan.KindOf(err) == filescan.KindIO && errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s failed: File not found.\n"+
			"Solutions:\n"+
			"  - Check the path is correct\n"+
			"  - Ensure the file exists and is readable\n"+
			"Original error: %w", operation, err)
	}

	if filescan.KindOf(err) == filescan.KindTransport {
		return fmt.Errorf("%s failed: Could not reach the service.\n"+
			"Solutions:\n"+
			"  - Check network connectivity and proxy settings\n"+
			"  - Verify --base-url (current: %s)\n"+
			"  - Raise --timeout for large transfers\n"+
			"Original error: %w", operation, rootFlags.baseURL, err)
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "NoCredentialProviders") || strings.Contains(errMsg, "no valid credentials") ||
		strings.Contains(errMsg, "failed to retrieve credentials") {
		return fmt.Errorf("%s failed: No AWS credentials found.\n"+
			"Solutions:\n"+
			"  - Set AWS_PROFILE environment variable\n"+
			"  - Use --aws-profile flag\n"+
			"  - Configure AWS credentials with 'aws configure'\n"+
			"Original error: %w", operation, err)
	}

	if strings.Contains(errMsg, "AccessDenied") || strings.Contains(errMsg, "Access Denied") {
		return fmt.Errorf("%s failed: Access Denied.\n"+
			"Solutions:\n"+
			"  - Check IAM permissions for s3:GetObject and s3:PutObject\n"+
			"  - Verify the correct AWS profile is being used\n"+
			"Original error: %w", operation, err)
	}

	// Default error with context
	return fmt.Errorf("%s failed: %w", operation, err)
}

func selectReporter(format string, writer io.Writer) (report.Reporter, error) {
	switch format {
	case "json":
		return report.NewJSONReporter(writer), nil
	case "sarif":
		return report.NewSARIFReporter(writer), nil
	case "spectrehub":
		return report.NewSpectreHubReporter(writer), nil
	case "text":
		return report.NewTextReporter(writer), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: text, json, sarif, spectrehub)", format)
	}
}

// openOutput returns the file at path, or fallback when path is empty
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// serviceReply holds the fields shared by submission-style replies
type serviceReply struct {
	ResponseCode int    `json:"response_code"`
	VerboseMsg   string `json:"verbose_msg"`
	Resource     string `json:"resource"`
	ScanID       string `json:"scan_id"`
	SHA256       string `json:"sha256"`
	Permalink    string `json:"permalink"`
}

// printReply writes the last response of client either verbatim or as one
// summary line labelled with subject
func printReply(w io.Writer, client *filescan.FileScan, subject, format string) error {
	resp := client.Response()
	if resp == nil {
		return nil
	}
	if format == "raw" {
		body := strings.TrimRight(string(resp.Bytes()), "\n")
		_, err := fmt.Fprintln(w, body)
		return err
	}

	var reply serviceReply
	if err := resp.Decode(&reply); err != nil {
		return err
	}
	line := fmt.Sprintf("%s: %s", subject, reply.VerboseMsg)
	if reply.ScanID != "" {
		line += " scan_id=" + reply.ScanID
	}
	if reply.Permalink != "" {
		line += " " + reply.Permalink
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func validateReplyFormat(format string) error {
	if format != "text" && format != "raw" {
		return fmt.Errorf("unsupported output format: %s (supported: text, raw)", format)
	}
	return nil
}
