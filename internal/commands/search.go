package commands

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/filescan/internal/filescan"
	"github.com/spf13/cobra"
)

var searchFlags struct {
	offset   string
	maxPages int
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the sample corpus",
	Long: `Runs a search query (private API keys only) and prints one matching hash
per line. Results are paged; --max-pages follows the continuation token and
--offset resumes from a token printed by an earlier run.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.offset, "offset", "", "Continuation token from a previous search")
	searchCmd.Flags().IntVar(&searchFlags.maxPages, "max-pages", 1, "Maximum number of result pages to fetch (0 for all)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchFlags.maxPages < 0 {
		return fmt.Errorf("--max-pages must not be negative")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	client, err := newFileScan()
	if err != nil {
		return enhanceError("client initialization", err)
	}
	defer filescan.Put(&client)
	if searchFlags.offset != "" {
		client.SetOffset(searchFlags.offset)
	}

	out := cmd.OutOrStdout()
	matches := 0
	sink := filescan.SinkFunc[string](func(hash string) error {
		matches++
		_, err := fmt.Fprintln(out, hash)
		return err
	})

	pages := 0
	for {
		sent := client.Offset()
		if _, err := client.Search(ctx, args[0], sink); err != nil {
			return enhanceError("search", err)
		}
		pages++
		if client.Offset() == "" {
			break
		}
		if client.Offset() == sent {
			slog.Warn("Service returned the offset it was sent; stopping", "offset", sent)
			break
		}
		if searchFlags.maxPages > 0 && pages >= searchFlags.maxPages {
			fmt.Fprintf(cmd.ErrOrStderr(), "More results available: --offset %s\n", client.Offset())
			break
		}
	}

	slog.Info("Search complete", slog.Int("matches", matches), slog.Int("pages", pages))
	return nil
}
