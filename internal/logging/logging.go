package logging

import (
	"fmt"
	"log/slog"
	"os"
)

// Init installs the default logger on stderr. format is "text" (default) or
// "json".
func Init(verbose bool, format string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch format {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unsupported log format: %s (use text or json)", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
