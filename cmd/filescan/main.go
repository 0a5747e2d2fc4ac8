package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/filescan/internal/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Interrupts cancel in-flight transfers; partial downloads are discarded.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx, version, commit, date)
	stop()
	if err != nil {
		slog.Warn("Command failed", "error", err)
		os.Exit(1)
	}
}
