package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
)

// Operator CLI for the commitment builder.
// Data flow:
// 1) Read an allocation list (CSV, JSON or YAML).
// 2) Build the Merkle commitment and publish the distribution artifact.
// 3) Serve single proofs and re-verify published artifacts offline.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
