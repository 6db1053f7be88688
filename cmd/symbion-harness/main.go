package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"symbion.dev/harness/internal/interfaces/cli"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An operator interrupt cancels the context; the harness shortens the
	// collection window and still tears every child process down before
	// the exit below.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	rootCmd := cli.NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
