// Command partcopy uploads files, and the archives listed in an inventory,
// to a part-addressed object store with bounded concurrency.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/ygrebnov/taskrunner/cmd/partcopy/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
