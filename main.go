package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/formpilot/formpilot/cmd"
)

// main is the entry point for the formpilot CLI.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.ExecuteContext(ctx)
}
