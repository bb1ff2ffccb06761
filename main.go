package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/launchbynttdata/launch-ver-stamp/internal/cli"
	"github.com/launchbynttdata/launch-ver-stamp/internal/version"
)

// These variables will be set at build time by goreleaser
var (
	buildVersion = "dev"
	date         = "unknown"
)

func main() {
	version.Version = buildVersion
	version.BuildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "verstamp: %v\n", err)
		os.Exit(1)
	}
}
