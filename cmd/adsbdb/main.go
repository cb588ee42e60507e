package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/adsb-aircraft-db/internal/cli"
	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/couchcryptid/adsb-aircraft-db/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(observability.NewMetrics())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "adsbdb:", err)
		stop()
		os.Exit(domain.ExitCode(err))
	}
}
