// Command aethra runs the GFS ingestion pipeline and serves derived weather
// for registered places.
//
// Usage:
//
//	aethra <command> [flags] [args]
//
// Commands:
//
//	fetch      download the newest available cycle
//	filter     keep the enabled parameters of staged cycles
//	import     load filtered files into the forecast store
//	cleanup    apply the retention window to files and records
//	run        run the whole pipeline once or on an interval
//	serve      serve the query API
//	params     scan, seed or list the parameter catalog
//	places     seed or list the place registry
//
// Settings come from the environment (and an optional .env file); flags
// override them per invocation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sellinios/aethra/internal/config"
	"github.com/sellinios/aethra/internal/observability"
)

// errUsage marks a command line the user has to fix.
var errUsage = errors.New("usage error")

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}
	err = a.dispatch(ctx, os.Args[1], os.Args[2:])
	a.close()
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: aethra <command> [flags] [args]

commands:
  fetch      download the newest available cycle
  filter     keep the enabled parameters of staged cycles
  import     load filtered files into the forecast store
  cleanup    apply the retention window to files and records
  run        run the whole pipeline once or on an interval
  serve      serve the query API
  params     scan <grib> | seed <yaml> | list
  places     seed <yaml> | list`)
}
