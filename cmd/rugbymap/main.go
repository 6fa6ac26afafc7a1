// Package main is the rugbymap command: it resolves club addresses,
// geocodes them, builds territory layers, and serves the results.
//
// Usage:
//
//	rugbymap run -season 2025-2026
//	rugbymap addresses|geocode|territories|travel [flags]
//	rugbymap boundaries [flags]
//	rugbymap cache [flags] [prefix]
//	rugbymap serve [flags]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/rugbymap/rugbymap/internal/boundary"
	"github.com/rugbymap/rugbymap/internal/config"
	"github.com/rugbymap/rugbymap/internal/di"
	"github.com/rugbymap/rugbymap/internal/di/providers"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/pipeline"
)

const usage = `usage: rugbymap <command> [flags]

commands:
  run          run every stage for a season
  addresses    resolve club addresses from league listings
  geocode      geocode resolved addresses
  territories  build territory layers from geocoded clubs
  travel       compute travel distances from geocoded clubs
  boundaries   download boundary GeoJSON for the configured detail level
  cache        list cached keys under an optional prefix
  serve        serve layers, travel and reports over HTTP
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "rugbymap %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	switch cmd {
	case "run", "addresses", "geocode", "territories", "travel", "boundaries", "cache", "serve":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	cfg, rest, err := config.Load(cmd, args)
	if err != nil {
		return err
	}

	injector := di.NewContainer(cfg)
	log := do.MustInvoke[*logger.Logger](injector)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			log.Error("Shutdown error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "boundaries":
		d := do.MustInvoke[*boundary.Downloader](injector)
		return d.DownloadAll(ctx, cfg.Territory.BoundaryDir, cfg.Territory.Detail)
	case "cache":
		return listCache(ctx, injector, rest)
	case "serve":
		return serve(ctx, injector, log)
	}

	p := do.MustInvoke[*pipeline.Pipeline](injector)
	opts := do.MustInvoke[pipeline.Options](injector)

	var report any
	switch cmd {
	case "run":
		report, err = p.Run(ctx, opts)
	case "addresses":
		report, err = p.Addresses(ctx, opts)
	case "geocode":
		report, err = p.Geocode(ctx, opts)
	case "territories":
		report, err = p.Territories(ctx, opts)
	case "travel":
		report, err = p.Travel(ctx, opts)
	}
	if err != nil {
		return err
	}
	return printJSON(report)
}

func listCache(ctx context.Context, injector do.Injector, args []string) error {
	cache := do.MustInvoke[*providers.CacheHandle](injector)
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	keys, err := cache.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
	return nil
}

func serve(ctx context.Context, injector do.Injector, log *logger.Logger) error {
	srv := do.MustInvoke[*providers.HTTPServerHandle](injector)

	errc := make(chan error, 1)
	go func() {
		log.Info("Serving territory API", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down server gracefully...")
		return nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
