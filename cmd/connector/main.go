// connector is the one-shot pipeline CLI: pull the upstream feed into the
// raw store, optionally rebuild and swap the modeled store, or just inspect
// what is already on disk.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/gridwatch/outages/internal/config"
	"github.com/gridwatch/outages/internal/connector"
	"github.com/gridwatch/outages/internal/logging"
	"github.com/gridwatch/outages/internal/refresh"
	"github.com/gridwatch/outages/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	rawPath := flag.String("raw", "", "raw store path (overrides config)")
	modeledDir := flag.String("modeled", "", "modeled store directory (overrides config)")
	incremental := flag.Bool("incremental", false, "merge new rows into the raw store instead of replacing it")
	earlyStop := flag.Bool("early-stop", false, "stop paging once a whole page is already known (incremental only)")
	build := flag.Bool("build", false, "rebuild the modeled store after extraction and swap it in")
	preview := flag.Bool("preview", false, "rebuild but print table samples instead of swapping (implies -build)")
	head := flag.Int("head", 5, "rows per table for -preview and -print-modeled")
	printModeled := flag.Bool("print-modeled", false, "print samples of the live modeled store and exit, no extraction")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if *rawPath != "" {
		cfg.RawPath = *rawPath
	}
	if *modeledDir != "" {
		cfg.ModeledDir = *modeledDir
	}
	if *incremental {
		cfg.Incremental = true
	}
	if *earlyStop {
		cfg.EarlyStop = true
	}

	logging.Init(cfg.SlogLevel(), cfg.LogJSON)
	logger := logging.Component("connector-cli")
	logger.Info("connector starting", "version", Version)

	modeled := store.NewModeledStore(cfg.ModeledDir)

	if *printModeled {
		if !modeled.Exists() {
			logger.Error("modeled store not found", "dir", cfg.ModeledDir)
			os.Exit(1)
		}
		sample, err := store.Head(modeled.Dir(), *head)
		if err != nil {
			logger.Error("read modeled store", "error", err)
			os.Exit(1)
		}
		printJSON(sample)
		return
	}

	if err := cfg.ValidateForExtraction(); err != nil {
		logger.Error("cannot extract", "error", err)
		os.Exit(1)
	}

	raw := store.NewRawStore(cfg.RawPath)
	client := connector.NewClient(connector.ClientConfig{
		Endpoint:          cfg.Endpoint(),
		APIKey:            cfg.EIAAPIKey,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	conn := connector.New(client, raw, connector.Config{
		Incremental: cfg.Incremental,
		EarlyStop:   cfg.EarlyStop,
		PageSize:    cfg.PageSize,
		MaxRecords:  cfg.MaxRecords,
	})

	ctx := context.Background()

	if !*build && !*preview {
		result, err := conn.Extract(ctx)
		if err != nil {
			logger.Error("extraction failed", "error", err)
			os.Exit(1)
		}
		logger.Info("extraction complete",
			"pages", result.Pages,
			"fetched", result.Fetched,
			"new", result.New,
			"skipped", result.Skipped,
			"early_stopped", result.EarlyStopped,
			"written", result.Written,
			"total", result.Total,
		)
		return
	}

	orch := refresh.New(conn, raw, modeled, nil, nil)
	report, err := orch.Run(ctx, refresh.Options{Preview: *preview, Head: *head})
	if err != nil {
		logger.Error("refresh failed", "error", err)
		os.Exit(1)
	}

	logger.Info("refresh complete",
		"raw_rows", report.Extraction.Total,
		"new_rows", report.Extraction.New,
		"plants", report.Build.Plants,
		"dates", report.Build.Dates,
		"events", report.Build.Events,
		"swapped", report.Swapped,
		"duration", report.Duration,
	)
	if report.Preview != nil {
		printJSON(*report.Preview)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}
