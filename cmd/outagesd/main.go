// outagesd is the nuclear-outage pipeline daemon: it serves the modeled
// outage view over HTTP and rebuilds it on demand via POST /refresh.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/gridwatch/outages/internal/api"
	"github.com/gridwatch/outages/internal/config"
	"github.com/gridwatch/outages/internal/connector"
	"github.com/gridwatch/outages/internal/events"
	"github.com/gridwatch/outages/internal/logging"
	"github.com/gridwatch/outages/internal/query"
	"github.com/gridwatch/outages/internal/refresh"
	"github.com/gridwatch/outages/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	token := flag.String("token", "", "API auth token (or API_TOKEN env)")
	rawPath := flag.String("raw", "", "raw store path (overrides config)")
	modeledDir := flag.String("modeled", "", "modeled store directory (overrides config)")
	incremental := flag.Bool("incremental", false, "merge new rows into the raw store instead of replacing it")
	earlyStop := flag.Bool("early-stop", false, "stop paging once a whole page is already known (incremental only)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *token != "" {
		cfg.APIToken = *token
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

	if cfg.LogFile != "" {
		if err := logging.InitWithFile(cfg.SlogLevel(), cfg.LogJSON, cfg.LogFile, cfg.LogFileMode); err != nil {
			log.Fatalf("Open log file: %v", err)
		}
	} else {
		logging.Init(cfg.SlogLevel(), cfg.LogJSON)
	}

	logger := logging.Component("main")
	logger.Info("outagesd starting", "version", Version)

	if err := cfg.ValidateForExtraction(); err != nil {
		logger.Warn("extraction unavailable", "reason", err)
	}

	raw := store.NewRawStore(cfg.RawPath)
	modeled := store.NewModeledStore(cfg.ModeledDir)

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

	qs, err := query.New(modeled)
	if err != nil {
		logger.Error("open query service", "error", err)
		os.Exit(1)
	}
	defer qs.Close()

	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		logger.Info("refresh events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	orch := refresh.New(conn, raw, modeled, qs, publisher)

	srv := api.NewServer(api.ServerConfig{
		Listen:   cfg.Listen,
		APIToken: cfg.APIToken,
	}, qs, orch, modeled)

	logger.Info("configured",
		"listen", cfg.Listen,
		"raw", cfg.RawPath,
		"modeled", cfg.ModeledDir,
		"incremental", cfg.Incremental,
		"early_stop", cfg.EarlyStop,
		"modeled_ready", modeled.Exists(),
	)

	if err := srv.Start(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
