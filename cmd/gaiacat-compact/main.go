// Package main implements the gaiacat-compact binary, which merges the
// partition shards of a finished build.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gaiacat/gaiacat/internal/app"
	"github.com/gaiacat/gaiacat/internal/config"
)

func main() {
	var (
		configFile string
		source     string
		workers    int
	)
	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&source, "source", "", "Catalog build root")
	flag.IntVar(&workers, "workers", 0, "Partitions compacted concurrently")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(configFile); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	config.LoadFromEnv(cfg)
	if source != "" {
		cfg.Compaction.SourceDir = source
	}
	if workers > 0 {
		cfg.Compaction.Workers = workers
	}

	log.Printf("Starting gaiacat-compact...")
	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	log.Printf("Source: %s, workers=%d", cfg.Compaction.SourceDir, cfg.Compaction.Workers)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := a.Compact(ctx)
	if err != nil {
		log.Printf("Compaction failed: %v", err)
		cancel()
		os.Exit(1)
	}
	log.Printf("gaiacat-compact finished: %d partitions compacted, %d shard files deleted",
		report.Compacted, report.ShardsDeleted)
}
