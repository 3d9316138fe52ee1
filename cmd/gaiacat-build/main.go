// Package main implements the gaiacat-build binary, which runs only the
// build stage and is meant for launching one slice of the source files per
// invocation.
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
		dest       string
		hip        string
		tyc        string
		workers    int
		start      int
		stop       int
		resume     bool
	)
	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&source, "source", "", "Directory of *.csv.gz source files")
	flag.StringVar(&dest, "destination", "", "Catalog build root")
	flag.StringVar(&hip, "hip", "", "Hipparcos cross-match table")
	flag.StringVar(&tyc, "tyc", "", "Tycho cross-match table")
	flag.IntVar(&workers, "workers", 0, "Number of concurrent workers")
	flag.IntVar(&start, "start", 0, "First file index (inclusive)")
	flag.IntVar(&stop, "stop", -1, "Last file index (exclusive); -1 for all files")
	flag.BoolVar(&resume, "resume", false, "Skip files completed by earlier runs")
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
		cfg.Build.SourceDir = source
	}
	if dest != "" {
		cfg.Build.OutputDir = dest
	}
	if hip != "" {
		cfg.Crossmatch.HipPath = hip
	}
	if tyc != "" {
		cfg.Crossmatch.TycPath = tyc
	}
	if workers > 0 {
		cfg.Build.Workers = workers
	}
	cfg.Build.Start = start
	cfg.Build.Stop = stop
	cfg.Build.Resume = cfg.Build.Resume || resume

	log.Printf("Starting gaiacat-build...")
	log.Printf("Source: %s [%d : %d]", cfg.Build.SourceDir, start, stop)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	log.Printf("Output: %s, workers=%d", cfg.Build.OutputDir, cfg.Build.Workers)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := a.Build(ctx); err != nil {
		log.Printf("Build failed: %v", err)
		cancel()
		os.Exit(1)
	}
	log.Printf("gaiacat-build finished")
}
