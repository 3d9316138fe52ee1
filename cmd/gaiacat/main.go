// Package main implements the unified gaiacat binary with one command per
// pipeline stage: build, compact and archive.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/gaiacat/gaiacat/internal/app"
	"github.com/gaiacat/gaiacat/internal/build"
	"github.com/gaiacat/gaiacat/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Printf("gaiacat: %v", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "gaiacat",
		Usage:   "build, compact and archive a HEALPix-partitioned Gaia star catalog",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to configuration file (YAML or JSON)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before GAIACAT_ variables are read",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "base directory for derived paths",
				EnvVars: []string{"GAIACAT_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			buildCommand(),
			compactCommand(),
			archiveCommand(),
		},
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "enrich source files into partition shards",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "directory of *.csv.gz source files"},
			&cli.StringFlag{Name: "destination", Usage: "catalog build root"},
			&cli.IntFlag{Name: "workers", Usage: "number of concurrent workers"},
			&cli.IntFlag{Name: "start", Usage: "first file index (inclusive)"},
			&cli.IntFlag{Name: "stop", Usage: "last file index (exclusive)"},
			&cli.StringFlag{Name: "hip", Usage: "Hipparcos cross-match table"},
			&cli.StringFlag{Name: "tyc", Usage: "Tycho cross-match table"},
			&cli.BoolFlag{Name: "constellations", Usage: "assign constellation ids"},
			&cli.StringFlag{Name: "boundaries", Usage: "constellation boundary table (data.dat)"},
			&cli.BoolFlag{Name: "resume", Usage: "skip files completed by earlier runs"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("source") {
				cfg.Build.SourceDir = c.String("source")
			}
			if c.IsSet("destination") {
				cfg.Build.OutputDir = c.String("destination")
			}
			if c.IsSet("workers") {
				cfg.Build.Workers = c.Int("workers")
			}
			if c.IsSet("start") {
				cfg.Build.Start = c.Int("start")
			}
			if c.IsSet("stop") {
				cfg.Build.Stop = c.Int("stop")
			}
			if c.IsSet("hip") {
				cfg.Crossmatch.HipPath = c.String("hip")
			}
			if c.IsSet("tyc") {
				cfg.Crossmatch.TycPath = c.String("tyc")
			}
			if c.IsSet("constellations") {
				cfg.Build.Constellations = c.Bool("constellations")
			}
			if c.IsSet("boundaries") {
				cfg.Build.BoundariesPath = c.String("boundaries")
			}
			if c.IsSet("resume") {
				cfg.Build.Resume = c.Bool("resume")
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			summary, err := a.Build(c.Context)
			if summary != nil {
				log.Printf("build %s: %s stars, %d files, %d failed",
					summary.RunID, build.FormatCount(summary.Counters.Emitted), summary.Files, summary.FilesFailed)
			}
			return err
		},
	}
}

func compactCommand() *cli.Command {
	return &cli.Command{
		Name:  "compact",
		Usage: "merge the shards of every partition into one sorted file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "catalog build root"},
			&cli.IntFlag{Name: "workers", Usage: "partitions compacted concurrently"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("source") {
				cfg.Compaction.SourceDir = c.String("source")
			}
			if c.IsSet("workers") {
				cfg.Compaction.Workers = c.Int("workers")
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			_, err = a.Compact(c.Context)
			return err
		},
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "pack partitions into size-bounded tarballs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "compacted catalog root"},
			&cli.StringFlag{Name: "destination", Usage: "directory receiving the bundles"},
			&cli.Int64Flag{Name: "max-filesize", Aliases: []string{"max_filesize"}, Usage: "max data size per bundle, in MB"},
			&cli.StringFlag{Name: "compression", Usage: "gzip or snappy"},
			&cli.BoolFlag{Name: "publish", Usage: "upload bundles to the configured storage"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("source") {
				cfg.Archive.SourceDir = c.String("source")
			}
			if c.IsSet("destination") {
				cfg.Archive.DestinationDir = c.String("destination")
			}
			if c.IsSet("max-filesize") {
				cfg.Archive.MaxFilesizeMB = c.Int64("max-filesize")
			}
			if c.IsSet("compression") {
				cfg.Archive.Compression = c.String("compression")
			}
			if c.IsSet("publish") {
				cfg.Archive.Publish = c.Bool("publish")
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			report, err := a.Archive(c.Context)
			if report != nil {
				log.Printf("archive: %d bundles written, %d failed", len(report.Bundles), report.Failed)
			}
			return err
		},
	}
}

// loadConfig applies defaults, then the config file, then the environment,
// then the global flags. Command flags are applied by each command.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)

	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	return cfg, nil
}
