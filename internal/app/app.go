// Package app wires configuration, logging and metrics into the build,
// compaction and archive stages of gaiacat.
package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/sirupsen/logrus"

	"github.com/gaiacat/gaiacat/internal/archive"
	"github.com/gaiacat/gaiacat/internal/build"
	"github.com/gaiacat/gaiacat/internal/compaction"
	"github.com/gaiacat/gaiacat/internal/config"
	"github.com/gaiacat/gaiacat/internal/logagg"
	"github.com/gaiacat/gaiacat/internal/observability"
	"github.com/gaiacat/gaiacat/internal/storage"
)

// App runs the pipeline stages from one configuration.
type App struct {
	cfg     *config.Config
	metrics *observability.Metrics
	console io.Writer
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &App{cfg: cfg, metrics: observability.NewMetrics()}, nil
}

// SetConsole redirects console log output (stdout by default).
func (a *App) SetConsole(w io.Writer) {
	a.console = w
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Metrics returns the collectors of this app.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// Build processes the configured source files into partition shards.
// It returns an error when startup fails or any file in range was not processed.
func (a *App) Build(ctx context.Context) (*build.Summary, error) {
	if err := a.cfg.ValidateBuild(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	b := build.NewBuilder(a.cfg, a.metrics)
	b.SetConsole(a.console)

	summary, err := b.Run(ctx)
	a.writeMetrics()
	if err != nil {
		return summary, err
	}
	if !summary.OK() {
		return summary, fmt.Errorf("build finished with %d failed files and %d crashed workers",
			summary.FilesFailed, summary.Crashed)
	}
	return summary, nil
}

// Compact merges the shards of every partition under the compaction root.
func (a *App) Compact(ctx context.Context) (*compaction.Report, error) {
	logger, closer, err := a.logger()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	c := compaction.NewCompactor(compaction.Config{
		Root:         a.cfg.Compaction.SourceDir,
		Workers:      a.cfg.Compaction.Workers,
		RowGroupSize: a.cfg.Compaction.RowGroupSize,
		Compression:  a.cfg.Compaction.Compression,
	}, logger, a.metrics)

	report, err := c.Run(ctx)
	a.writeMetrics()
	return report, err
}

// Archive packs the compacted catalog into bundles and publishes them when configured.
func (a *App) Archive(ctx context.Context) (*archive.Report, error) {
	logger, closer, err := a.logger()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var store storage.ObjectStorage
	if a.cfg.Archive.Publish {
		store, err = storage.New(ctx, a.cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		logger.WithField("type", a.cfg.Storage.Type).Info("archive: storage initialized")
	}

	archiver, err := archive.NewArchiver(archive.Options{
		SourceDir:      a.cfg.Archive.SourceDir,
		DestinationDir: a.cfg.Archive.DestinationDir,
		MaxBytes:       a.cfg.Archive.MaxFilesizeMB * 1024 * 1024,
		Prefix:         a.cfg.Archive.Prefix,
		Compression:    a.cfg.Archive.Compression,
		Retry:          storage.DefaultRetryPolicy(),
	}, store, logger, a.metrics)
	if err != nil {
		return nil, err
	}

	report, err := archiver.Run(ctx)
	a.writeMetrics()
	return report, err
}

func (a *App) logger() (logrus.FieldLogger, io.Closer, error) {
	logger, closer, err := logagg.NewLogger(logagg.Options{
		Level:    a.cfg.Logging.Level,
		FilePath: a.cfg.Logging.File,
		Console:  a.console,
	})
	if err != nil {
		return nil, nil, err
	}
	return logger, closer, nil
}

func (a *App) writeMetrics() {
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		log.Printf("Warning: failed to write metrics textfile: %v", err)
	}
}
