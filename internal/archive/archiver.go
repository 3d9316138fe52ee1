package archive

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
	"github.com/gaiacat/gaiacat/internal/observability"
	"github.com/gaiacat/gaiacat/internal/storage"
)

// Options configures an archive run.
type Options struct {
	// SourceDir is the compacted catalog root
	SourceDir string

	// DestinationDir receives the bundle files
	DestinationDir string

	// MaxBytes bounds the data size of one bundle
	MaxBytes int64

	// Prefix is the bundle file name prefix
	Prefix string

	// Compression is gzip or snappy
	Compression string

	// Retry bounds publication retries
	Retry storage.RetryPolicy
}

// Bundle is one written archive file.
type Bundle struct {
	Name       string
	Path       string
	Partitions []string
	DataBytes  int64
	Size       int64
	Published  bool
}

// Report summarises an archive run.
type Report struct {
	Bundles  []Bundle
	Failed   int
	Duration time.Duration
}

// Archiver writes the bundles of a catalog and publishes them when a store is set.
type Archiver struct {
	opts    Options
	store   storage.ObjectStorage
	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// NewArchiver creates an archiver. store and metrics may be nil.
func NewArchiver(opts Options, store storage.ObjectStorage, logger logrus.FieldLogger, metrics *observability.Metrics) (*Archiver, error) {
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("archive: max bundle size must be positive")
	}
	if _, err := Extension(opts.Compression); err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = "gaia-dr3"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Archiver{opts: opts, store: store, logger: logger, metrics: metrics}, nil
}

// Run plans and writes every bundle. A bundle that fails to write or publish
// does not stop the others; the failures are returned together.
func (a *Archiver) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	parts, err := ScanPartitions(a.opts.SourceDir)
	if err != nil {
		return nil, err
	}
	plan := Plan(parts, a.opts.MaxBytes)
	a.logger.WithFields(logrus.Fields{
		"partitions": len(parts),
		"bundles":    len(plan),
		"max_mb":     a.opts.MaxBytes / (1024 * 1024),
	}).Info("archive: starting")

	report := &Report{}
	var errs *multierror.Error
	for n, group := range plan {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		b, err := a.writeBundle(ctx, n, group)
		if err != nil {
			report.Failed++
			a.count("failed")
			errs = multierror.Append(errs, err)
			continue
		}
		report.Bundles = append(report.Bundles, *b)
	}

	report.Duration = time.Since(start)
	if a.metrics != nil {
		a.metrics.StageDuration.WithLabelValues("archive").Set(report.Duration.Seconds())
	}
	return report, errs.ErrorOrNil()
}

func (a *Archiver) writeBundle(ctx context.Context, n int, group []PartitionDir) (*Bundle, error) {
	name, err := BundleName(a.opts.Prefix, n, a.opts.Compression)
	if err != nil {
		return nil, err
	}
	b := &Bundle{Name: name, Path: filepath.Join(a.opts.DestinationDir, name)}
	for _, p := range group {
		b.Partitions = append(b.Partitions, p.Name)
		b.DataBytes += p.Bytes
	}
	a.logger.Infof("Archiving %s | %d MB", b.Path, b.DataBytes/(1024*1024))

	b.Size, err = Write(ctx, b.Path, group, a.opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", name, err)
	}
	a.count("written")
	if a.metrics != nil {
		a.metrics.BundleBytes.Add(float64(b.Size))
	}

	if a.store == nil {
		return b, nil
	}
	object := path.Join(a.opts.Prefix, name)
	var published bool
	err = storage.Retry(ctx, a.opts.Retry, func() error {
		var err error
		published, err = a.store.Exists(ctx, object)
		return err
	})
	if err != nil {
		return nil, gerrors.NewStorageError(gerrors.CodeLookupFailed, "failed to check published bundle", err).
			WithDetails(map[string]interface{}{"bundle": name, "object": object})
	}
	if published {
		b.Published = true
		a.count("skipped")
		a.logger.WithFields(logrus.Fields{"bundle": name, "object": object}).Info("archive: bundle already published")
		return b, nil
	}

	err = storage.Retry(ctx, a.opts.Retry, func() error {
		return a.store.Upload(ctx, b.Path, object)
	})
	if err != nil {
		return nil, gerrors.NewStorageError(gerrors.CodeUploadFailed, "failed to publish bundle", err).
			WithDetails(map[string]interface{}{"bundle": name, "object": object})
	}
	b.Published = true
	a.count("published")
	a.logger.WithFields(logrus.Fields{"bundle": name, "object": object}).Info("archive: bundle published")
	return b, nil
}

func (a *Archiver) count(status string) {
	if a.metrics != nil {
		a.metrics.BundlesTotal.WithLabelValues(status).Inc()
	}
}
