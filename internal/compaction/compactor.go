package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
	"github.com/gaiacat/gaiacat/internal/observability"
	"github.com/gaiacat/gaiacat/pkg/types"
)

// Config holds configuration for a compaction run.
type Config struct {
	// Root is the catalog build root holding the partition directories
	Root string

	// Workers bounds the number of partitions merged concurrently (default: 10)
	Workers int

	// RowGroupSize is the maximum number of rows per row group (default: 100000)
	RowGroupSize int64

	// Compression is the column codec of compacted files (default: snappy)
	Compression string
}

// DefaultConfig returns the default compaction configuration.
func DefaultConfig() Config {
	return Config{
		Workers:      10,
		RowGroupSize: 100000,
		Compression:  "snappy",
	}
}

// PartitionResult is the outcome for one partition.
type PartitionResult struct {
	Key    types.PartitionKey
	Reason Reason
	Inputs int
	Rows   int64
	Err    error
}

// Report summarises a compaction run.
type Report struct {
	Partitions      []PartitionResult
	Compacted       int
	Failed          int
	ShardsDeleted   int
	CleanupWithheld bool
	Duration        time.Duration
}

// OK reports whether every partition was compacted and cleaned up.
func (r *Report) OK() bool {
	return r.Failed == 0 && !r.CleanupWithheld
}

// Compactor merges every partition under a build root.
type Compactor struct {
	config    Config
	merger    *Merger
	validator *Validator
	gc        *GarbageCollector
	logger    logrus.FieldLogger
	metrics   *observability.Metrics
}

// NewCompactor creates a compactor. metrics may be nil.
func NewCompactor(config Config, logger logrus.FieldLogger, metrics *observability.Metrics) *Compactor {
	def := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.RowGroupSize <= 0 {
		config.RowGroupSize = def.RowGroupSize
	}
	if config.Compression == "" {
		config.Compression = def.Compression
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	sortColumns := types.StarSchema().SortColumns
	return &Compactor{
		config: config,
		merger: NewMerger(MergeOptions{
			Compression:  config.Compression,
			RowGroupSize: config.RowGroupSize,
			SortColumns:  sortColumns,
		}),
		validator: NewValidator(sortColumns),
		gc:        NewGarbageCollector(logger),
		logger:    logger,
		metrics:   metrics,
	}
}

// Run compacts every partition under the root. Partitions are merged
// concurrently and a failure in one never stops the others. Shard files are
// deleted only when every partition was committed; otherwise no shard
// anywhere is deleted and the returned error lists each failed partition.
func (c *Compactor) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	candidates, err := FindCandidates(c.config.Root)
	if err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"root":       c.config.Root,
		"partitions": len(candidates),
		"workers":    c.config.Workers,
	}).Info("compaction: starting")

	results := make([]PartitionResult, len(candidates))
	var g errgroup.Group
	g.SetLimit(c.config.Workers)
	for i, cand := range candidates {
		g.Go(func() error {
			results[i] = c.compactPartition(ctx, cand)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Partitions: results}
	var errs *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
			errs = multierror.Append(errs, fmt.Errorf("partition %d: %w", r.Key.Index, r.Err))
			continue
		}
		report.Compacted++
	}
	c.observe("compacted", report.Compacted)
	c.observe("failed", report.Failed)

	if report.Failed > 0 {
		report.CleanupWithheld = true
		c.logger.WithField("failed", report.Failed).Warn("compaction: shard cleanup withheld, no files deleted")
		errs = multierror.Append(errs, gerrors.New(gerrors.ErrCategoryCompaction, gerrors.CodeCleanupWithheld,
			fmt.Sprintf("%d of %d partitions failed", report.Failed, len(candidates))))
	} else if ctx.Err() != nil {
		report.CleanupWithheld = true
		errs = multierror.Append(errs, ctx.Err())
	} else {
		gcResult, err := c.gc.Collect(ctx, candidates)
		report.ShardsDeleted = len(gcResult.DeletedFiles)
		if c.metrics != nil {
			c.metrics.ShardsDeleted.Add(float64(report.ShardsDeleted))
		}
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	report.Duration = time.Since(start)
	if c.metrics != nil {
		c.metrics.StageDuration.WithLabelValues("compact").Set(report.Duration.Seconds())
	}
	c.logger.WithFields(logrus.Fields{
		"compacted":      report.Compacted,
		"failed":         report.Failed,
		"shards_deleted": report.ShardsDeleted,
		"duration":       report.Duration.Round(time.Millisecond).String(),
	}).Info("compaction: finished")

	return report, errs.ErrorOrNil()
}

// compactPartition performs merge, validate and commit for one partition.
// On any failure the staging file is removed and the partition is left as it was.
func (c *Compactor) compactPartition(ctx context.Context, cand Candidate) PartitionResult {
	pr := PartitionResult{Key: cand.Partition.Key, Reason: cand.Reason, Inputs: len(cand.Inputs)}
	log := c.logger.WithFields(logrus.Fields{
		"partition": cand.Partition.Key.Index,
		"inputs":    len(cand.Inputs),
		"reason":    cand.Reason,
	})
	if cand.Stale != "" {
		log = log.WithField("stale", cand.Stale)
	}

	result, err := c.merger.Merge(ctx, cand)
	if err != nil {
		log.WithError(err).Error("compaction: merge failed")
		pr.Err = err
		return pr
	}

	vr, err := c.validator.Validate(ctx, result)
	if err == nil && !vr.Valid {
		err = gerrors.New(gerrors.ErrCategoryCompaction, gerrors.CodeValidationFailed, "compacted file does not match its inputs").
			WithDetails(map[string]interface{}{"errors": vr.Errors})
	}
	if err != nil {
		log.WithError(err).Error("compaction: validation failed")
		if derr := c.merger.Discard(result); derr != nil {
			log.WithError(derr).Warn("compaction: failed to remove staging file")
		}
		pr.Err = err
		return pr
	}

	if err := c.merger.Commit(result); err != nil {
		log.WithError(err).Error("compaction: commit failed")
		_ = c.merger.Discard(result)
		pr.Err = err
		return pr
	}

	pr.Rows = result.TotalRows
	if c.metrics != nil {
		c.metrics.CompactedRows.Add(float64(result.TotalRows))
	}
	log.WithField("rows", result.TotalRows).Info("compaction: partition compacted")
	return pr
}

func (c *Compactor) observe(status string, n int) {
	if c.metrics != nil && n > 0 {
		c.metrics.PartitionsTotal.WithLabelValues(status).Add(float64(n))
	}
}
