package compaction

import (
	"context"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// GCResult holds the outcome of a shard cleanup.
type GCResult struct {
	DeletedFiles []string
	Errors       []string
}

// GarbageCollector removes the shard files of compacted partitions.
type GarbageCollector struct {
	logger logrus.FieldLogger
}

// NewGarbageCollector creates a garbage collector.
func NewGarbageCollector(logger logrus.FieldLogger) *GarbageCollector {
	return &GarbageCollector{logger: logger}
}

// Collect deletes the shards of every candidate. It must only be called once
// all candidates were committed. A failed deletion does not stop the others;
// the failures are returned together.
func (gc *GarbageCollector) Collect(ctx context.Context, candidates []Candidate) (*GCResult, error) {
	result := &GCResult{}
	var errs *multierror.Error
	for _, c := range candidates {
		for _, path := range c.Shards() {
			if err := ctx.Err(); err != nil {
				return result, multierror.Append(errs, err).ErrorOrNil()
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				result.Errors = append(result.Errors, err.Error())
				errs = multierror.Append(errs, err)
				continue
			}
			result.DeletedFiles = append(result.DeletedFiles, path)
		}
	}
	if len(result.DeletedFiles) > 0 {
		gc.logger.WithField("files", len(result.DeletedFiles)).Info("compaction/gc: deleted shard files")
	}
	return result, errs.ErrorOrNil()
}
