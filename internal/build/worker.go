// Package build runs the parallel catalog build: it splits the sorted source
// file list among workers, streams every file through the enricher into the
// catalog writer and aggregates per-file counters into a run summary.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gaiacat/gaiacat/internal/enrich"
	gerrors "github.com/gaiacat/gaiacat/internal/errors"
	"github.com/gaiacat/gaiacat/internal/logagg"
	"github.com/gaiacat/gaiacat/internal/observability"
	"github.com/gaiacat/gaiacat/internal/progress"
	"github.com/gaiacat/gaiacat/internal/source"
	"github.com/gaiacat/gaiacat/pkg/types"
)

// ErrIndexOutOfRange is returned by Process for an index outside the file list.
var ErrIndexOutOfRange = gerrors.New(gerrors.ErrCategorySource, gerrors.CodeIndexOutOfRange, "file index out of range")

// cancelCheckInterval is how many rows are processed between context checks.
const cancelCheckInterval = 4096

// StarWriter receives the stars produced by a worker. Mark is called when a
// file starts; Rollback discards what the file wrote if it does not finish.
type StarWriter interface {
	Write(ctx context.Context, star types.Star) error
	Flush(ctx context.Context) error
	Mark()
	Rollback() error
}

// FileWorker processes whole source files, one at a time.
type FileWorker struct {
	files    []string
	stop     int
	enricher *enrich.Enricher
	writer   StarWriter
	emitter  *logagg.Emitter
	name     string

	// optional collaborators
	ledger  *progress.Ledger
	runID   string
	metrics *observability.Metrics
	stats   *observability.RunStats
}

// WorkerOptions wires the optional collaborators of a FileWorker.
type WorkerOptions struct {
	// Name tags log events and statistics
	Name string

	// Stop is the end of the run's range, shown in progress lines
	Stop int

	// Ledger records file completion; when set, the writer is flushed
	// before a file is marked done
	Ledger *progress.Ledger
	RunID  string

	Metrics *observability.Metrics
	Stats   *observability.RunStats
}

// NewFileWorker creates a worker over the sorted file list.
func NewFileWorker(files []string, enricher *enrich.Enricher, writer StarWriter, emitter *logagg.Emitter, opts WorkerOptions) *FileWorker {
	stop := opts.Stop
	if stop <= 0 {
		stop = len(files)
	}
	return &FileWorker{
		files:    files,
		stop:     stop,
		enricher: enricher,
		writer:   writer,
		emitter:  emitter,
		name:     opts.Name,
		ledger:   opts.Ledger,
		runID:    opts.RunID,
		metrics:  opts.Metrics,
		stats:    opts.Stats,
	}
}

// Process streams the file at fileIndex through the enricher into the
// writer. An index outside the file list is reported and returns
// ErrIndexOutOfRange; callers move on to their next index.
func (w *FileWorker) Process(ctx context.Context, fileIndex int) (enrich.Counters, error) {
	var counters enrich.Counters

	if fileIndex < 0 || fileIndex >= len(w.files) {
		w.emitter.Log(logrus.ErrorLevel, "file index out of range", logrus.Fields{
			"index": fileIndex,
			"files": len(w.files),
		})
		w.recordFailure(fileIndex, "", 0)
		return counters, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, fileIndex, len(w.files))
	}

	path := w.files[fileIndex]
	name := filepath.Base(path)
	started := time.Now()

	w.emitter.Infof("%d / %d", fileIndex, w.stop)
	w.emitter.Infof("%s", name)

	if w.ledger != nil {
		if err := w.ledger.Start(ctx, w.runID, fileIndex, name); err != nil {
			w.emitter.Warnf("progress ledger unavailable for %s: %v", name, err)
		}
	}

	w.writer.Mark()
	finished := false
	defer func() {
		if finished {
			return
		}
		if err := w.writer.Rollback(); err != nil {
			w.emitter.Warnf("failed to discard output of %s: %v", name, err)
		}
	}()

	err := w.stream(ctx, path, &counters)
	if err == nil && w.ledger != nil {
		err = w.writer.Flush(ctx)
	}
	duration := time.Since(started)

	if err != nil {
		w.emitter.Log(logrus.ErrorLevel, "file failed", logrus.Fields{
			"file":     name,
			"index":    fileIndex,
			"rows":     counters.Rows(),
			"error":    err.Error(),
			"duration": duration.Round(100 * time.Microsecond).String(),
		})
		if w.ledger != nil {
			if lerr := w.ledger.Fail(ctx, name, err); lerr != nil {
				w.emitter.Warnf("progress ledger unavailable for %s: %v", name, lerr)
			}
		}
		w.recordFailure(fileIndex, name, duration)
		return counters, err
	}
	finished = true

	if w.ledger != nil {
		if err := w.ledger.Finish(ctx, name, counters); err != nil {
			w.emitter.Warnf("progress ledger unavailable for %s: %v", name, err)
		}
	}
	w.emitter.Log(logrus.InfoLevel, fmt.Sprintf("%s done in %.4f", name, duration.Seconds()), logrus.Fields{
		"catalog_length":   counters.Emitted,
		"skipped_no_mag":   counters.SkippedNoMag,
		"crossmatches_hip": counters.CrossmatchHip,
		"crossmatches_tyc": counters.CrossmatchTyc,
	})
	w.recordSuccess(fileIndex, name, duration, counters)
	return counters, nil
}

func (w *FileWorker) stream(ctx context.Context, path string, counters *enrich.Counters) error {
	r, err := source.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		star, ok := w.enricher.Enrich(row)
		counters.Observe(star, ok)
		if !ok {
			continue
		}
		if err := w.writer.Write(ctx, star); err != nil {
			return err
		}
	}
}

func (w *FileWorker) recordSuccess(index int, name string, d time.Duration, c enrich.Counters) {
	if w.metrics != nil {
		w.metrics.FilesTotal.WithLabelValues("done").Inc()
		w.metrics.RowsTotal.WithLabelValues("emitted").Add(float64(c.Emitted))
		w.metrics.RowsTotal.WithLabelValues("skipped_no_mag").Add(float64(c.SkippedNoMag))
		w.metrics.Crossmatches.WithLabelValues("hip").Add(float64(c.CrossmatchHip))
		w.metrics.Crossmatches.WithLabelValues("tyc").Add(float64(c.CrossmatchTyc))
		w.metrics.FileDuration.Observe(d.Seconds())
	}
	if w.stats != nil {
		w.stats.RecordFile(observability.FileStats{
			Name: name, Index: index, Worker: w.name, Duration: d, Rows: c.Rows(),
		})
	}
}

func (w *FileWorker) recordFailure(index int, name string, d time.Duration) {
	if w.metrics != nil {
		w.metrics.FilesTotal.WithLabelValues("failed").Inc()
	}
	if w.stats != nil {
		if name == "" {
			name = fmt.Sprintf("#%d", index)
		}
		w.stats.RecordFile(observability.FileStats{
			Name: name, Index: index, Worker: w.name, Duration: d, Failed: true,
		})
	}
}
