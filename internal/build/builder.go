package build

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gaiacat/gaiacat/internal/catalog"
	"github.com/gaiacat/gaiacat/internal/config"
	"github.com/gaiacat/gaiacat/internal/constellation"
	"github.com/gaiacat/gaiacat/internal/crossmatch"
	"github.com/gaiacat/gaiacat/internal/enrich"
	"github.com/gaiacat/gaiacat/internal/logagg"
	"github.com/gaiacat/gaiacat/internal/observability"
	"github.com/gaiacat/gaiacat/internal/progress"
	"github.com/gaiacat/gaiacat/internal/source"
	"github.com/gaiacat/gaiacat/pkg/types"
)

// Summary reports a finished build.
type Summary struct {
	RunID        string
	Range        Chunk
	Files        int
	FilesFailed  int
	FilesSkipped int
	Crashed      int
	Counters     enrich.Counters
	Shards       int
	Duration     time.Duration
	Workers      []WorkerResult
}

// OK reports whether every file in range was processed.
func (s *Summary) OK() bool {
	return s.FilesFailed == 0 && s.Crashed == 0
}

// Builder runs a complete build from configuration.
type Builder struct {
	cfg     *config.Config
	metrics *observability.Metrics
	stats   *observability.RunStats
	console io.Writer
}

// NewBuilder creates a builder. metrics may be nil.
func NewBuilder(cfg *config.Config, metrics *observability.Metrics) *Builder {
	return &Builder{cfg: cfg, metrics: metrics, stats: observability.NewRunStats()}
}

// SetConsole redirects the console log sink (stdout by default).
func (b *Builder) SetConsole(w io.Writer) {
	b.console = w
}

// Stats returns per-file statistics of the last run.
func (b *Builder) Stats() *observability.RunStats {
	return b.stats
}

// Run executes the build. Startup failures (unreadable cross-match tables,
// boundaries or source directory) abort before any file is processed;
// per-file failures are reported in the summary.
func (b *Builder) Run(ctx context.Context) (*Summary, error) {
	cfg := b.cfg
	started := time.Now()
	runID := uuid.NewString()

	agg, err := logagg.New(logagg.Options{
		Level:    cfg.Logging.Level,
		FilePath: cfg.Logging.File,
		Console:  b.console,
	})
	if err != nil {
		return nil, err
	}
	agg.Start()
	// Workers have all joined by the time this runs.
	defer agg.Shutdown()

	em := agg.Emitter("main")

	hip, tyc, locator, err := b.loadReferenceData(em)
	if err != nil {
		em.Errorf("startup failed: %v", err)
		return nil, err
	}

	files, err := source.Discover(cfg.Build.SourceDir, cfg.Build.Pattern)
	if err != nil {
		em.Errorf("startup failed: %v", err)
		return nil, err
	}

	start, stop := cfg.Build.Start, cfg.Build.Stop
	if stop < 0 {
		stop = len(files)
	}
	em.Infof("Starting... [%d : %d] run %s, %d source files, %d workers", start, stop, runID, len(files), cfg.Build.Workers)

	ledger, err := progress.Open(cfg.Build.ProgressPath)
	if err != nil {
		em.Errorf("startup failed: %v", err)
		return nil, err
	}
	defer ledger.Close()

	skip, err := b.resumeFilter(ctx, ledger, runID, files, em)
	if err != nil {
		em.Errorf("startup failed: %v", err)
		return nil, err
	}

	sortColumns := types.StarSchema().SortColumns
	factory := func(id int) (*FileWorker, func() error, error) {
		wem := em.With(fmt.Sprintf("worker-%d", id))
		writer, err := catalog.NewWriter(catalog.Options{
			OutputPath:    cfg.Build.OutputDir,
			ChunkSize:     cfg.Catalog.ChunkSize,
			Compression:   cfg.Catalog.Compression,
			RowGroupSize:  cfg.Catalog.RowGroupSize,
			HealpixNside:  int64(cfg.Catalog.Partitioning.Nside),
			HealpixScheme: cfg.Catalog.Partitioning.Scheme,
			SortColumns:   sortColumns,
			RunID:         runID,
		}, wem)
		if err != nil {
			return nil, nil, err
		}
		if b.metrics != nil {
			writer.OnFlush(func(s catalog.FlushStats) { b.metrics.ShardsTotal.Add(float64(s.Shards)) })
		}
		w := NewFileWorker(files, enrich.New(hip, tyc, locator), writer, wem, WorkerOptions{
			Name:    fmt.Sprintf("worker-%d", id),
			Stop:    stop,
			Ledger:  ledger,
			RunID:   runID,
			Metrics: b.metrics,
			Stats:   b.stats,
		})
		return w, writer.Close, nil
	}

	chunks := Partition(start, stop, cfg.Build.Workers)
	results := NewDistributor(factory, em, skip).Run(ctx, chunks)

	summary := &Summary{
		RunID:    runID,
		Range:    Chunk{Start: start, Stop: stop},
		Workers:  results,
		Duration: time.Since(started),
	}
	for _, r := range results {
		summary.Counters.Add(r.Counters)
		summary.Files += r.Processed
		summary.FilesFailed += r.Failed
		summary.FilesSkipped += r.Skipped
		if r.Crashed {
			summary.Crashed++
		}
	}
	if parts, err := catalog.ListPartitions(cfg.Build.OutputDir); err == nil {
		for _, p := range parts {
			summary.Shards += len(p.Shards())
		}
	}

	b.logSummary(em, summary)
	if b.metrics != nil {
		b.metrics.FilesTotal.WithLabelValues("skipped").Add(float64(summary.FilesSkipped))
		b.metrics.StageDuration.WithLabelValues("build").Set(summary.Duration.Seconds())
	}
	return summary, ctx.Err()
}

func (b *Builder) loadReferenceData(em *logagg.Emitter) (*crossmatch.Index[int64], *crossmatch.Index[string], constellation.Locator, error) {
	cfg := b.cfg

	t := time.Now()
	hip, err := crossmatch.Load(cfg.Crossmatch.HipPath, crossmatch.ParseInt64)
	if err != nil {
		return nil, nil, nil, err
	}
	tyc, err := crossmatch.Load(cfg.Crossmatch.TycPath, crossmatch.ParseString)
	if err != nil {
		return nil, nil, nil, err
	}
	em.Infof("loaded cross-match tables: %s hip, %s tyc in %s",
		FormatCount(int64(hip.Len())), FormatCount(int64(tyc.Len())), time.Since(t).Round(time.Millisecond))

	if !cfg.Build.Constellations {
		return hip, tyc, nil, nil
	}
	table, err := constellation.LoadTable(cfg.Build.BoundariesPath)
	if err != nil {
		return nil, nil, nil, err
	}
	em.Infof("loaded %d constellation boundaries", table.Len())
	return hip, tyc, table, nil
}

// resumeFilter returns the skip function for files completed by earlier runs.
// Without build.resume every file in range is processed.
func (b *Builder) resumeFilter(ctx context.Context, ledger *progress.Ledger, runID string, files []string, em *logagg.Emitter) (func(int) bool, error) {
	if !b.cfg.Build.Resume {
		return nil, nil
	}
	done, err := ledger.Completed(ctx)
	if err != nil {
		return nil, err
	}
	incomplete, err := ledger.Incomplete(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, e := range incomplete {
		em.Log(logrus.WarnLevel, "reprocessing file left incomplete by an earlier run", logrus.Fields{
			"file":   e.FileName,
			"status": string(e.Status),
			"run":    e.RunID,
		})
	}
	em.Infof("resume: %d files already done", len(done))

	return func(idx int) bool {
		if idx < 0 || idx >= len(files) {
			return false
		}
		return done[filepath.Base(files[idx])]
	}, nil
}

func (b *Builder) logSummary(em *logagg.Emitter, s *Summary) {
	em.Infof("skipped_no_mag = %s", FormatCount(s.Counters.SkippedNoMag))
	em.Infof("catalog_length = %s", FormatCount(s.Counters.Emitted))
	em.Infof("crossmatches_hip = %s", FormatCount(s.Counters.CrossmatchHip))
	em.Infof("crossmatches_tyc = %s", FormatCount(s.Counters.CrossmatchTyc))

	fields := logrus.Fields{
		"files":         s.Files,
		"files_failed":  s.FilesFailed,
		"files_skipped": s.FilesSkipped,
		"shards":        s.Shards,
	}
	if s.Crashed > 0 {
		fields["workers_crashed"] = s.Crashed
	}
	level := logrus.InfoLevel
	if !s.OK() {
		level = logrus.WarnLevel
		fields["failed"] = b.stats.Failed()
	}
	em.Log(level, fmt.Sprintf("Done in %.2fs", s.Duration.Seconds()), fields)

	for _, f := range b.stats.Slowest(3) {
		if f.Failed {
			continue
		}
		em.Debugf("slow file %s: %s on %s", f.Name, f.Duration.Round(time.Millisecond), f.Worker)
	}
}

// FormatCount formats n with thousands separators.
func FormatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
