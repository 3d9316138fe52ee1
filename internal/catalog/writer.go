// Package catalog writes and reads the partitioned columnar star catalog.
//
// A build root holds one hive-style directory per HEALPix pixel
// (healpix_index=<k>). Build workers append shard files to these directories;
// compaction later rewrites each directory into a single sorted file.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
	"github.com/gaiacat/gaiacat/internal/healpix"
	"github.com/gaiacat/gaiacat/internal/logagg"
	"github.com/gaiacat/gaiacat/pkg/types"
)

// CompactedFileName is the name of the single file compaction leaves in a partition.
const CompactedFileName = "stars.parquet"

// FileExt is the extension of every catalog data file.
const FileExt = ".parquet"

// Options configures a Writer.
type Options struct {
	// OutputPath is the build root
	OutputPath string

	// ChunkSize is the number of stars buffered before shards are written
	ChunkSize int

	// Compression is the column codec: snappy, zstd, gzip, none
	Compression string

	// RowGroupSize is the maximum number of rows per row group
	RowGroupSize int64

	// HealpixNside and HealpixScheme define the partition key
	HealpixNside  int64
	HealpixScheme types.HealpixScheme

	// SortColumns order rows inside each shard
	SortColumns []string

	// RunID tags shard names so a run's output can be located
	RunID string
}

// FlushStats describes one flush of the writer buffer.
type FlushStats struct {
	Stars      int
	Shards     int
	Partitions []int64
}

// Writer buffers stars and writes them as per-partition shards.
// A Writer is owned by a single worker and is not safe for concurrent use.
type Writer struct {
	opts    Options
	emitter *logagg.Emitter
	buf     []types.Star
	shards  []string // written since the last Mark
	mark    mark
	closed  bool
	onFlush func(FlushStats)
}

// mark is the writer state at the start of a source file.
type mark struct {
	active bool

	// buffered is the number of stars buffered before the mark that are
	// still at the front of buf
	buffered int

	// carried holds pre-mark stars flushed after the mark
	carried []types.Star
}

// NewWriter creates a writer rooted at opts.OutputPath.
func NewWriter(opts Options, emitter *logagg.Emitter) (*Writer, error) {
	if opts.OutputPath == "" {
		return nil, gerrors.NewConfigError("catalog output path is required", nil)
	}
	if opts.ChunkSize < 1 {
		return nil, gerrors.NewConfigError(fmt.Sprintf("catalog chunk size must be positive, got %d", opts.ChunkSize), nil)
	}
	if !healpix.ValidNside(opts.HealpixNside) {
		return nil, gerrors.NewConfigError(fmt.Sprintf("healpix nside %d is not a power of two", opts.HealpixNside), nil)
	}
	if _, err := Codec(opts.Compression); err != nil {
		return nil, gerrors.NewConfigError("invalid catalog compression", err)
	}
	if err := ValidateSortColumns(opts.SortColumns); err != nil {
		return nil, gerrors.NewConfigError("invalid catalog sort columns", err)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if err := os.MkdirAll(opts.OutputPath, 0755); err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to create build root", err)
	}

	return &Writer{
		opts:    opts,
		emitter: emitter,
		buf:     make([]types.Star, 0, min(opts.ChunkSize, 1<<16)),
	}, nil
}

// OnFlush registers a callback run after every successful flush.
func (w *Writer) OnFlush(fn func(FlushStats)) {
	w.onFlush = fn
}

// Mark records the current position. A later Rollback discards every star
// written after it, including stars already flushed to shards.
func (w *Writer) Mark() {
	w.shards = w.shards[:0]
	w.mark = mark{active: true, buffered: len(w.buf)}
}

// Rollback returns the writer to the last Mark. Shards written since the
// mark are removed and the stars buffered before it are restored.
func (w *Writer) Rollback() error {
	if !w.mark.active {
		return nil
	}
	m := w.mark
	w.mark = mark{}

	var errs []string
	for _, path := range w.shards {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err.Error())
		}
	}
	w.shards = w.shards[:0]

	restored := make([]types.Star, 0, len(m.carried)+m.buffered)
	restored = append(restored, m.carried...)
	restored = append(restored, w.buf[:m.buffered]...)
	w.buf = restored

	if len(errs) > 0 {
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to remove rolled back shards", nil).
			WithDetails(map[string]interface{}{"errors": errs})
	}
	return nil
}

// Write assigns the star's partition and buffers it, flushing when the
// buffer reaches ChunkSize.
func (w *Writer) Write(ctx context.Context, star types.Star) error {
	if w.closed {
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "writer is closed", nil)
	}
	pix, err := healpix.FromRADec(w.opts.HealpixNside, w.opts.HealpixScheme, star.RA, star.Dec)
	if err != nil {
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to compute partition", err)
	}
	star.HealpixIndex = pix
	w.buf = append(w.buf, star)

	if len(w.buf) >= w.opts.ChunkSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes every buffered star. Each partition present in the buffer
// receives one new shard.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	groups := make(map[int64][]types.Star)
	for _, s := range w.buf {
		groups[s.HealpixIndex] = append(groups[s.HealpixIndex], s)
	}
	keys := make([]int64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	fileOpts := FileOptions{
		Compression:  w.opts.Compression,
		RowGroupSize: w.opts.RowGroupSize,
		SortColumns:  w.opts.SortColumns,
	}
	if w.mark.active && w.mark.buffered > 0 {
		w.mark.carried = append(w.mark.carried, w.buf[:w.mark.buffered]...)
		w.mark.buffered = 0
	}

	done := make(map[int64]bool, len(keys))
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			w.retain(done)
			return err
		}
		rows := groups[k]
		SortStable(rows, w.opts.SortColumns)

		path := filepath.Join(w.opts.OutputPath, types.PartitionKey{Index: k}.DirName(), w.shardName())
		if err := WriteFile(path, rows, fileOpts); err != nil {
			w.retain(done)
			return err
		}
		w.shards = append(w.shards, path)
		done[k] = true
	}

	stats := FlushStats{Stars: len(w.buf), Shards: len(keys), Partitions: keys}
	w.buf = w.buf[:0]

	w.emitter.Debugf("catalog: flushed %d stars into %d shards", stats.Stars, stats.Shards)
	if w.onFlush != nil {
		w.onFlush(stats)
	}
	return nil
}

// retain drops the stars of partitions whose shard was written, keeping the
// rest buffered for the next flush.
func (w *Writer) retain(done map[int64]bool) {
	if len(done) == 0 {
		return
	}
	kept := w.buf[:0]
	for _, s := range w.buf {
		if !done[s.HealpixIndex] {
			kept = append(kept, s)
		}
	}
	w.buf = kept
}

// Close flushes the remaining stars. The writer cannot be used afterwards.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	err := w.Flush(context.Background())
	w.closed = true
	return err
}

func (w *Writer) shardName() string {
	return fmt.Sprintf("part-%s-%s%s", short(w.opts.RunID), short(uuid.NewString()), FileExt)
}

func short(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// IsDataFile reports whether name is a catalog data file (shard or compacted).
func IsDataFile(name string) bool {
	return strings.HasSuffix(name, FileExt) && !strings.HasPrefix(name, ".")
}
