package compaction

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/gaiacat/gaiacat/internal/catalog"
	gerrors "github.com/gaiacat/gaiacat/internal/errors"
	"github.com/gaiacat/gaiacat/pkg/types"
)

// SourceFilesKey is the metadata entry counting the files merged into a compacted file.
const SourceFilesKey = "gaiacat.source_files"

// MergeOptions controls how compacted files are written.
type MergeOptions struct {
	Compression  string
	RowGroupSize int64
	SortColumns  []string
}

// MergeResult holds the outcome of merging one partition.
type MergeResult struct {
	Key types.PartitionKey

	// StagingPath is the written file, not yet visible as the compacted file
	StagingPath string

	// Path is where Commit places the file
	Path string

	Inputs      []string
	TotalRows   int64
	Fingerprint Fingerprint
}

// Merger reads a partition's inputs and writes them as one sorted file.
type Merger struct {
	opts MergeOptions
}

// NewMerger creates a merger. Without sort columns the star schema's are used.
func NewMerger(opts MergeOptions) *Merger {
	if len(opts.SortColumns) == 0 {
		opts.SortColumns = types.StarSchema().SortColumns
	}
	return &Merger{opts: opts}
}

// Merge reads every input of the candidate, sorts the rows stably and writes
// them to a staging file in the partition directory. Nothing visible in the
// partition changes until Commit.
func (m *Merger) Merge(ctx context.Context, c Candidate) (*MergeResult, error) {
	var rows []types.Star
	fp := Fingerprint{}
	for _, path := range c.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stars, err := catalog.ReadFile(path)
		if err != nil {
			return nil, gerrors.NewCompactionError(gerrors.CodeMergeFailed, "failed to read input", err).
				WithDetails(map[string]interface{}{"partition": c.Partition.Key.Index, "path": path})
		}
		for i := range stars {
			fp.Add(&stars[i])
		}
		rows = append(rows, stars...)
	}

	catalog.SortStable(rows, m.opts.SortColumns)

	staging := filepath.Join(c.Partition.Dir, ".staging-"+uuid.NewString()[:8]+catalog.FileExt)
	err := catalog.WriteFile(staging, rows, catalog.FileOptions{
		Compression:  m.opts.Compression,
		RowGroupSize: m.opts.RowGroupSize,
		SortColumns:  m.opts.SortColumns,
		Metadata:     map[string]string{SourceFilesKey: strconv.Itoa(len(c.Inputs))},
	})
	if err != nil {
		return nil, gerrors.NewCompactionError(gerrors.CodeMergeFailed, "failed to write compacted file", err).
			WithDetails(map[string]interface{}{"partition": c.Partition.Key.Index})
	}

	return &MergeResult{
		Key:         c.Partition.Key,
		StagingPath: staging,
		Path:        filepath.Join(c.Partition.Dir, catalog.CompactedFileName),
		Inputs:      c.Inputs,
		TotalRows:   int64(len(rows)),
		Fingerprint: fp,
	}, nil
}

// Commit renames the staging file over the compacted file.
func (m *Merger) Commit(r *MergeResult) error {
	if err := os.Rename(r.StagingPath, r.Path); err != nil {
		return gerrors.NewCompactionError(gerrors.CodeMergeFailed, "failed to commit compacted file", err).
			WithDetails(map[string]interface{}{"partition": r.Key.Index})
	}
	return nil
}

// Discard removes the staging file of a merge that will not be committed.
func (m *Merger) Discard(r *MergeResult) error {
	if r == nil || r.StagingPath == "" {
		return nil
	}
	if err := os.Remove(r.StagingPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
