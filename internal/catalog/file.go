package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
	"github.com/gaiacat/gaiacat/pkg/types"
)

// SortingColumnsKey is the key/value metadata entry naming the sort columns.
const SortingColumnsKey = "gaiacat.sorting_columns"

// SchemaVersionKey is the key/value metadata entry carrying the schema version.
const SchemaVersionKey = "gaiacat.schema_version"

// FileOptions controls how one catalog file is written.
type FileOptions struct {
	// Compression is the column codec: snappy, zstd, gzip, none
	Compression string

	// RowGroupSize is the maximum number of rows per row group
	RowGroupSize int64

	// SortColumns are recorded in the file metadata; rows must already be in that order
	SortColumns []string

	// Metadata holds extra key/value entries
	Metadata map[string]string
}

// FileInfo describes a catalog file without reading its rows.
type FileInfo struct {
	NumRows        int64
	NumRowGroups   int
	SortingColumns []string
	Metadata       map[string]string
}

// Codec returns the parquet codec for a compression name.
func Codec(name string) (compress.Codec, error) {
	switch strings.ToLower(name) {
	case "snappy", "":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", name)
	}
}

// WriteFile writes stars to path. The file appears atomically: rows go to
// a temporary file in the same directory which is renamed on success.
func WriteFile(path string, stars []types.Star, opts FileOptions) error {
	codec, err := Codec(opts.Compression)
	if err != nil {
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "invalid file options", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to create directory", err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()[:8]+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to create file", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(codec),
		parquet.KeyValueMetadata(SchemaVersionKey, fmt.Sprintf("%d", types.StarSchema().Version)),
	}
	if opts.RowGroupSize > 0 {
		writerOpts = append(writerOpts, parquet.MaxRowsPerRowGroup(opts.RowGroupSize))
	}
	if len(opts.SortColumns) > 0 {
		sorting := make([]parquet.SortingColumn, len(opts.SortColumns))
		for i, col := range opts.SortColumns {
			sorting[i] = parquet.Ascending(col)
		}
		writerOpts = append(writerOpts,
			parquet.SortingWriterConfig(parquet.SortingColumns(sorting...)),
			parquet.KeyValueMetadata(SortingColumnsKey, strings.Join(opts.SortColumns, ",")),
		)
	}
	for k, v := range opts.Metadata {
		writerOpts = append(writerOpts, parquet.KeyValueMetadata(k, v))
	}

	w := parquet.NewGenericWriter[types.Star](f, writerOpts...)
	if _, err := w.Write(stars); err != nil {
		f.Close()
		os.Remove(tmp)
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to write rows", err).
			WithDetails(map[string]interface{}{"path": path})
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to finish file", err).
			WithDetails(map[string]interface{}{"path": path})
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to sync file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to close file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return gerrors.NewCatalogError(gerrors.CodeWriteFailed, "failed to rename file", err)
	}
	return nil
}

// ReadFile reads every star in a catalog file. Columns outside the star
// schema, such as a writer's row index column, are projected away.
func ReadFile(path string) ([]types.Star, error) {
	stars, err := parquet.ReadFile[types.Star](path)
	if err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeReadFailed, "failed to read catalog file", err).
			WithDetails(map[string]interface{}{"path": path})
	}
	return stars, nil
}

// Stat reads the footer of a catalog file.
func Stat(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeReadFailed, "failed to open catalog file", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeReadFailed, "failed to stat catalog file", err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeReadFailed, "failed to open parquet footer", err).
			WithDetails(map[string]interface{}{"path": path})
	}

	info := &FileInfo{
		NumRows:      pf.NumRows(),
		NumRowGroups: len(pf.RowGroups()),
		Metadata:     make(map[string]string),
	}
	for _, kv := range pf.Metadata().KeyValueMetadata {
		info.Metadata[kv.Key] = kv.Value
	}
	if v, ok := pf.Lookup(SortingColumnsKey); ok && v != "" {
		info.SortingColumns = strings.Split(v, ",")
	}
	return info, nil
}
