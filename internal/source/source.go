// Package source discovers and streams Gaia source files.
package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
	"github.com/gaiacat/gaiacat/pkg/types"
)

// Columns read from every source file. Other columns are ignored.
const (
	ColSourceID     = "source_id"
	ColRA           = "ra"
	ColDec          = "dec"
	ColRefEpoch     = "ref_epoch"
	ColParallax     = "parallax"
	ColPMRA         = "pmra"
	ColPMDec        = "pmdec"
	ColPhotGMeanMag = "phot_g_mean_mag"
	ColBPRP         = "bp_rp"
)

var requiredColumns = []string{
	ColSourceID, ColRA, ColDec, ColRefEpoch,
	ColParallax, ColPMRA, ColPMDec, ColPhotGMeanMag, ColBPRP,
}

// Discover returns the files in dir matching pattern, sorted lexicographically.
func Discover(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, gerrors.NewSourceError(gerrors.CodeFileUnreadable, "invalid source pattern", err)
	}
	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

// OpenCompressed opens path for reading, transparently decompressing .gz files.
func OpenCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	ferr := g.file.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

// Reader streams SourceRows from one file without loading it whole.
type Reader struct {
	path   string
	rc     io.ReadCloser
	csv    *csv.Reader
	cols   map[string]int
	line   int
	closed bool
}

// Open opens a source file and reads its header.
func Open(path string) (*Reader, error) {
	rc, err := OpenCompressed(path)
	if err != nil {
		return nil, gerrors.NewSourceError(gerrors.CodeFileUnreadable, "failed to open source file", err).
			WithDetails(map[string]interface{}{"path": path})
	}

	cr := csv.NewReader(rc)
	cr.Comment = '#'
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		rc.Close()
		return nil, gerrors.NewSourceError(gerrors.CodeFileUnreadable, "failed to read source header", err).
			WithDetails(map[string]interface{}{"path": path})
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			rc.Close()
			return nil, gerrors.NewSourceError(gerrors.CodeFileUnreadable,
				fmt.Sprintf("source file missing column %q", name), nil).WithDetails(map[string]interface{}{"path": path})
		}
	}

	return &Reader{path: path, rc: rc, csv: cr, cols: cols}, nil
}

// Next returns the next row, or io.EOF when the file is exhausted.
func (r *Reader) Next() (types.SourceRow, error) {
	rec, err := r.csv.Read()
	if err == io.EOF {
		return types.SourceRow{}, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			r.line = pe.Line
		}
		return types.SourceRow{}, r.malformed("unreadable row", err)
	}
	r.line, _ = r.csv.FieldPos(0)

	var row types.SourceRow
	if row.SourceID, err = strconv.ParseInt(r.field(rec, ColSourceID), 10, 64); err != nil {
		return types.SourceRow{}, r.malformed("invalid source_id", err)
	}
	if row.RA, err = r.required(rec, ColRA); err != nil {
		return types.SourceRow{}, err
	}
	if row.Dec, err = r.required(rec, ColDec); err != nil {
		return types.SourceRow{}, err
	}
	if row.RefEpoch, err = r.required(rec, ColRefEpoch); err != nil {
		return types.SourceRow{}, err
	}
	if row.Parallax, err = r.optional(rec, ColParallax); err != nil {
		return types.SourceRow{}, err
	}
	if row.PMRA, err = r.optional(rec, ColPMRA); err != nil {
		return types.SourceRow{}, err
	}
	if row.PMDec, err = r.optional(rec, ColPMDec); err != nil {
		return types.SourceRow{}, err
	}
	if row.PhotGMeanMag, err = r.optional(rec, ColPhotGMeanMag); err != nil {
		return types.SourceRow{}, err
	}
	if row.BPRP, err = r.optional(rec, ColBPRP); err != nil {
		return types.SourceRow{}, err
	}
	return row, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rc.Close()
}

func (r *Reader) field(rec []string, name string) string {
	i := r.cols[name]
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (r *Reader) required(rec []string, name string) (float64, error) {
	v, err := strconv.ParseFloat(r.field(rec, name), 64)
	if err != nil {
		return 0, r.malformed("invalid "+name, err)
	}
	return v, nil
}

func (r *Reader) optional(rec []string, name string) (*float64, error) {
	s := r.field(rec, name)
	if isNull(s) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, r.malformed("invalid "+name, err)
	}
	return &v, nil
}

func (r *Reader) malformed(msg string, cause error) error {
	return gerrors.NewSourceError(gerrors.CodeRowMalformed, msg, cause).
		WithDetails(map[string]interface{}{"path": r.path, "line": r.line})
}

func isNull(s string) bool {
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan")
}
