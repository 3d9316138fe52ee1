// Package crossmatch loads the survey-id to external-catalog-id tables.
package crossmatch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
	"github.com/gaiacat/gaiacat/internal/source"
)

// Column names of a cross-match table.
const (
	KeyColumn   = "source_id"
	ValueColumn = "original_ext_source_id"
)

// Index is an immutable mapping from survey id to external catalog id.
// It is never mutated after Load and is safe for concurrent readers.
type Index[T any] struct {
	name    string
	entries map[int64]T
}

// Load reads a cross-match table. Values are converted with cast.
// Any unreadable file, missing column or unparseable entry is an error.
func Load[T any](path string, cast func(string) (T, error)) (*Index[T], error) {
	rc, err := source.OpenCompressed(path)
	if err != nil {
		return nil, gerrors.NewCrossmatchError(gerrors.CodeTableUnreadable, "failed to open cross-match table", err).
			WithDetails(map[string]interface{}{"path": path})
	}
	defer rc.Close()

	idx, err := read(rc, cast)
	if err != nil {
		return nil, gerrors.NewCrossmatchError(gerrors.CodeTableMalformed, "failed to load cross-match table", err).
			WithDetails(map[string]interface{}{"path": path})
	}
	idx.name = path
	return idx, nil
}

func read[T any](r io.Reader, cast func(string) (T, error)) (*Index[T], error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	keyCol, valCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case KeyColumn:
			keyCol = i
		case ValueColumn:
			valCol = i
		}
	}
	if keyCol < 0 || valCol < 0 {
		return nil, fmt.Errorf("header must contain %q and %q", KeyColumn, ValueColumn)
	}

	entries := make(map[int64]T)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if keyCol >= len(rec) || valCol >= len(rec) {
			return nil, fmt.Errorf("line %d: short record", line)
		}
		key, err := strconv.ParseInt(strings.TrimSpace(rec[keyCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, KeyColumn, err)
		}
		val, err := cast(strings.TrimSpace(rec[valCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ValueColumn, err)
		}
		entries[key] = val
	}
	return &Index[T]{entries: entries}, nil
}

// Get returns the external id matched to a survey id.
func (x *Index[T]) Get(id int64) (T, bool) {
	if x == nil {
		var zero T
		return zero, false
	}
	v, ok := x.entries[id]
	return v, ok
}

// Len returns the number of entries.
func (x *Index[T]) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Name returns the path the index was loaded from.
func (x *Index[T]) Name() string {
	return x.name
}

// FromMap builds an index from an in-memory mapping. The map is copied.
func FromMap[T any](m map[int64]T) *Index[T] {
	entries := make(map[int64]T, len(m))
	for k, v := range m {
		entries[k] = v
	}
	return &Index[T]{name: "memory", entries: entries}
}

// ParseInt64 casts Hipparcos identifiers.
func ParseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// ParseString casts Tycho identifiers. Empty values are rejected.
func ParseString(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty identifier")
	}
	return s, nil
}
