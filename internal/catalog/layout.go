package catalog

import (
	"os"
	"path/filepath"
	"sort"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
	"github.com/gaiacat/gaiacat/pkg/types"
)

// Partition is one partition directory under a build root.
type Partition struct {
	Key types.PartitionKey
	Dir string

	// Files are the data files in the directory, sorted by name
	Files []string

	// Bytes is the total size of Files
	Bytes int64
}

// Shards returns the files other than the compacted file.
func (p Partition) Shards() []string {
	var out []string
	for _, f := range p.Files {
		if filepath.Base(f) != CompactedFileName {
			out = append(out, f)
		}
	}
	return out
}

// HasCompacted reports whether the compacted file exists in the partition.
func (p Partition) HasCompacted() bool {
	for _, f := range p.Files {
		if filepath.Base(f) == CompactedFileName {
			return true
		}
	}
	return false
}

// ListPartitions returns the partition directories under root ordered by
// pixel index. Entries that are not partition directories are ignored.
func ListPartitions(root string) ([]Partition, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, gerrors.NewCatalogError(gerrors.CodeReadFailed, "failed to list build root", err).
			WithDetails(map[string]interface{}{"path": root})
	}

	var parts []Partition
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		key, err := types.ParsePartitionDir(e.Name())
		if err != nil {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, size, err := listDataFiles(dir)
		if err != nil {
			return nil, err
		}
		parts = append(parts, Partition{Key: key, Dir: dir, Files: files, Bytes: size})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Key.Index < parts[j].Key.Index })
	return parts, nil
}

func listDataFiles(dir string) ([]string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, gerrors.NewCatalogError(gerrors.CodeReadFailed, "failed to list partition", err).
			WithDetails(map[string]interface{}{"path": dir})
	}
	var files []string
	var size int64
	for _, e := range entries {
		if e.IsDir() || !IsDataFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, 0, gerrors.NewCatalogError(gerrors.CodeReadFailed, "failed to stat data file", err)
		}
		files = append(files, filepath.Join(dir, e.Name()))
		size += info.Size()
	}
	sort.Strings(files)
	return files, size, nil
}
