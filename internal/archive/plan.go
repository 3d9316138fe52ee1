// Package archive packs compacted catalog partitions into size-bounded
// tarball bundles and optionally publishes them to object storage.
package archive

import (
	"github.com/gaiacat/gaiacat/internal/catalog"
)

// PartitionDir is one partition directory to be archived.
type PartitionDir struct {
	// Name is the directory name, used as the path prefix inside the bundle
	Name string

	// Files are the data files of the partition
	Files []string

	// Bytes is the total size of Files
	Bytes int64
}

// ScanPartitions lists the partition directories under root in pixel order.
func ScanPartitions(root string) ([]PartitionDir, error) {
	parts, err := catalog.ListPartitions(root)
	if err != nil {
		return nil, err
	}
	out := make([]PartitionDir, 0, len(parts))
	for _, p := range parts {
		if len(p.Files) == 0 {
			continue
		}
		out = append(out, PartitionDir{Name: p.Key.DirName(), Files: p.Files, Bytes: p.Bytes})
	}
	return out, nil
}

// Plan packs partitions greedily, in order, into bundles whose total size
// does not exceed maxBytes. A partition larger than maxBytes gets a bundle
// of its own. Every partition lands in exactly one bundle.
func Plan(parts []PartitionDir, maxBytes int64) [][]PartitionDir {
	var bundles [][]PartitionDir
	var current []PartitionDir
	var size int64
	for _, p := range parts {
		if len(current) > 0 && size+p.Bytes > maxBytes {
			bundles = append(bundles, current)
			current = nil
			size = 0
		}
		current = append(current, p)
		size += p.Bytes
	}
	if len(current) > 0 {
		bundles = append(bundles, current)
	}
	return bundles
}
