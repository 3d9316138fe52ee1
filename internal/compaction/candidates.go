// Package compaction merges the shard files of each catalog partition into a
// single magnitude-sorted file and removes the shards once every partition
// has been merged.
package compaction

import (
	"path/filepath"

	"github.com/gaiacat/gaiacat/internal/catalog"
)

// Reason describes why a partition is compacted.
type Reason string

const (
	// ReasonShards means the partition holds shard files from a build
	ReasonShards Reason = "shards"

	// ReasonRecompact means the partition holds only its compacted file,
	// which is rewritten in place
	ReasonRecompact Reason = "recompact"
)

// Candidate is one partition selected for compaction.
type Candidate struct {
	Partition catalog.Partition

	// Inputs are the files merged into the compacted file
	Inputs []string

	// Stale is the compacted file left over from an earlier run whose
	// cleanup was withheld. It is replaced, never merged.
	Stale string

	Reason Reason
}

// Shards returns the shard files that cleanup removes for this candidate.
func (c Candidate) Shards() []string {
	if c.Reason != ReasonShards {
		return nil
	}
	return c.Inputs
}

// FindCandidates lists the partitions under root that hold data files.
// A partition with shards merges only its shards: a compacted file next to
// them was produced from the same shards by a run whose cleanup was
// withheld, so merging it too would duplicate rows.
func FindCandidates(root string) ([]Candidate, error) {
	parts, err := catalog.ListPartitions(root)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, p := range parts {
		if len(p.Files) == 0 {
			continue
		}
		shards := p.Shards()
		if len(shards) == 0 {
			out = append(out, Candidate{
				Partition: p,
				Inputs:    []string{filepath.Join(p.Dir, catalog.CompactedFileName)},
				Reason:    ReasonRecompact,
			})
			continue
		}
		c := Candidate{Partition: p, Inputs: shards, Reason: ReasonShards}
		if p.HasCompacted() {
			c.Stale = filepath.Join(p.Dir, catalog.CompactedFileName)
		}
		out = append(out, c)
	}
	return out, nil
}
