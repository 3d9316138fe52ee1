package types

import (
	"fmt"
	"strconv"
	"strings"
)

// HealpixScheme is the pixel numbering scheme used for spatial partitioning.
type HealpixScheme string

const (
	// SchemeNested numbers pixels hierarchically (children of a pixel are contiguous)
	SchemeNested HealpixScheme = "nested"

	// SchemeRing numbers pixels along iso-latitude rings
	SchemeRing HealpixScheme = "ring"
)

// PartitionColumn is the column the catalog is partitioned on.
const PartitionColumn = "healpix_index"

// PartitionKey identifies one spatial partition of the catalog.
type PartitionKey struct {
	// Index is the HEALPix pixel index
	Index int64 `json:"index"`
}

// DirName returns the hive-style directory name of the partition.
func (k PartitionKey) DirName() string {
	return fmt.Sprintf("%s=%d", PartitionColumn, k.Index)
}

// ParsePartitionDir parses a directory name produced by DirName.
func ParsePartitionDir(name string) (PartitionKey, error) {
	prefix := PartitionColumn + "="
	if !strings.HasPrefix(name, prefix) {
		return PartitionKey{}, fmt.Errorf("%w: %q", ErrInvalidPartitionDir, name)
	}
	v, err := strconv.ParseInt(strings.TrimPrefix(name, prefix), 10, 64)
	if err != nil {
		return PartitionKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidPartitionDir, name, err)
	}
	return PartitionKey{Index: v}, nil
}

// PartitionKeyConfig holds configuration for partition key generation.
type PartitionKeyConfig struct {
	// Nside is the HEALPix resolution parameter (power of two)
	Nside int `json:"nside" yaml:"nside"`

	// Scheme is the pixel numbering scheme
	Scheme HealpixScheme `json:"scheme" yaml:"scheme"`
}
