package types

import "errors"

var (
	// ErrInvalidPartitionDir is returned for directories that are not partitions
	ErrInvalidPartitionDir = errors.New("invalid partition directory")
)
