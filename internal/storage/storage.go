// Package storage provides object storage for published archive bundles.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/gaiacat/gaiacat/internal/config"
	gerrors "github.com/gaiacat/gaiacat/internal/errors"
)

// Common errors for storage operations. Upload and lookup failures are
// retryable; a missing local file is not.
var (
	ErrUploadFailed = gerrors.New(gerrors.ErrCategoryStorage, gerrors.CodeUploadFailed, "upload failed")
	ErrLookupFailed = gerrors.New(gerrors.ErrCategoryStorage, gerrors.CodeLookupFailed, "lookup failed")
	ErrFileMissing  = gerrors.New(gerrors.ErrCategoryStorage, gerrors.CodeFileMissing, "local file missing")
)

// ObjectStorage abstracts object storage operations.
// Implementations are S3 and the local filesystem. Each call makes a single
// attempt; callers wrap them with Retry.
type ObjectStorage interface {
	// Upload uploads the local file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)
}

// New opens the storage backend named by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "local":
		return NewLocalStorage(cfg.Path)
	case "s3":
		s3Cfg := DefaultS3Config()
		if cfg.S3.Region != "" {
			s3Cfg.Region = cfg.S3.Region
		}
		s3Cfg.Endpoint = cfg.S3.Endpoint
		s3Cfg.UsePathStyle = cfg.S3.UsePathStyle
		return NewS3Storage(ctx, cfg.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

func wrap(sentinel *gerrors.GaiacatError, err error) error {
	return fmt.Errorf("%w: %v", sentinel, err)
}
