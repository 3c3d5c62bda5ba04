package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"

	"ms-sorteos/internal/config"
	"ms-sorteos/internal/logger"
)

var ErrNotFound = errors.New("object not found")

// BlobStore keeps generated documents such as invoices.
type BlobStore interface {
	// Put stores data under key and returns the location recorded in the database.
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// New picks the store configured by STORAGE_DRIVER.
func New(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (BlobStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
			KeyID:     cfg.S3KeyID,
			Secret:    cfg.S3Secret,
			Endpoint:  cfg.S3BaseURL,
			PathStyle: cfg.S3BaseURL != "",
		}, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
