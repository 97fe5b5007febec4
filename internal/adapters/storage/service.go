// Package storage fetches intake documents from S3-compatible object storage
// (or plain HTTPS links) for attachment to a matter.
package storage

import (
	"context"
	"io"
)

// ObjectStore reads objects by bucket and key.
type ObjectStore interface {
	// DownloadFile opens an object. The caller closes the returned reader.
	DownloadFile(ctx context.Context, bucket, fileKey string) (io.ReadCloser, error)
}

// ObjectRef addresses one stored object.
type ObjectRef struct {
	Bucket string
	Key    string
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	IsMinIOEnabled() bool
}
