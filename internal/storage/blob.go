// Package storage provides the blob-store collaborator that holds the raw
// bytes of uploaded report files. The production implementation targets any
// S3-compatible bucket (AWS S3, MinIO, R2's S3 API) through the AWS SDK v2.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Get when the requested key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Object is a fetched blob together with the metadata the download route
// needs to stream it back: content type and the store's ETag.
//
// Body must be closed by the caller.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ETag          string
	ContentLength int64
}

// BlobStore is the abstract blob collaborator consumed by services.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Put stores body under key, tagged with contentType.
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	// Get fetches the object stored under key, or ErrObjectNotFound.
	Get(ctx context.Context, key string) (*Object, error)
}

// UploadKey builds the object key for a new upload:
// {prefix}/{owner}/{epoch-ms}-{filename}. The filename is kept verbatim
// except for path separators, which would corrupt the key hierarchy.
func UploadKey(prefix, owner, filename string, now time.Time) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(filename)
	return fmt.Sprintf("%s/%s/%d-%s", prefix, owner, now.UnixMilli(), safe)
}
