package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no object exists at the key
var ErrNotFound = errors.New("object not found")

// BlobStore is the interface for artifact stores.
// Put overwrites any existing object, so a retried step simply writes again.
type BlobStore interface {
	// Put stores data at key, replacing any previous object
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the object stored at key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Close releases any resources held by the store
	Close() error
}

// Content types used for chapter artifacts
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypePNG  = "image/png"
)

// DefaultPrefix is the key prefix used when none is configured
const DefaultPrefix = "summary"

// ArtifactKey builds the object key for one chapter artifact:
// {prefix}/{book}/{chapter}.{ext} with all spaces removed.
func ArtifactKey(prefix, book, chapter, ext string) string {
	prefix = strings.Trim(prefix, "/")
	ext = strings.TrimPrefix(ext, ".")

	key := fmt.Sprintf("%s/%s.%s", book, chapter, ext)
	if prefix != "" {
		key = prefix + "/" + key
	}
	return strings.ReplaceAll(key, " ", "")
}
