// Package storage is the object storage facade used for uploaded media.
//
// Objects are addressed by bucket and slash-separated path. Two backends
// exist: the Supabase Storage API and a local directory tree that the API
// server can expose under the same public URL layout.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PublicPathPrefix is the URL path under which public objects are served.
const PublicPathPrefix = "/storage/v1/object/public/"

// Errors returned by ObjectStorage implementations.
var (
	ErrObjectNotFound = errors.New("storage: object not found")
	ErrInvalidPath    = errors.New("storage: invalid object path")
)

// ObjectStorage stores and serves binary objects.
type ObjectStorage interface {
	// Upload writes data at bucket/path, replacing any existing object.
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error

	// Download reads the object at bucket/path.
	Download(ctx context.Context, bucket, path string) ([]byte, error)

	// Delete removes objects. Missing objects are not an error.
	Delete(ctx context.Context, bucket string, paths ...string) error

	// PublicURL returns the URL clients use to fetch a public object.
	PublicURL(bucket, path string) string
}

// validateKey rejects empty, absolute and parent-relative object keys.
func validateKey(bucket, path string) error {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return fmt.Errorf("%w: bucket %q", ErrInvalidPath, bucket)
	}
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

func publicURL(base, bucket, path string) string {
	return strings.TrimSuffix(base, "/") + PublicPathPrefix + bucket + "/" + path
}
