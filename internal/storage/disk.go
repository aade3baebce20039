package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPermissions  = 0750
	filePermissions = 0640
)

// Disk implements ObjectStorage on a local directory tree laid out as
// {root}/{bucket}/{path}. Handler serves the tree under PublicPathPrefix.
type Disk struct {
	root    string
	baseURL string
}

// NewDisk creates the root directory if needed.
//
// Parameters:
//   - root: directory that holds one subdirectory per bucket
//   - baseURL: externally visible base URL used by PublicURL
func NewDisk(root, baseURL string) (*Disk, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: root directory is required")
	}
	if err := os.MkdirAll(root, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &Disk{root: root, baseURL: baseURL}, nil
}

// Upload implements ObjectStorage. Files are written to a temp name and renamed.
func (d *Disk) Upload(_ context.Context, bucket, path string, data []byte, _ string) error {
	if err := validateKey(bucket, path); err != nil {
		return err
	}
	full := d.file(bucket, path)
	if err := os.MkdirAll(filepath.Dir(full), dirPermissions); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp object: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing object: %w", err)
	}
	if err := os.Chmod(tmp.Name(), filePermissions); err != nil {
		return fmt.Errorf("setting object permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("storing object: %w", err)
	}
	return nil
}

// Download implements ObjectStorage.
func (d *Disk) Download(_ context.Context, bucket, path string) ([]byte, error) {
	if err := validateKey(bucket, path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.file(bucket, path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading object: %w", err)
	}
	return data, nil
}

// Delete implements ObjectStorage.
func (d *Disk) Delete(_ context.Context, bucket string, paths ...string) error {
	for _, p := range paths {
		if err := validateKey(bucket, p); err != nil {
			return err
		}
		if err := os.Remove(d.file(bucket, p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting object: %w", err)
		}
	}
	return nil
}

// PublicURL implements ObjectStorage.
func (d *Disk) PublicURL(bucket, path string) string {
	return publicURL(d.baseURL, bucket, path)
}

// Handler serves stored objects read-only. Mount it at PublicPathPrefix.
func (d *Disk) Handler() http.Handler {
	return http.StripPrefix(strings.TrimSuffix(PublicPathPrefix, "/"), http.FileServer(noDirFS{http.Dir(d.root)}))
}

func (d *Disk) file(bucket, path string) string {
	return filepath.Join(d.root, bucket, filepath.FromSlash(path))
}

// noDirFS hides directory listings.
type noDirFS struct{ fs http.FileSystem }

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
