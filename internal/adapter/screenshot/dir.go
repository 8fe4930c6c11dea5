// Package screenshot stores diagnostic page captures on local disk or in S3.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirStore writes screenshots into a local directory, overwriting files
// from earlier runs.
type DirStore struct {
	dir string
}

// NewDirStore creates dir if needed and returns a store rooted there.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Save writes png to dir/name and returns the file path.
func (d *DirStore) Save(_ context.Context, name string, png []byte) (string, error) {
	path := filepath.Join(d.dir, filepath.Base(name))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
