// Package blob is the content-addressed media collaborator. Names carry a
// category prefix (avatar/users, image, record, file, video) so the on-disk
// layout mirrors the serving URLs.
package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("blob: not found")

type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// FS stores blobs under a root directory. Names are slash-separated and
// must stay inside the root.
type FS struct {
	root string
}

func NewFS(root string) *FS { return &FS{root: root} }

func (f *FS) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", errors.New("blob: invalid name")
	}
	return filepath.Join(f.root, clean), nil
}

func (f *FS) Put(_ context.Context, name string, data []byte) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (f *FS) Get(_ context.Context, name string) ([]byte, error) {
	p, err := f.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (f *FS) Exists(_ context.Context, name string) (bool, error) {
	p, err := f.path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
