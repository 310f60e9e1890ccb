package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/astronomyk/CrowdSky/internal/stacking/biz"

	"github.com/google/uuid"
)

// LocalFrameStore implements biz.FrameStore on a local directory tree,
// one subdirectory per session keyed by its token.
type LocalFrameStore struct {
	baseDir string
}

// NewLocalFrameStore creates the staging root if needed
func NewLocalFrameStore(baseDir string) (*LocalFrameStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging root: %w", err)
	}
	return &LocalFrameStore{baseDir: baseDir}, nil
}

func (s *LocalFrameStore) AllocateRoot(ctx context.Context, token string) (string, error) {
	root := filepath.Join(s.baseDir, token)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	return root, nil
}

// Save streams a frame into the session root under a generated name;
// the caller keeps the original filename in its own records.
func (s *LocalFrameStore) Save(ctx context.Context, root, name string, r io.Reader) (string, int64, error) {
	stored := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(name)))
	path := filepath.Join(root, stored)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

func (s *LocalFrameStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Remove unlinks a frame. A file already gone is not an error; sweeps
// and completion both tolerate partial prior cleanup.
func (s *LocalFrameStore) Remove(ctx context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalFrameStore) RemoveRootIfEmpty(ctx context.Context, root string) error {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(root)
}

var _ biz.FrameStore = (*LocalFrameStore)(nil)
