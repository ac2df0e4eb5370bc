package blobsink

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	perr "tubesense/internal/platform/errors"
)

// FileSink keeps one file per key under a root directory
type FileSink struct {
	root string
}

// OpenFile returns a FileSink rooted at dir, creating it when missing
func OpenFile(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, perr.WithField(perr.InvalidArgf("file sink needs a directory"), "url")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "create blob dir %s", dir)
	}
	return &FileSink{root: dir}, nil
}

// Put writes through a temp file and renames so readers never see partial bodies
func (s *FileSink) Put(ctx context.Context, key string, body []byte, _ string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob put %s", key)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob put %s", key)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob put %s", key)
	}
	if err := tmp.Close(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob put %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob put %s", key)
	}
	return nil
}

// Get implements Sink
func (s *FileSink) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidKey(key); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, perr.NotFoundf("blob %s not found", key)
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob get %s", key)
	}
	return b, nil
}

// List implements Sink
func (s *FileSink) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob list %q", prefix)
	}
	slices.Sort(keys)
	return keys, nil
}

// Close is a no-op
func (s *FileSink) Close() error { return nil }
