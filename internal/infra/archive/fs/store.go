// Package fs provides the filesystem archive driver. Snapshots live as plain
// files under the root (the data directory's backups/ folder); metadata is
// derived from the file itself, the backup catalog being the richer metadata
// store.
package fs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"tripcore/internal/archive"
)

// Store archives snapshots under a root directory.
type Store struct {
	root string
}

// New returns a filesystem archive rooted at path, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("archive root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Driver() string { return "fs" }

// sanitizeKey forbids traversal out of the root and absolute keys.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q contains '..'", key)
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key traversal %q", key)
	}
	return clean, nil
}

func (s *Store) pathFor(key string) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader) (archive.Info, error) {
	if err := ctx.Err(); err != nil {
		return archive.Info{}, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return archive.Info{}, err
	}
	if _, err := os.Stat(path); err == nil {
		return archive.Info{}, archive.ErrKeyExists
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return archive.Info{}, err
	}
	// Buffer through the hash so the write to disk is one atomic replace.
	h := sha256.New()
	var buf bytes.Buffer
	size, err := io.Copy(io.MultiWriter(&buf, h), r)
	if err != nil {
		return archive.Info{}, err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return archive.Info{}, fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return s.infoFromFile(path, key, size, hex.EncodeToString(h.Sum(nil)))
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, archive.Info, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return nil, archive.Info{}, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return nil, archive.Info{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, archive.Info{}, err
	}
	return file, info, nil
}

func (s *Store) Head(ctx context.Context, key string) (archive.Info, error) {
	if err := ctx.Err(); err != nil {
		return archive.Info{}, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return archive.Info{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return archive.Info{}, archive.ErrNotFound
	}
	if err != nil {
		return archive.Info{}, err
	}
	sum := sha256.Sum256(data)
	return s.infoFromFile(path, key, int64(len(data)), hex.EncodeToString(sum[:]))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) List(ctx context.Context, prefix string) ([]archive.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var infos []archive.Info
	err := filepath.WalkDir(s.root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.Head(ctx, key)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *Store) infoFromFile(path, key string, size int64, checksum string) (archive.Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return archive.Info{}, err
	}
	return archive.Info{
		Key:         key,
		Size:        size,
		Checksum:    checksum,
		ContentType: "application/json",
		CreatedAt:   st.ModTime().UTC(),
	}, nil
}
