package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"docchat/types"
)

// BlobStore is a get/put file store addressed by key.
type BlobStore interface {
	// PutFile copies a local file to key and returns its stored location.
	PutFile(ctx context.Context, localPath, key string) (string, error)
	// Fetch copies the blob at key into dir and returns the local path, named after the key.
	Fetch(ctx context.Context, key, dir string) (string, error)
	Location(key string) string
}

// FileBlobStore stores blobs under root/prefix on the local filesystem.
type FileBlobStore struct {
	root   string
	prefix string
}

func NewFileBlobStore(root, prefix string) (*FileBlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: blob root is required", types.ErrConfiguration)
	}
	b := &FileBlobStore{root: root, prefix: prefix}
	if err := os.MkdirAll(filepath.Dir(b.Location("x")), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return b, nil
}

// CleanKey reduces a file name or path to the base name used as blob key.
func CleanKey(name string) (string, error) {
	key := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if key == "." || key == "/" || key == ".." || strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: invalid file name %q", types.ErrNotFound, name)
	}
	return key, nil
}

// Location is the deterministic path of key: root/prefix+key.
func (b *FileBlobStore) Location(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(b.prefix+key))
}

func (b *FileBlobStore) PutFile(ctx context.Context, localPath, key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	in, err := os.Open(localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", types.ErrNotFound, localPath)
	}
	if err != nil {
		return "", err
	}
	defer in.Close()

	dst := b.Location(key)
	if err := copyAtomic(ctx, in, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (b *FileBlobStore) Fetch(ctx context.Context, key, dir string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	in, err := os.Open(b.Location(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: document %s", types.ErrNotFound, key)
	}
	if err != nil {
		return "", err
	}
	defer in.Close()

	dst := filepath.Join(dir, key)
	if err := copyAtomic(ctx, in, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// copyAtomic writes through a temp file in the destination directory and renames it into place.
func copyAtomic(ctx context.Context, in io.Reader, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("error create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("error copy file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
