package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shyim/docker-pg-backup/internal/storage"
)

func init() {
	storage.Register(&LocalStorageType{})
}

// LocalStorageType is the factory for local storage
type LocalStorageType struct{}

// Name returns the storage type identifier
func (t *LocalStorageType) Name() string {
	return "local"
}

// Create instantiates a new local storage from options
func (t *LocalStorageType) Create(poolName string, options map[string]string) (storage.Storage, error) {
	path, ok := options["path"]
	if !ok || path == "" {
		return nil, fmt.Errorf("local storage requires 'path' option")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: path,
		poolName: poolName,
	}, nil
}

// LocalStorage implements Storage for a local filesystem directory
type LocalStorage struct {
	basePath string
	poolName string
}

// resolve maps a slash-separated key below the pool root to a filesystem path
func (l *LocalStorage) resolve(key string) (string, error) {
	full := filepath.Join(l.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.basePath, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return full, nil
}

// Store saves backup data to the local filesystem
func (l *LocalStorage) Store(ctx context.Context, key string, reader io.Reader) error {
	fullPath, err := l.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// List returns every file below folder in lexical order.
// A folder that does not exist yet has no files.
func (l *LocalStorage) List(ctx context.Context, folder string) ([]storage.Entry, error) {
	root, err := l.resolve(folder)
	if err != nil {
		return nil, err
	}

	var entries []storage.Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		entries = append(entries, storage.Entry{
			Name:    d.Name(),
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC().Format(time.RFC3339Nano),
		})
		return nil
	})

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return entries, nil
}

// Delete removes a backup file
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := l.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// RemoveEmptyDirs removes every empty directory below folder, deepest first.
// folder itself is kept.
func (l *LocalStorage) RemoveEmptyDirs(ctx context.Context, folder string) error {
	root, err := l.resolve(folder)
	if err != nil {
		return err
	}

	var dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to scan directories: %w", err)
	}

	// WalkDir visits parents before children
	for i := len(dirs) - 1; i >= 0; i-- {
		children, err := os.ReadDir(dirs[i])
		if err != nil || len(children) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err != nil {
			return fmt.Errorf("failed to remove directory: %w", err)
		}
	}

	return nil
}
