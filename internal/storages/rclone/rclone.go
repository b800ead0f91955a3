package rclone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shyim/docker-pg-backup/internal/storage"
)

func init() {
	storage.Register(&RcloneStorageType{})
}

// RcloneStorageType is the factory for rclone-backed storage
type RcloneStorageType struct{}

// Name returns the storage type identifier
func (t *RcloneStorageType) Name() string {
	return "rclone"
}

// Create instantiates rclone storage from options.
//
// Options:
//   - remote: rclone remote and base path, e.g. "b2:backups" (required)
//   - binary: rclone executable, defaults to "rclone" from PATH
//   - config: rclone config file, defaults to rclone's own lookup
func (t *RcloneStorageType) Create(poolName string, options map[string]string) (storage.Storage, error) {
	remote := options["remote"]
	if remote == "" {
		return nil, fmt.Errorf("rclone storage requires 'remote' option")
	}

	binary := options["binary"]
	if binary == "" {
		binary = "rclone"
	}
	binPath, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("rclone binary %q not found: %w", binary, err)
	}

	configPath := options["config"]
	if strings.HasPrefix(configPath, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			configPath = filepath.Join(home, configPath[2:])
		}
	}

	r := &RcloneStorage{
		remote:   remote,
		poolName: poolName,
	}
	r.run = commandRunner(binPath, configPath)
	return r, nil
}

// runFunc executes one rclone subcommand and returns its stdout
type runFunc func(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error)

// commandError carries the stderr of a failed rclone invocation
type commandError struct {
	command string
	stderr  string
	err     error
}

func (e *commandError) Error() string {
	return fmt.Sprintf("rclone %s failed: %v: %s", e.command, e.err, strings.TrimSpace(e.stderr))
}

func (e *commandError) Unwrap() error { return e.err }

func commandRunner(binary, configPath string) runFunc {
	return func(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
		if configPath != "" {
			args = append([]string{"--config", configPath}, args...)
		}

		cmd := exec.CommandContext(ctx, binary, args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		cmd.Stdin = stdin

		slog.Debug("running rclone", "args", args)
		if err := cmd.Run(); err != nil {
			name := ""
			for _, a := range args {
				if !strings.HasPrefix(a, "-") && a != configPath {
					name = a
					break
				}
			}
			return nil, &commandError{command: name, stderr: stderr.String(), err: err}
		}
		return stdout.Bytes(), nil
	}
}

// RcloneStorage implements Storage on top of the rclone CLI
type RcloneStorage struct {
	remote   string
	poolName string
	run      runFunc
}

// lsjsonItem is one element of `rclone lsjson` output
type lsjsonItem struct {
	Path    string `json:"Path"`
	Name    string `json:"Name"`
	Size    int64  `json:"Size"`
	ModTime string `json:"ModTime"`
	IsDir   bool   `json:"IsDir"`
}

// remotePath joins the remote root and a slash-separated key
func (r *RcloneStorage) remotePath(key string) string {
	key = strings.Trim(key, "/")
	if key == "" {
		return r.remote
	}
	if strings.HasSuffix(r.remote, ":") || strings.HasSuffix(r.remote, "/") {
		return r.remote + key
	}
	return r.remote + "/" + key
}

// Store streams backup data to the remote with `rclone rcat`
func (r *RcloneStorage) Store(ctx context.Context, key string, reader io.Reader) error {
	if _, err := r.run(ctx, reader, "rcat", r.remotePath(key)); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// List returns every file below folder using `rclone lsjson -R --files-only`
func (r *RcloneStorage) List(ctx context.Context, folder string) ([]storage.Entry, error) {
	out, err := r.run(ctx, nil, "lsjson", "-R", "--files-only", r.remotePath(folder))
	if err != nil {
		return nil, err
	}
	return parseListing(out)
}

// parseListing converts lsjson output into entries. Timestamps are
// normalised to UTC; ones rclone reports in an unexpected format are passed
// through untouched so that classification rejects them.
func parseListing(out []byte) ([]storage.Entry, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}

	var items []lsjsonItem
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, fmt.Errorf("failed to parse rclone listing: %w", err)
	}

	entries := make([]storage.Entry, 0, len(items))
	for _, item := range items {
		if item.IsDir {
			continue
		}

		modTime := item.ModTime
		if t, err := time.Parse(time.RFC3339Nano, item.ModTime); err == nil {
			modTime = t.UTC().Format(time.RFC3339Nano)
		}

		entries = append(entries, storage.Entry{
			Name:    item.Name,
			Path:    item.Path,
			Size:    item.Size,
			ModTime: modTime,
		})
	}
	return entries, nil
}

// Delete removes a single file with `rclone deletefile`.
// A file that is already gone is not an error.
func (r *RcloneStorage) Delete(ctx context.Context, key string) error {
	_, err := r.run(ctx, nil, "deletefile", r.remotePath(key))
	if err == nil {
		return nil
	}
	var ce *commandError
	if errors.As(err, &ce) && strings.Contains(strings.ToLower(ce.stderr), "not found") {
		return nil
	}
	return fmt.Errorf("failed to delete %s: %w", key, err)
}

// RemoveEmptyDirs runs `rclone rmdirs --leave-root` on folder
func (r *RcloneStorage) RemoveEmptyDirs(ctx context.Context, folder string) error {
	if _, err := r.run(ctx, nil, "rmdirs", r.remotePath(folder), "--leave-root"); err != nil {
		return fmt.Errorf("failed to remove empty directories: %w", err)
	}
	return nil
}
