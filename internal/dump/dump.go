// Package dump streams pg_dump output from inside a database container
// into tar archives.
package dump

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/shyim/docker-pg-backup/internal/docker"
)

// ErrDumpFailed is returned when pg_dump exits with a non-zero code
var ErrDumpFailed = errors.New("pg_dump failed")

// Execer runs commands inside a container
type Execer interface {
	Exec(ctx context.Context, containerID string, cmd, env []string, stdin io.Reader) (*docker.ExecResult, error)
	ExecWithOutput(ctx context.Context, containerID string, cmd, env []string, w io.Writer) (*docker.ExecResult, error)
}

// Options control how pg_dump connects to the database
type Options struct {
	User     string
	Password string
	Host     string
	// Compress wraps the tar stream in zstd
	Compress bool
}

// Dumper produces one archive per database
type Dumper struct {
	exec Execer
	opts Options
}

// New creates a Dumper
func New(exec Execer, opts Options) *Dumper {
	return &Dumper{exec: exec, opts: opts}
}

// Command returns the pg_dump invocation for db. The custom format is
// compressed and restorable with pg_restore.
func (d *Dumper) Command(db string) []string {
	cmd := []string{"pg_dump", "-F", "c"}
	if d.opts.User != "" {
		cmd = append(cmd, "-U", d.opts.User)
	}
	if d.opts.Host != "" {
		cmd = append(cmd, "-h", d.opts.Host)
	}
	return append(cmd, "-d", db)
}

func (d *Dumper) env() []string {
	if d.opts.Password == "" {
		return nil
	}
	return []string{"PGPASSWORD=" + d.opts.Password}
}

// Version returns the pg_dump version reported inside the container
func (d *Dumper) Version(ctx context.Context, container string) (string, error) {
	result, err := d.exec.Exec(ctx, container, []string{"pg_dump", "--version"}, nil, nil)
	if err != nil {
		return "", fmt.Errorf("failed to execute pg_dump: %w", err)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("%w with exit code %d: %s", ErrDumpFailed, result.ExitCode, strings.TrimSpace(result.Output))
	}
	return strings.TrimSpace(result.Output), nil
}

// Dump writes a tar archive holding the dump of db, in a single entry named
// after the database, to w. It returns the number of bytes written to w.
func (d *Dumper) Dump(ctx context.Context, container, db string, w io.Writer) (int64, error) {
	// Spool to a temp file so the tar header can carry the size
	tmpFile, err := os.CreateTemp("", "pgdump-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	result, err := d.exec.ExecWithOutput(ctx, container, d.Command(db), d.env(), tmpFile)
	if err != nil {
		return 0, fmt.Errorf("failed to execute pg_dump: %w", err)
	}
	if result.ExitCode != 0 {
		return 0, fmt.Errorf("%w with exit code %d: %s", ErrDumpFailed, result.ExitCode, strings.TrimSpace(result.Output))
	}

	fileInfo, err := tmpFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat temp file: %w", err)
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek temp file: %w", err)
	}

	counter := &countingWriter{w: w}
	err = writeArchive(counter, db, fileInfo.Size(), tmpFile, d.opts.Compress)
	return counter.n, err
}

func writeArchive(w io.Writer, name string, size int64, r io.Reader, compress bool) error {
	var zstdWriter *zstd.Encoder
	if compress {
		var err error
		zstdWriter, err = zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		w = zstdWriter
	}

	tarWriter := tar.NewWriter(w)

	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    size,
		ModTime: time.Now(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := io.Copy(tarWriter, r); err != nil {
		return fmt.Errorf("failed to write to tar: %w", err)
	}
	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar: %w", err)
	}

	if zstdWriter != nil {
		if err := zstdWriter.Close(); err != nil {
			return fmt.Errorf("failed to finish zstd stream: %w", err)
		}
	}

	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
