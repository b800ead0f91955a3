package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shyim/docker-pg-backup/internal/config"
	"github.com/shyim/docker-pg-backup/internal/docker"
	"github.com/shyim/docker-pg-backup/internal/metrics"
	"github.com/shyim/docker-pg-backup/internal/notification"
	"github.com/shyim/docker-pg-backup/internal/rotation"
	"github.com/shyim/docker-pg-backup/internal/storage"
)

// ErrNoContainers is returned when no database container could be found
var ErrNoContainers = errors.New("no database containers found")

// Containers finds the database containers to back up
type Containers interface {
	ListContainers(ctx context.Context, ancestorImage string) ([]docker.ContainerInfo, error)
	GetContainer(ctx context.Context, containerID string) (*docker.ContainerInfo, error)
}

// Dumper writes the archive of a single database
type Dumper interface {
	Dump(ctx context.Context, container, db string, w io.Writer) (int64, error)
}

// Archive describes one stored database dump
type Archive struct {
	Database string
	Key      string
	Size     int64
	Duration time.Duration
	Err      error
}

// Result describes one container of a pass
type Result struct {
	Container string
	Archives  []Archive
	Rotation  *rotation.Outcome
	Err       error
}

// Runner performs backup and rotation passes over every database container
type Runner struct {
	cfg        *config.Config
	containers Containers
	dumper     Dumper
	store      storage.Storage
	notifyMgr  *notification.Manager
	metrics    *metrics.Collector
	now        func() time.Time

	// one pass at a time
	mu sync.Mutex
}

// NewRunner creates a runner. notifyMgr and collector may be nil.
func NewRunner(
	cfg *config.Config,
	containers Containers,
	dumper Dumper,
	store storage.Storage,
	notifyMgr *notification.Manager,
	collector *metrics.Collector,
) *Runner {
	return &Runner{
		cfg:        cfg,
		containers: containers,
		dumper:     dumper,
		store:      store,
		notifyMgr:  notifyMgr,
		metrics:    collector,
		now:        time.Now,
	}
}

// Run dumps every database of every container and rotates the results.
// Failures of single databases or containers are logged and the pass
// continues; the joined errors are returned.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	return r.pass(ctx, !r.cfg.Diagnostic)
}

// Rotate runs only the rotation part of a pass
func (r *Runner) Rotate(ctx context.Context) ([]Result, error) {
	return r.pass(ctx, false)
}

func (r *Runner) pass(ctx context.Context, dump bool) ([]Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets, err := r.resolveContainers(ctx)
	if err != nil {
		return nil, err
	}

	mode := rotation.ModeFrom(r.cfg.DryRun, r.cfg.Diagnostic)
	slog.Info("starting pass",
		"containers", len(targets),
		"dump", dump,
		"mode", mode.String(),
	)

	results := make([]Result, 0, len(targets))
	var errs []error
	for _, target := range targets {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		res := r.runContainer(ctx, target, dump, mode)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("container %s: %w", res.Container, res.Err))
		} else if r.metrics != nil {
			r.metrics.RecordSuccess(res.Container, r.now())
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

// resolveContainers returns the configured containers, or every running
// container created from the database image
func (r *Runner) resolveContainers(ctx context.Context) ([]docker.ContainerInfo, error) {
	if len(r.cfg.Containers) > 0 {
		result := make([]docker.ContainerInfo, 0, len(r.cfg.Containers))
		for _, name := range r.cfg.Containers {
			info, err := r.containers.GetContainer(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("failed to inspect container %s: %w", name, err)
			}
			result = append(result, *info)
		}
		return result, nil
	}

	found, err := r.containers.ListContainers(ctx, r.cfg.DBImageName)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w for image %s", ErrNoContainers, r.cfg.DBImageName)
	}
	return found, nil
}

func (r *Runner) runContainer(ctx context.Context, target docker.ContainerInfo, dump bool, mode rotation.Mode) Result {
	res := Result{Container: target.Name}

	cc, err := r.cfg.ParseLabels(target.Name, target.Labels)
	if err != nil {
		slog.Error("failed to parse container labels", "container", target.Name, "error", err)
		res.Err = err
		return res
	}
	if !cc.Enabled {
		slog.Info("backups disabled by label, skipping", "container", target.Name)
		return res
	}

	var errs []error
	if dump {
		if !target.Running {
			slog.Warn("container not running, skipping dumps", "container", target.Name)
		} else {
			for _, db := range cc.DBNames {
				archive := r.backupDatabase(ctx, target, db)
				if archive.Err != nil {
					errs = append(errs, fmt.Errorf("database %s: %w", db, archive.Err))
				}
				res.Archives = append(res.Archives, archive)
			}
		}
	}

	out, err := r.rotateContainer(ctx, target.Name, cc.DBNames, mode)
	res.Rotation = out
	if err != nil {
		errs = append(errs, err)
	}

	res.Err = errors.Join(errs...)
	return res
}

// backupDatabase streams the dump of db straight into the store
func (r *Runner) backupDatabase(ctx context.Context, target docker.ContainerInfo, db string) Archive {
	start := r.now()
	key := r.cfg.ArchiveKey(target.Name, db, start)
	archive := Archive{Database: db, Key: key}

	slog.Info("starting backup", "container", target.Name, "database", db, "key", key)

	pr, pw := io.Pipe()
	dumpDone := make(chan int64, 1)
	go func() {
		size, err := r.dumper.Dump(ctx, target.ID, db, pw)
		pw.CloseWithError(err)
		dumpDone <- size
	}()

	storeErr := r.store.Store(ctx, key, pr)
	if storeErr != nil {
		// unblock the dump if the store gave up early
		pr.CloseWithError(storeErr)
	}
	archive.Size = <-dumpDone
	archive.Duration = r.now().Sub(start)

	if storeErr != nil {
		archive.Err = fmt.Errorf("failed to store %s: %w", key, storeErr)
		if r.metrics != nil {
			r.metrics.RecordBackup(target.Name, db, 0, archive.Duration, archive.Err)
		}
		slog.ErrorContext(notification.MarkHandled(ctx), "backup failed",
			"container", target.Name,
			"database", db,
			"key", key,
			"error", archive.Err,
		)
		r.notify(ctx, notification.Event{
			Type:          notification.EventBackupFailed,
			ContainerName: target.Name,
			Database:      db,
			BackupKey:     key,
			Error:         archive.Err,
			Timestamp:     r.now(),
		})
		return archive
	}

	if r.metrics != nil {
		r.metrics.RecordBackup(target.Name, db, archive.Size, archive.Duration, nil)
	}
	slog.Info("backup completed",
		"container", target.Name,
		"database", db,
		"key", key,
		"size", archive.Size,
		"duration", archive.Duration,
	)
	r.notify(ctx, notification.Event{
		Type:          notification.EventBackupCompleted,
		ContainerName: target.Name,
		Database:      db,
		BackupKey:     key,
		Size:          archive.Size,
		Duration:      archive.Duration,
		Timestamp:     r.now(),
	})

	return archive
}

func (r *Runner) rotateContainer(ctx context.Context, container string, names []string, mode rotation.Mode) (*rotation.Outcome, error) {
	folder := r.cfg.RotationFolder(container)
	rotator := rotation.New(r.store, r.cfg.Rotation)

	// Rotation errors are reported once, as a rotation_failed event below
	out, err := rotator.Run(notification.MarkHandled(ctx), folder, names, mode)
	if r.metrics != nil {
		r.metrics.RecordRotation(container, out)
	}

	switch {
	case out.Status == rotation.StatusDisabled:
		return out, nil
	case err != nil:
		slog.Warn("rotation failed", "container", container, "folder", folder, "error", err)
		r.notify(ctx, notification.Event{
			Type:          notification.EventRotationFailed,
			ContainerName: container,
			Deleted:       out.Deleted,
			Kept:          out.Kept(),
			Error:         err,
			Timestamp:     r.now(),
		})
		return out, fmt.Errorf("rotation of %s: %w", folder, err)
	case out.DeleteFailures > 0:
		err = fmt.Errorf("rotation of %s: %d files could not be deleted", folder, out.DeleteFailures)
		r.notify(ctx, notification.Event{
			Type:          notification.EventRotationFailed,
			ContainerName: container,
			Deleted:       out.Deleted,
			Kept:          out.Kept(),
			Error:         err,
			Timestamp:     r.now(),
		})
		return out, err
	}

	if mode == rotation.ModeNormal && out.Deleted > 0 {
		r.notify(ctx, notification.Event{
			Type:          notification.EventRotationCompleted,
			ContainerName: container,
			Deleted:       out.Deleted,
			Kept:          out.Kept(),
			Timestamp:     r.now(),
		})
	}

	return out, nil
}

// notify sends an event to every configured provider. A detached context
// lets notifications complete even if the pass was cancelled.
func (r *Runner) notify(ctx context.Context, event notification.Event) {
	if r.notifyMgr == nil || r.notifyMgr.NotifierCount() == 0 {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	r.notifyMgr.NotifyAll(notifyCtx, event)
}
