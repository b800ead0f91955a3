package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/shyim/docker-pg-backup/internal/storage"
)

var (
	// ErrListingFailed is returned when the storage listing could not be fetched
	ErrListingFailed = errors.New("failed to list files to rotate")
	// ErrEmptyListing is returned when the storage listing has no files
	ErrEmptyListing = errors.New("no files to rotate")
)

// Store is the part of a storage backend the rotator needs
type Store interface {
	List(ctx context.Context, folder string) ([]storage.Entry, error)
	Delete(ctx context.Context, key string) error
	RemoveEmptyDirs(ctx context.Context, folder string) error
}

// Mode selects what a rotation cycle does with its delete list
type Mode int

const (
	ModeNormal Mode = iota
	ModeDryRun
	ModeDiagnostic
)

// ModeFrom maps the dry-run and diagnostic switches to a mode.
// Diagnostic takes precedence.
func ModeFrom(dryRun, diagnostic bool) Mode {
	switch {
	case diagnostic:
		return ModeDiagnostic
	case dryRun:
		return ModeDryRun
	default:
		return ModeNormal
	}
}

func (m Mode) String() string {
	switch m {
	case ModeDryRun:
		return "dry-run"
	case ModeDiagnostic:
		return "diagnostic"
	default:
		return "normal"
	}
}

// Status describes how far a rotation cycle got
type Status string

const (
	StatusDisabled  Status = "disabled"
	StatusAborted   Status = "aborted"
	StatusCompleted Status = "completed"
)

// Outcome describes a single rotation cycle
type Outcome struct {
	Mode           Mode
	Status         Status
	Folder         string
	Names          []string
	States         map[string]*State // per backup-set name
	ToDelete       []Record          // combined over all names, not de-duplicated
	Deleted        int
	DeleteFailures int
	Failed         []string // names whose classification failed
}

// TierCounts returns how many records each tier holds, summed over all names
func (o *Outcome) TierCounts() map[Tier]int {
	counts := map[Tier]int{
		TierHourly:  0,
		TierDaily:   0,
		TierMonthly: 0,
		TierYearly:  0,
		TierDelete:  len(o.ToDelete),
	}
	for _, state := range o.States {
		for tier, bucket := range state.Tiers() {
			counts[tier] += len(bucket)
		}
	}
	return counts
}

// Kept returns the number of retained records summed over all names
func (o *Outcome) Kept() int {
	kept := 0
	for _, state := range o.States {
		kept += state.Kept()
	}
	return kept
}

// Rotator runs staggered rotation cycles against a store
type Rotator struct {
	store   Store
	enabled bool
	now     func() time.Time // UTC, like listed modification times
}

// New creates a rotator. A disabled rotator turns every cycle into a no-op.
func New(store Store, enabled bool) *Rotator {
	return &Rotator{
		store:   store,
		enabled: enabled,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run lists folder once, classifies the listing for every name and then,
// depending on mode, deletes or reports the files that fell out of retention.
func (r *Rotator) Run(ctx context.Context, folder string, names []string, mode Mode) (*Outcome, error) {
	out := &Outcome{
		Mode:   mode,
		Folder: folder,
		Names:  names,
		States: make(map[string]*State, len(names)),
	}

	if !r.enabled {
		slog.Debug("staggered rotation disabled", "folder", folder)
		out.Status = StatusDisabled
		return out, nil
	}

	slog.Info("starting staggered rotation", "folder", folder, "mode", mode.String())

	entries, err := r.store.List(ctx, folder)
	if err != nil {
		slog.Warn("failed to get list of files to rotate", "folder", folder, "error", err)
		out.Status = StatusAborted
		return out, fmt.Errorf("%w: %w", ErrListingFailed, err)
	}
	if len(entries) == 0 {
		slog.Warn("no files to rotate", "folder", folder)
		out.Status = StatusAborted
		return out, ErrEmptyListing
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, Record{Name: e.Name, Path: e.Path, ModTime: e.ModTime})
	}

	now := r.now()
	var errs []error
	for _, name := range names {
		state, err := Classify(records, name, now)
		if err != nil {
			slog.ErrorContext(ctx, "rotation classification failed",
				"folder", folder,
				"name", name,
				"error", err,
			)
			out.Failed = append(out.Failed, name)
			errs = append(errs, fmt.Errorf("rotate %q: %w", name, err))
			continue
		}
		out.States[name] = state
		out.ToDelete = append(out.ToDelete, state.ToDelete...)
	}

	switch mode {
	case ModeDiagnostic:
		logDiagnostic(ctx, out)
	case ModeDryRun:
		slog.Debug("rotation dry run", "folder", folder, "to_delete", paths(out.ToDelete))
		slog.Info("dry run, would have deleted files", "folder", folder, "count", len(out.ToDelete))
	default:
		r.deleteAll(ctx, out)
	}

	out.Status = StatusCompleted
	return out, errors.Join(errs...)
}

func (r *Rotator) deleteAll(ctx context.Context, out *Outcome) {
	for _, rec := range out.ToDelete {
		key := path.Join(out.Folder, rec.Path)
		slog.Debug("deleting backup", "key", key)

		if err := r.store.Delete(ctx, key); err != nil {
			slog.ErrorContext(ctx, "failed to delete backup", "key", key, "error", err)
			out.DeleteFailures++
			continue
		}
		out.Deleted++
	}

	if out.Deleted == 0 {
		return
	}

	slog.Info("deleted files, removing empty directories", "folder", out.Folder, "count", out.Deleted)
	if err := r.store.RemoveEmptyDirs(ctx, out.Folder); err != nil {
		slog.Warn("failed to remove empty directories", "folder", out.Folder, "error", err)
	}
}

func logDiagnostic(ctx context.Context, out *Outcome) {
	slog.WarnContext(ctx, "rotation diagnostic", "folder", out.Folder, "report", out.Report())
}

func paths(records []Record) []string {
	result := make([]string, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.Path)
	}
	return result
}
