package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shyim/docker-pg-backup/internal/rotation"
	"github.com/shyim/docker-pg-backup/internal/storage"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list <container-name>",
	Aliases: []string{"ls"},
	Short:   "List the archives of a container",
	Long:    "List every archive in the backup location of a container together with the retention tier rotation would place it in.",
	Args:    cobra.ExactArgs(1),
	RunE:    runList,
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := defaultStore()
	if err != nil {
		return err
	}

	folder := cfg.RotationFolder(args[0])
	entries, err := store.List(cmd.Context(), folder)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", folder, err)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No archives found in %s\n", folder)
		return nil
	}

	states, err := classifyEntries(entries, cfg.DBNames, time.Now().UTC())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PATH\tSIZE\tMODIFIED\tTIER")
	_, _ = fmt.Fprintln(w, "----\t----\t--------\t----")

	var total uint64
	for _, e := range entries {
		modified := e.ModTime
		if t, err := rotation.ParseModTime(e.ModTime); err == nil {
			modified = t.Format("2006-01-02 15:04:05")
		}
		total += uint64(e.Size)

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Path, humanize.IBytes(uint64(e.Size)), modified, tierOf(states, e.Path))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d archive(s), %s\n", len(entries), humanize.IBytes(total))

	return nil
}

func classifyEntries(entries []storage.Entry, names []string, now time.Time) ([]*rotation.State, error) {
	records := make([]rotation.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, rotation.Record{Name: e.Name, Path: e.Path, ModTime: e.ModTime})
	}

	states := make([]*rotation.State, 0, len(names))
	for _, name := range names {
		state, err := rotation.Classify(records, name, now)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", name, err)
		}
		states = append(states, state)
	}
	return states, nil
}

// tierOf reports the tier of path. A file kept by any backup set is kept;
// files no backup set matches are shown as "-".
func tierOf(states []*rotation.State, path string) string {
	result := "-"
	for _, state := range states {
		tier, ok := state.TierOf(path)
		if !ok {
			continue
		}
		if tier != rotation.TierDelete {
			return string(tier)
		}
		result = string(tier)
	}
	return result
}
