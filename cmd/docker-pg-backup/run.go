package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/shyim/docker-pg-backup/internal/backup"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up and rotate once",
	Long:  "Dump every database of every PostgreSQL container into the default storage pool, then rotate the archives.",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := a.runner.Run(ctx)
	printSummary(cmd.OutOrStdout(), results)
	return err
}

func printSummary(out io.Writer, results []backup.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CONTAINER\tDATABASE\tKEY\tSIZE\tSTATUS")
	_, _ = fmt.Fprintln(w, "---------\t--------\t---\t----\t------")

	for _, res := range results {
		for _, archive := range res.Archives {
			status := "ok"
			if archive.Err != nil {
				status = "failed"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				res.Container,
				archive.Database,
				archive.Key,
				humanize.IBytes(uint64(archive.Size)),
				status,
			)
		}
	}
	_ = w.Flush()

	for _, res := range results {
		if res.Rotation == nil {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s: rotation %s (%s), kept %d, deleted %d",
			res.Container,
			res.Rotation.Status,
			res.Rotation.Mode,
			res.Rotation.Kept(),
			res.Rotation.Deleted,
		)
		if res.Rotation.DeleteFailures > 0 {
			_, _ = fmt.Fprintf(out, ", %d failed", res.Rotation.DeleteFailures)
		}
	}
	_, _ = fmt.Fprintln(out)
}
