package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Rotate existing archives without dumping",
	Long: `Apply the staggered retention to the archives of every PostgreSQL container.
Use --dry-run to only report what would be deleted, or --diagnostic to log
every retention decision.`,
	Args: cobra.NoArgs,
	RunE: runRotate,
}

func runRotate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := a.runner.Rotate(ctx)
	for _, res := range results {
		if res.Rotation == nil {
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n\n", res.Container, res.Rotation.Report())
	}
	return err
}
