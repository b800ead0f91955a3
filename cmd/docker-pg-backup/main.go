package main

import (
	"os"

	"github.com/shyim/docker-pg-backup/internal/config"
	"github.com/spf13/cobra"

	// Import notifiers for self-registration
	_ "github.com/shyim/docker-pg-backup/internal/notifiers"

	// Import storage backends for self-registration
	_ "github.com/shyim/docker-pg-backup/internal/storages"
)

var (
	cfg        = config.New()
	configFile string
	envFile    string

	rootCmd = &cobra.Command{
		Use:   "docker-pg-backup",
		Short: "PostgreSQL backups for Docker containers",
		Long: `Dump every database of PostgreSQL containers into a storage pool and rotate the
archives with a staggered retention: one per hour for the last day, one per day
for the last month, one per month for the last year and one per year beyond.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()

	// Config sources
	flags.StringVarP(&configFile, "config", "c", "", "YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "File with environment variables to load")

	// Logging
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")

	// Docker
	flags.StringVar(&cfg.DockerHost, "docker-host", cfg.DockerHost, "Docker daemon socket")
	flags.StringVar(&cfg.DBImageName, "db-image", cfg.DBImageName, "Image the database containers are created from")
	flags.StringSliceVar(&cfg.Containers, "containers", nil, "Containers to back up instead of discovering them by image (comma-separated)")

	// Database
	flags.StringSliceVar(&cfg.DBNames, "db-names", cfg.DBNames, "Databases to dump in every container (comma-separated)")
	flags.StringVar(&cfg.DBUser, "db-user", cfg.DBUser, "User pg_dump connects as")
	flags.StringVar(&cfg.DBPass, "db-pass", "", "Password pg_dump connects with")
	flags.StringVar(&cfg.DBHost, "db-host", "", "Host pg_dump connects to inside the container")

	// Archives
	flags.StringVar(&cfg.BackupLocation, "backup-location", cfg.BackupLocation, "Folder holding the archives of a container ({container} is replaced)")
	flags.StringVar(&cfg.FileTemplate, "file-template", cfg.FileTemplate, "Archive name below the backup location (strftime, {container}, {db_name})")
	flags.StringVar(&cfg.Compression, "compression", cfg.Compression, "Archive compression (none, zstd)")

	// Rotation
	flags.BoolVar(&cfg.Rotation, "rotation", cfg.Rotation, "Delete archives that fall out of the staggered retention")
	flags.BoolVar(&cfg.DryRun, "dry-run", false, "Only report what rotation would delete")
	flags.BoolVar(&cfg.Diagnostic, "diagnostic", false, "Log every retention decision, skip dumps and deletions")

	// Storage and notifications
	flags.StringArrayVar(&cfg.StorageArgs, "storage", nil, "Storage pool configuration (format: pool.option=value)")
	flags.StringVar(&cfg.DefaultStorage, "default-storage", "", "Storage pool archives are written to")
	flags.StringArrayVar(&cfg.NotifyArgs, "notify", nil, "Notification provider configuration (format: provider.option=value)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rotateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(daemonCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
