package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shyim/docker-pg-backup/internal/scheduler"
	"github.com/spf13/cobra"
)

const backupJob = "backup"

var runOnStart bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the backup daemon",
	Long:  "Run backup and rotation passes on a cron schedule and serve Prometheus metrics.",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "Cron schedule of backup passes")
	daemonCmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on address (e.g., :9187)")
	daemonCmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Run a pass immediately after starting")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if err := scheduler.Validate(cfg.Schedule); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		slog.Error("failed to start daemon", "error", err)
		return err
	}
	defer a.Close()

	slog.Info("starting docker-pg-backup daemon",
		"docker_host", cfg.DockerHost,
		"schedule", cfg.Schedule,
		"storage", cfg.DefaultStorage,
		"notifiers", notifyMgr.Names(),
	)

	sched := scheduler.New()
	pass := func(ctx context.Context) {
		if _, err := a.runner.Run(ctx); err != nil {
			slog.Warn("backup pass finished with errors", "error", err)
		}
	}
	if err := sched.AddJob(backupJob, cfg.Schedule, pass); err != nil {
		return err
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
		slog.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	sched.Start()
	if info, ok := sched.ListJobs()[backupJob]; ok {
		slog.Info("next backup pass", "at", info.NextRun)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runOnStart {
		if err := sched.RunNow(backupJob); err != nil {
			slog.Error("failed to start initial backup pass", "error", err)
		}
	}

	<-ctx.Done()
	slog.Info("received shutdown signal")

	// Graceful shutdown, waiting for a running pass
	<-sched.Stop().Done()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "error", err)
		}
	}

	slog.Info("daemon stopped")
	return nil
}
