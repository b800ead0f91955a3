// Package metrics exposes backup and rotation metrics in the Prometheus
// exposition format.
//
// Metrics:
//   - docker_pg_backup_backups_total: dumps by container and result
//   - docker_pg_backup_backup_duration_seconds: dump and upload duration
//   - docker_pg_backup_archive_size_bytes: size of the last stored archive
//   - docker_pg_backup_rotation_deleted_total: files removed by rotation
//   - docker_pg_backup_rotation_delete_failures_total: failed deletions
//   - docker_pg_backup_rotation_files: files per tier after the last cycle
//   - docker_pg_backup_last_success_timestamp_seconds: last successful pass
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shyim/docker-pg-backup/internal/rotation"
)

const namespace = "docker_pg_backup"

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector records backup and rotation metrics
type Collector struct {
	registry *prometheus.Registry

	backupsTotal    *prometheus.CounterVec
	backupDuration  *prometheus.HistogramVec
	archiveSize     *prometheus.GaugeVec
	rotationDeleted *prometheus.CounterVec
	rotationFailed  *prometheus.CounterVec
	rotationFiles   *prometheus.GaugeVec
	lastSuccess     *prometheus.GaugeVec
}

// New creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		backupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backups_total",
				Help:      "Total number of database dumps by result",
			},
			[]string{"container", "database", "result"},
		),

		backupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backup_duration_seconds",
				Help:      "Duration of dumping and storing one database",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
			},
			[]string{"container", "database"},
		),

		archiveSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "archive_size_bytes",
				Help:      "Size of the most recently stored archive",
			},
			[]string{"container", "database"},
		),

		rotationDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rotation_deleted_total",
				Help:      "Total number of files deleted by rotation",
			},
			[]string{"container"},
		),

		rotationFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rotation_delete_failures_total",
				Help:      "Total number of rotation deletions that failed",
			},
			[]string{"container"},
		),

		rotationFiles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rotation_files",
				Help:      "Files per retention tier after the last rotation cycle",
			},
			[]string{"container", "tier"},
		),

		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last pass that finished without errors",
			},
			[]string{"container"},
		),
	}

	registry.MustRegister(
		c.backupsTotal,
		c.backupDuration,
		c.archiveSize,
		c.rotationDeleted,
		c.rotationFailed,
		c.rotationFiles,
		c.lastSuccess,
	)

	return c
}

// RecordBackup records one dump of database
func (c *Collector) RecordBackup(container, database string, size int64, duration time.Duration, err error) {
	if err != nil {
		c.backupsTotal.WithLabelValues(container, database, ResultFailure).Inc()
		return
	}

	c.backupsTotal.WithLabelValues(container, database, ResultSuccess).Inc()
	c.backupDuration.WithLabelValues(container, database).Observe(duration.Seconds())
	c.archiveSize.WithLabelValues(container, database).Set(float64(size))
}

// RecordRotation records the result of a completed rotation cycle
func (c *Collector) RecordRotation(container string, out *rotation.Outcome) {
	if out == nil || out.Status != rotation.StatusCompleted {
		return
	}

	c.rotationDeleted.WithLabelValues(container).Add(float64(out.Deleted))
	c.rotationFailed.WithLabelValues(container).Add(float64(out.DeleteFailures))

	for tier, n := range out.TierCounts() {
		if tier == rotation.TierDelete && out.Mode == rotation.ModeNormal {
			n = out.DeleteFailures
		}
		c.rotationFiles.WithLabelValues(container, string(tier)).Set(float64(n))
	}
}

// RecordSuccess marks a pass over container as successful at t
func (c *Collector) RecordSuccess(container string, t time.Time) {
	c.lastSuccess.WithLabelValues(container).Set(float64(t.Unix()))
}

// Registry returns the registry the collector registered with
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
