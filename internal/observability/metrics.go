// Package observability provides run metrics and per-file statistics for the
// build, compaction and archive stages.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gaiacat"

// Metrics holds the Prometheus collectors of one run.
type Metrics struct {
	registry *prometheus.Registry

	// Build metrics
	FilesTotal   *prometheus.CounterVec // status: done/failed/skipped
	RowsTotal    *prometheus.CounterVec // outcome: emitted/skipped_no_mag
	Crossmatches *prometheus.CounterVec // catalog: hip/tyc
	ShardsTotal  prometheus.Counter
	FileDuration prometheus.Histogram

	// Compaction metrics
	PartitionsTotal *prometheus.CounterVec // status: compacted/failed
	ShardsDeleted   prometheus.Counter
	CompactedRows   prometheus.Counter

	// Archive metrics
	BundlesTotal *prometheus.CounterVec // status: written/published/skipped/failed
	BundleBytes  prometheus.Counter

	// Run-wide
	StageDuration *prometheus.GaugeVec // stage: build/compact/archive
}

// NewMetrics registers the collectors on a fresh private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		registry: reg,
		FilesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_files_total",
				Help:      "Source files processed by the build",
			},
			[]string{"status"},
		),
		RowsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Source rows by enrichment outcome",
			},
			[]string{"outcome"},
		),
		Crossmatches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crossmatches_total",
				Help:      "Stars matched to an external catalog",
			},
			[]string{"catalog"},
		),
		ShardsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shards_written_total",
				Help:      "Partition shard files written by the build",
			},
		),
		FileDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_file_duration_seconds",
				Help:      "Time spent processing one source file",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		PartitionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partitions_total",
				Help:      "Partitions handled by compaction",
			},
			[]string{"status"},
		),
		ShardsDeleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shards_deleted_total",
				Help:      "Shard files removed after successful compaction",
			},
		),
		CompactedRows: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compacted_rows_total",
				Help:      "Rows written to compacted partition files",
			},
		),
		BundlesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_bundles_total",
				Help:      "Archive bundles by status",
			},
			[]string{"status"},
		),
		BundleBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archive_bytes_total",
				Help:      "Bytes written to archive bundles",
			},
		),
		StageDuration: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of the last run of each stage",
			},
			[]string{"stage"},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// for pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("observability: failed to write metrics: %w", err)
	}
	return nil
}
