package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector provides Prometheus metrics for timeline projections and
// snapshot maintenance.
type MetricsCollector struct {
	projectionsTotal   *prometheus.CounterVec
	projectionDuration *prometheus.HistogramVec
	snapshotMissTotal  *prometheus.CounterVec
	rebuildsTotal      *prometheus.CounterVec
	rebuildDuration    *prometheus.HistogramVec
	snapshotCount      *prometheus.GaugeVec
	registry           *prometheus.Registry
}

// NewCollector creates a Prometheus metrics collector with its own registry.
func NewCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	projectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldline_projections_total",
			Help: "Total number of world-state projections by source",
		},
		[]string{"world", "source"},
	)

	projectionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worldline_projection_duration_seconds",
			Help:    "Duration of world-state projections by source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"world", "source"},
	)

	snapshotMissTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldline_snapshot_miss_total",
			Help: "Total number of snapshot reads that fell back to replay",
		},
		[]string{"world", "reason"},
	)

	rebuildsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldline_rebuilds_total",
			Help: "Total number of full snapshot rebuilds",
		},
		[]string{"world"},
	)

	rebuildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worldline_rebuild_duration_seconds",
			Help:    "Duration of full snapshot rebuilds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"world"},
	)

	snapshotCount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worldline_snapshot_count",
			Help: "Snapshots produced by the most recent rebuild",
		},
		[]string{"world"},
	)

	registry.MustRegister(projectionsTotal)
	registry.MustRegister(projectionDuration)
	registry.MustRegister(snapshotMissTotal)
	registry.MustRegister(rebuildsTotal)
	registry.MustRegister(rebuildDuration)
	registry.MustRegister(snapshotCount)

	return &MetricsCollector{
		projectionsTotal:   projectionsTotal,
		projectionDuration: projectionDuration,
		snapshotMissTotal:  snapshotMissTotal,
		rebuildsTotal:      rebuildsTotal,
		rebuildDuration:    rebuildDuration,
		snapshotCount:      snapshotCount,
		registry:           registry,
	}
}

// RecordProjection records a completed world-state read.
func (m *MetricsCollector) RecordProjection(ctx context.Context, worldID, source string, durationMs int64) {
	m.projectionsTotal.WithLabelValues(worldID, source).Inc()
	m.projectionDuration.WithLabelValues(worldID, source).Observe(float64(durationMs) / 1000.0)
}

// RecordSnapshotMiss records a snapshot read that fell back to replay.
func (m *MetricsCollector) RecordSnapshotMiss(ctx context.Context, worldID, reason string) {
	m.snapshotMissTotal.WithLabelValues(worldID, reason).Inc()
}

// RecordRebuild records a full snapshot rebuild.
func (m *MetricsCollector) RecordRebuild(ctx context.Context, worldID string, snapshotCount int, durationMs int64) {
	m.rebuildsTotal.WithLabelValues(worldID).Inc()
	m.rebuildDuration.WithLabelValues(worldID).Observe(float64(durationMs) / 1000.0)
	m.snapshotCount.WithLabelValues(worldID).Set(float64(snapshotCount))
}

// Registry returns the Prometheus registry for HTTP exposure.
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}
