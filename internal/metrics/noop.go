package metrics

import "context"

// NoopCollector discards every measurement. Used when metrics exposure is not
// configured.
type NoopCollector struct{}

func NewNoopCollector() *NoopCollector { return &NoopCollector{} }

func (NoopCollector) RecordProjection(ctx context.Context, worldID, source string, durationMs int64) {
}

func (NoopCollector) RecordSnapshotMiss(ctx context.Context, worldID, reason string) {}

func (NoopCollector) RecordRebuild(ctx context.Context, worldID string, snapshotCount int, durationMs int64) {
}
