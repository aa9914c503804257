package metrics

import "context"

// Collector receives timeline engine measurements. Implementations must be
// safe for concurrent use; every call is fire-and-forget.
type Collector interface {
	// RecordProjection records a completed world-state read. Source is
	// "snapshot" or "replay".
	RecordProjection(ctx context.Context, worldID, source string, durationMs int64)

	// RecordSnapshotMiss records a snapshot read that fell back to replay.
	// Reason is "absent" or "decode".
	RecordSnapshotMiss(ctx context.Context, worldID, reason string)

	// RecordRebuild records a full snapshot rebuild.
	RecordRebuild(ctx context.Context, worldID string, snapshotCount int, durationMs int64)
}
