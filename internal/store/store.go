package store

import "context"

// Store is the durable ordered store behind the timeline engine: canonical
// entities/relations (the pre-timeline seed state), markers with their
// operations, and cached snapshots keyed by (world_id, marker_id).
//
// List methods return records in the orders the projection replay depends on:
// markers by (sort_key, created_at, id), operations by (order_index,
// created_at, id) within a marker, and ListOperationsThrough by the combined
// (marker sort_key, marker created_at, marker id, order_index, created_at, id)
// total order.
//
// Get methods return (nil, nil) when the record does not exist; translating
// that into a not-found condition is the caller's job.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	ListEntities(ctx context.Context, worldID string) ([]Entity, error)
	ListRelations(ctx context.Context, worldID string) ([]Relation, error)
	UpsertEntity(ctx context.Context, e *Entity) error
	UpsertRelation(ctx context.Context, r *Relation) error

	InsertMarker(ctx context.Context, m *Marker) error
	GetMarker(ctx context.Context, worldID, markerID string) (*Marker, error)
	ListMarkers(ctx context.Context, worldID string) ([]Marker, error)
	UpdateMarker(ctx context.Context, m *Marker) (bool, error)
	DeleteMarker(ctx context.Context, worldID, markerID string) (bool, error)
	NextSortKey(ctx context.Context, worldID string) (float64, error)
	CountMarkersThrough(ctx context.Context, worldID string, maxSortKey *float64) (int, error)

	InsertOperation(ctx context.Context, o *Operation) error
	GetOperation(ctx context.Context, worldID, markerID, operationID string) (*Operation, error)
	ListOperations(ctx context.Context, worldID, markerID string) ([]Operation, error)
	ListOperationsThrough(ctx context.Context, worldID string, maxSortKey *float64) ([]Operation, error)
	ListOperationTargets(ctx context.Context, worldID string) ([]OperationTarget, error)
	UpdateOperation(ctx context.Context, o *Operation) (bool, error)
	DeleteOperation(ctx context.Context, worldID, markerID, operationID string) (bool, error)

	ListSnapshots(ctx context.Context, worldID string) ([]Snapshot, error)
	GetSnapshot(ctx context.Context, worldID, markerID string) (*Snapshot, error)
	UpsertSnapshot(ctx context.Context, s *Snapshot) error
	DeleteSnapshots(ctx context.Context, worldID string) error
	NearestSnapshotMarker(ctx context.Context, worldID string, maxSortKey *float64) (string, error)
}
