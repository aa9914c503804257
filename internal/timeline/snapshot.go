package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"worldline/internal/store"
)

// stateDocument is the snapshot wire shape: the projected state serialized
// with canonical key ordering, hashed for drift detection.
type stateDocument struct {
	WorldID            string           `json:"world_id"`
	MarkerID           string           `json:"marker_id"`
	AppliedMarkerCount int              `json:"applied_marker_count"`
	Entities           []store.Entity   `json:"entities"`
	Relations          []store.Relation `json:"relations"`
}

// SnapshotUpsert carries an externally computed snapshot body for direct
// insertion, bypassing projection.
type SnapshotUpsert struct {
	StateJSON          []byte
	StateHash          string
	AppliedMarkerCount int
	EntityCount        int
	RelationCount      int
}

// GenerateSnapshot projects the world at markerID by full replay and caches
// the result, replacing any previous snapshot for the same marker.
func (s *Service) GenerateSnapshot(ctx context.Context, worldID, markerID string) (*store.Snapshot, error) {
	state, err := s.GetWorldState(ctx, worldID, markerID, false)
	if err != nil {
		return nil, err
	}

	doc := stateDocument{
		WorldID:            state.WorldID,
		MarkerID:           state.MarkerID,
		AppliedMarkerCount: state.AppliedMarkerCount,
		Entities:           state.Entities,
		Relations:          state.Relations,
	}
	raw, err := canonicalJSON(doc)
	if err != nil {
		return nil, err
	}

	now := nowUTC()
	snapshot := &store.Snapshot{
		ID:                 uuid.NewString(),
		WorldID:            worldID,
		MarkerID:           markerID,
		StateJSON:          raw,
		StateHash:          stateHash(raw),
		AppliedMarkerCount: state.AppliedMarkerCount,
		EntityCount:        len(state.Entities),
		RelationCount:      len(state.Relations),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.db.UpsertSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("storing snapshot: %w", err)
	}

	// Re-read so an upsert over an existing row reports the surviving id and
	// created_at rather than the candidate's.
	stored, err := s.db.GetSnapshot(ctx, worldID, markerID)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if stored == nil {
		return nil, fmt.Errorf("snapshot for marker %s: %w", markerID, ErrNotFound)
	}
	return stored, nil
}

// RebuildSnapshots drops every snapshot for the world and regenerates one per
// marker in timeline order. There is no incremental path: any timeline edit
// can shift what every later marker observes, so correctness means rebuilding
// from scratch.
func (s *Service) RebuildSnapshots(ctx context.Context, worldID string) (*RebuildResult, error) {
	started := time.Now()

	markers, err := s.db.ListMarkers(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("listing markers: %w", err)
	}
	if err := s.db.DeleteSnapshots(ctx, worldID); err != nil {
		return nil, fmt.Errorf("clearing snapshots: %w", err)
	}
	for _, m := range markers {
		if _, err := s.GenerateSnapshot(ctx, worldID, m.ID); err != nil {
			return nil, fmt.Errorf("rebuilding snapshot for marker %s: %w", m.ID, err)
		}
	}

	s.collector.RecordRebuild(ctx, worldID, len(markers), time.Since(started).Milliseconds())

	return &RebuildResult{
		Status:        "rebuilt",
		WorldID:       worldID,
		MarkerCount:   len(markers),
		SnapshotCount: len(markers),
		RebuiltAt:     nowUTC(),
	}, nil
}

// ListSnapshots returns every cached snapshot for the world, newest first.
func (s *Service) ListSnapshots(ctx context.Context, worldID string) ([]store.Snapshot, error) {
	return s.db.ListSnapshots(ctx, worldID)
}

// GetSnapshot returns the cached snapshot for a marker.
func (s *Service) GetSnapshot(ctx context.Context, worldID, markerID string) (*store.Snapshot, error) {
	snapshot, err := s.db.GetSnapshot(ctx, worldID, markerID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("snapshot for marker %s: %w", markerID, ErrNotFound)
	}
	return snapshot, nil
}

// UpsertSnapshot stores an externally computed snapshot body for a marker.
// The marker must exist; counts and hash are taken as given.
func (s *Service) UpsertSnapshot(ctx context.Context, worldID, markerID string, in SnapshotUpsert) (*store.Snapshot, error) {
	marker, err := s.db.GetMarker(ctx, worldID, markerID)
	if err != nil {
		return nil, err
	}
	if marker == nil {
		return nil, fmt.Errorf("marker %s in world %s: %w", markerID, worldID, ErrNotFound)
	}

	now := nowUTC()
	snapshot := &store.Snapshot{
		ID:                 uuid.NewString(),
		WorldID:            worldID,
		MarkerID:           markerID,
		StateJSON:          in.StateJSON,
		StateHash:          in.StateHash,
		AppliedMarkerCount: in.AppliedMarkerCount,
		EntityCount:        in.EntityCount,
		RelationCount:      in.RelationCount,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.db.UpsertSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("storing snapshot: %w", err)
	}
	return s.GetSnapshot(ctx, worldID, markerID)
}

// worldStateFromSnapshot decodes a cached snapshot into a WorldState,
// re-deriving the invariants replay would have produced: entity ordering,
// endpoint filtering, and derived relation existence.
func worldStateFromSnapshot(worldID, markerID string, snapshot *store.Snapshot) (*WorldState, error) {
	// applied_marker_count decodes through a pointer so an absent key is
	// distinguishable from a stored zero.
	var doc struct {
		AppliedMarkerCount *int             `json:"applied_marker_count"`
		Entities           []store.Entity   `json:"entities"`
		Relations          []store.Relation `json:"relations"`
	}
	if err := json.Unmarshal(snapshot.StateJSON, &doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", errSnapshotShape)
	}
	if doc.Entities == nil || doc.Relations == nil {
		return nil, errSnapshotShape
	}

	entities := make([]store.Entity, len(doc.Entities))
	copy(entities, doc.Entities)
	entityExists := make(map[string]bool, len(entities))
	for i := range entities {
		if entities[i].Aliases == nil {
			entities[i].Aliases = []string{}
		}
		if entities[i].Tags == nil {
			entities[i].Tags = []string{}
		}
		entityExists[entities[i].ID] = entities[i].ExistsAtMarker
	}
	sortEntities(entities)

	relations := make([]store.Relation, 0, len(doc.Relations))
	for _, r := range doc.Relations {
		srcExists, srcKnown := entityExists[r.SourceEntityID]
		dstExists, dstKnown := entityExists[r.TargetEntityID]
		if !srcKnown || !dstKnown {
			continue
		}
		r.ExistsAtMarker = r.ExistsAtMarker && srcExists && dstExists
		relations = append(relations, r)
	}
	sortRelations(relations)

	applied := snapshot.AppliedMarkerCount
	if doc.AppliedMarkerCount != nil {
		applied = *doc.AppliedMarkerCount
	}

	return &WorldState{
		WorldID:              worldID,
		MarkerID:             markerID,
		AppliedMarkerCount:   applied,
		Entities:             entities,
		Relations:            relations,
		FromSnapshotMarkerID: markerID,
		Note:                 noteFromSnapshot,
	}, nil
}
