package timeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"worldline/internal/store"
)

const (
	noteReplayed     = "Baseline entities/relations come from canonical tables, then timeline operations are replayed in marker order."
	noteFromSnapshot = "Loaded from cached timeline snapshot."
)

// GetWorldState projects the world as of markerID. An empty markerID means
// the present: every marker's operations are replayed. When useSnapshot is
// set (and snapshots are enabled), a cached snapshot for the exact marker is
// served instead of replaying; a missing or undecodable snapshot silently
// falls back to full replay.
func (s *Service) GetWorldState(ctx context.Context, worldID, markerID string, useSnapshot bool) (*WorldState, error) {
	started := time.Now()

	var maxSortKey *float64
	if markerID != "" {
		marker, err := s.db.GetMarker(ctx, worldID, markerID)
		if err != nil {
			return nil, fmt.Errorf("loading marker: %w", err)
		}
		if marker == nil {
			return nil, fmt.Errorf("marker %s: %w", markerID, ErrNotFound)
		}
		maxSortKey = &marker.SortKey
	}

	if markerID != "" && useSnapshot && s.useSnapshots {
		snapshot, err := s.db.GetSnapshot(ctx, worldID, markerID)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot: %w", err)
		}
		if snapshot == nil {
			s.collector.RecordSnapshotMiss(ctx, worldID, "absent")
		} else {
			state, err := worldStateFromSnapshot(worldID, markerID, snapshot)
			if err == nil {
				s.collector.RecordProjection(ctx, worldID, "snapshot", time.Since(started).Milliseconds())
				return state, nil
			}
			// The cache is advisory: a malformed entry degrades to replay
			// rather than failing the read.
			s.collector.RecordSnapshotMiss(ctx, worldID, "decode")
		}
	}

	baseEntities, err := s.db.ListEntities(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("loading entities: %w", err)
	}
	baseRelations, err := s.db.ListRelations(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("loading relations: %w", err)
	}
	operations, err := s.db.ListOperationsThrough(ctx, worldID, maxSortKey)
	if err != nil {
		return nil, fmt.Errorf("loading operations: %w", err)
	}

	proj := newProjection(worldID, baseEntities, baseRelations)

	if maxSortKey != nil {
		// Canonical rows seeded the base state even for objects whose
		// creating marker lies past the target; hide those before replay.
		targets, err := s.db.ListOperationTargets(ctx, worldID)
		if err != nil {
			return nil, fmt.Errorf("loading operation targets: %w", err)
		}
		proj.hideFutureCreations(targets, *maxSortKey)
	}

	for _, op := range operations {
		proj.apply(op)
	}

	entities, relations := proj.assemble()

	appliedCount, err := s.db.CountMarkersThrough(ctx, worldID, maxSortKey)
	if err != nil {
		return nil, fmt.Errorf("counting markers: %w", err)
	}
	fromSnapshot, err := s.db.NearestSnapshotMarker(ctx, worldID, maxSortKey)
	if err != nil {
		return nil, fmt.Errorf("finding nearest snapshot: %w", err)
	}

	s.collector.RecordProjection(ctx, worldID, "replay", time.Since(started).Milliseconds())

	return &WorldState{
		WorldID:              worldID,
		MarkerID:             markerID,
		AppliedMarkerCount:   appliedCount,
		Entities:             entities,
		Relations:            relations,
		FromSnapshotMarkerID: fromSnapshot,
		Note:                 noteReplayed,
	}, nil
}

// assemble freezes the replay state into output slices: entities sorted by
// case-insensitive name, relations restricted to known endpoints and sorted
// by creation time. Relation existence is derived: the relation's own flag
// AND both endpoints'.
func (p *projection) assemble() ([]store.Entity, []store.Relation) {
	entities := make([]store.Entity, 0, len(p.entities))
	for id, e := range p.entities {
		out := *e
		out.ExistsAtMarker = p.entityExists[id]
		if out.Aliases == nil {
			out.Aliases = []string{}
		}
		if out.Tags == nil {
			out.Tags = []string{}
		}
		entities = append(entities, out)
	}
	sortEntities(entities)

	relations := make([]store.Relation, 0, len(p.relations))
	for id, r := range p.relations {
		if _, ok := p.entities[r.SourceEntityID]; !ok {
			continue
		}
		if _, ok := p.entities[r.TargetEntityID]; !ok {
			continue
		}
		out := *r
		out.ExistsAtMarker = p.relationExists[id] &&
			p.entityExists[r.SourceEntityID] &&
			p.entityExists[r.TargetEntityID]
		relations = append(relations, out)
	}
	sortRelations(relations)

	return entities, relations
}

func sortEntities(entities []store.Entity) {
	sort.Slice(entities, func(i, j int) bool {
		ni, nj := strings.ToLower(entities[i].Name), strings.ToLower(entities[j].Name)
		if ni != nj {
			return ni < nj
		}
		return entities[i].ID < entities[j].ID
	})
}

func sortRelations(relations []store.Relation) {
	sort.Slice(relations, func(i, j int) bool {
		if relations[i].CreatedAt != relations[j].CreatedAt {
			return relations[i].CreatedAt < relations[j].CreatedAt
		}
		return relations[i].ID < relations[j].ID
	})
}
