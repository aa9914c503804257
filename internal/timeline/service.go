package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"worldline/internal/metrics"
	"worldline/internal/store"
)

// Service owns marker/operation lifecycle, world-state projection, and the
// snapshot cache. Every mutating call rebuilds the world's snapshots unless
// the caller opts out for batch scenarios.
//
// Concurrent writers for the same world are not serialized here; rebuilds are
// idempotent upserts, so racing writers waste work without corrupting state.
type Service struct {
	db           store.Store
	collector    metrics.Collector
	useSnapshots bool
}

func NewService(db store.Store, collector metrics.Collector, useSnapshots bool) *Service {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Service{db: db, collector: collector, useSnapshots: useSnapshots}
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Service) ListMarkers(ctx context.Context, worldID string, includeOperations bool) ([]store.Marker, error) {
	markers, err := s.db.ListMarkers(ctx, worldID)
	if err != nil {
		return nil, err
	}
	if !includeOperations || len(markers) == 0 {
		return markers, nil
	}

	operations, err := s.db.ListOperationsThrough(ctx, worldID, nil)
	if err != nil {
		return nil, err
	}
	byMarker := make(map[string][]store.Operation, len(markers))
	for _, op := range operations {
		byMarker[op.MarkerID] = append(byMarker[op.MarkerID], op)
	}
	for i := range markers {
		ops := byMarker[markers[i].ID]
		if ops == nil {
			ops = []store.Operation{}
		}
		markers[i].Operations = ops
	}
	return markers, nil
}

func (s *Service) GetMarker(ctx context.Context, worldID, markerID string, includeOperations bool) (*store.Marker, error) {
	marker, err := s.db.GetMarker(ctx, worldID, markerID)
	if err != nil {
		return nil, err
	}
	if marker == nil {
		return nil, fmt.Errorf("marker %s in world %s: %w", markerID, worldID, ErrNotFound)
	}
	if includeOperations {
		operations, err := s.db.ListOperations(ctx, worldID, markerID)
		if err != nil {
			return nil, err
		}
		marker.Operations = operations
	}
	return marker, nil
}

func (s *Service) CreateMarker(ctx context.Context, worldID string, in MarkerCreate, rebuild bool) (*store.Marker, error) {
	kind := in.MarkerKind
	if kind == "" {
		kind = MarkerExplicit
	}
	kind, err := normalizeMarkerKind(kind)
	if err != nil {
		return nil, err
	}

	status := in.PlacementStatus
	if status == "" {
		status = PlacementPlaced
	}
	status, err = normalizePlacementStatus(status)
	if err != nil {
		return nil, err
	}

	source := in.Source
	if source == "" {
		source = "user"
	}
	source, err = normalizeSource(source)
	if err != nil {
		return nil, err
	}

	// Validate every inline operation before anything is written, so a bad
	// enum cannot leave a partial marker behind.
	type pendingOp struct {
		opType     string
		targetKind string
		input      OperationCreate
	}
	pending := make([]pendingOp, 0, len(in.Operations))
	for _, opIn := range in.Operations {
		opType, err := normalizeOpType(opIn.OpType)
		if err != nil {
			return nil, err
		}
		targetKind, err := normalizeTargetKind(opIn.TargetKind)
		if err != nil {
			return nil, err
		}
		pending = append(pending, pendingOp{opType: opType, targetKind: targetKind, input: opIn})
	}

	// Semantic markers default to end-of-timeline placement until manually
	// positioned.
	if kind == MarkerSemantic && in.SortKey == nil {
		status = PlacementUnplaced
	}

	var sortKey float64
	switch {
	case in.SortKey != nil:
		sortKey = *in.SortKey
	case kind == MarkerExplicit && in.DateSortValue != nil:
		sortKey = *in.DateSortValue
	default:
		sortKey, err = s.db.NextSortKey(ctx, worldID)
		if err != nil {
			return nil, err
		}
	}

	now := nowUTC()
	marker := &store.Marker{
		ID:              uuid.NewString(),
		WorldID:         worldID,
		Title:           in.Title,
		Summary:         in.Summary,
		MarkerKind:      kind,
		PlacementStatus: status,
		DateLabel:       in.DateLabel,
		DateSortValue:   in.DateSortValue,
		SortKey:         sortKey,
		Source:          source,
		SourceNoteID:    in.SourceNoteID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.InsertMarker(ctx, marker); err != nil {
		return nil, err
	}

	for i, p := range pending {
		orderIndex := i
		if p.input.OrderIndex != nil {
			orderIndex = *p.input.OrderIndex
		}
		payload := p.input.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		op := &store.Operation{
			ID:         uuid.NewString(),
			WorldID:    worldID,
			MarkerID:   marker.ID,
			OpType:     p.opType,
			TargetKind: p.targetKind,
			TargetID:   p.input.TargetID,
			Payload:    payload,
			OrderIndex: orderIndex,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.db.InsertOperation(ctx, op); err != nil {
			return nil, err
		}
	}

	created, err := s.GetMarker(ctx, worldID, marker.ID, true)
	if err != nil {
		return nil, err
	}
	if rebuild {
		if _, err := s.RebuildSnapshots(ctx, worldID); err != nil {
			return nil, err
		}
	}
	return created, nil
}

func (s *Service) UpdateMarker(ctx context.Context, worldID, markerID string, in MarkerUpdate, rebuild bool) (*store.Marker, error) {
	existing, err := s.db.GetMarker(ctx, worldID, markerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("marker %s in world %s: %w", markerID, worldID, ErrNotFound)
	}

	changed := false
	if in.Title != nil {
		existing.Title = *in.Title
		changed = true
	}
	if in.Summary != nil {
		existing.Summary = *in.Summary
		changed = true
	}
	if in.MarkerKind != nil {
		kind, err := normalizeMarkerKind(*in.MarkerKind)
		if err != nil {
			return nil, err
		}
		existing.MarkerKind = kind
		changed = true
	}
	if in.PlacementStatus != nil {
		status, err := normalizePlacementStatus(*in.PlacementStatus)
		if err != nil {
			return nil, err
		}
		existing.PlacementStatus = status
		changed = true
	}
	if in.DateLabel != nil {
		existing.DateLabel = *in.DateLabel
		changed = true
	}
	if in.DateSortValue != nil {
		existing.DateSortValue = in.DateSortValue
		changed = true
	}
	if in.SortKey != nil {
		existing.SortKey = *in.SortKey
		changed = true
	}
	if in.SourceNoteID != nil {
		existing.SourceNoteID = *in.SourceNoteID
		changed = true
	}

	if !changed {
		return s.GetMarker(ctx, worldID, markerID, true)
	}

	existing.UpdatedAt = nowUTC()
	if _, err := s.db.UpdateMarker(ctx, existing); err != nil {
		return nil, err
	}

	updated, err := s.GetMarker(ctx, worldID, markerID, true)
	if err != nil {
		return nil, err
	}
	if rebuild {
		if _, err := s.RebuildSnapshots(ctx, worldID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// RepositionMarker moves a marker to an arbitrary point in the total order.
func (s *Service) RepositionMarker(ctx context.Context, worldID, markerID string, sortKey float64, placementStatus string, rebuild bool) (*store.Marker, error) {
	if placementStatus == "" {
		placementStatus = PlacementPlaced
	}
	status, err := normalizePlacementStatus(placementStatus)
	if err != nil {
		return nil, err
	}

	existing, err := s.db.GetMarker(ctx, worldID, markerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("marker %s in world %s: %w", markerID, worldID, ErrNotFound)
	}

	existing.SortKey = sortKey
	existing.PlacementStatus = status
	existing.UpdatedAt = nowUTC()
	if _, err := s.db.UpdateMarker(ctx, existing); err != nil {
		return nil, err
	}

	moved, err := s.GetMarker(ctx, worldID, markerID, true)
	if err != nil {
		return nil, err
	}
	if rebuild {
		if _, err := s.RebuildSnapshots(ctx, worldID); err != nil {
			return nil, err
		}
	}
	return moved, nil
}

// DeleteMarker removes a marker and, through the schema's cascade, all of its
// operations.
func (s *Service) DeleteMarker(ctx context.Context, worldID, markerID string, rebuild bool) error {
	deleted, err := s.db.DeleteMarker(ctx, worldID, markerID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("marker %s in world %s: %w", markerID, worldID, ErrNotFound)
	}
	if rebuild {
		if _, err := s.RebuildSnapshots(ctx, worldID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ListOperations(ctx context.Context, worldID, markerID string) ([]store.Operation, error) {
	return s.db.ListOperations(ctx, worldID, markerID)
}

func (s *Service) CreateOperation(ctx context.Context, worldID, markerID string, in OperationCreate, rebuild bool) (*store.Operation, error) {
	marker, err := s.db.GetMarker(ctx, worldID, markerID)
	if err != nil {
		return nil, err
	}
	if marker == nil {
		return nil, fmt.Errorf("marker %s in world %s: %w", markerID, worldID, ErrNotFound)
	}

	opType, err := normalizeOpType(in.OpType)
	if err != nil {
		return nil, err
	}
	targetKind, err := normalizeTargetKind(in.TargetKind)
	if err != nil {
		return nil, err
	}

	orderIndex := 0
	if in.OrderIndex != nil {
		orderIndex = *in.OrderIndex
	}
	payload := in.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	now := nowUTC()
	op := &store.Operation{
		ID:         uuid.NewString(),
		WorldID:    worldID,
		MarkerID:   markerID,
		OpType:     opType,
		TargetKind: targetKind,
		TargetID:   in.TargetID,
		Payload:    payload,
		OrderIndex: orderIndex,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.InsertOperation(ctx, op); err != nil {
		return nil, err
	}

	created, err := s.db.GetOperation(ctx, worldID, markerID, op.ID)
	if err != nil {
		return nil, err
	}
	if rebuild {
		if _, err := s.RebuildSnapshots(ctx, worldID); err != nil {
			return nil, err
		}
	}
	return created, nil
}

func (s *Service) UpdateOperation(ctx context.Context, worldID, markerID, operationID string, in OperationUpdate, rebuild bool) (*store.Operation, error) {
	existing, err := s.db.GetOperation(ctx, worldID, markerID, operationID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("operation %s in marker %s: %w", operationID, markerID, ErrNotFound)
	}

	changed := false
	if in.OpType != nil {
		opType, err := normalizeOpType(*in.OpType)
		if err != nil {
			return nil, err
		}
		existing.OpType = opType
		changed = true
	}
	if in.TargetKind != nil {
		targetKind, err := normalizeTargetKind(*in.TargetKind)
		if err != nil {
			return nil, err
		}
		existing.TargetKind = targetKind
		changed = true
	}
	if in.TargetID != nil {
		existing.TargetID = *in.TargetID
		changed = true
	}
	if in.Payload != nil {
		existing.Payload = in.Payload
		changed = true
	}
	if in.OrderIndex != nil {
		existing.OrderIndex = *in.OrderIndex
		changed = true
	}

	if !changed {
		return existing, nil
	}

	existing.UpdatedAt = nowUTC()
	if _, err := s.db.UpdateOperation(ctx, existing); err != nil {
		return nil, err
	}

	updated, err := s.db.GetOperation(ctx, worldID, markerID, operationID)
	if err != nil {
		return nil, err
	}
	if rebuild {
		if _, err := s.RebuildSnapshots(ctx, worldID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (s *Service) DeleteOperation(ctx context.Context, worldID, markerID, operationID string, rebuild bool) error {
	deleted, err := s.db.DeleteOperation(ctx, worldID, markerID, operationID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("operation %s in marker %s: %w", operationID, markerID, ErrNotFound)
	}
	if rebuild {
		if _, err := s.RebuildSnapshots(ctx, worldID); err != nil {
			return err
		}
	}
	return nil
}
