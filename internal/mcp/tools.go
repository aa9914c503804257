package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"worldline/internal/store"
	"worldline/internal/timeline"
)

type ListMarkersInput struct {
	WorldID           string `json:"world_id" jsonschema:"world identifier"`
	IncludeOperations bool   `json:"include_operations,omitempty" jsonschema:"attach each marker's operations"`
}

type GetMarkerInput struct {
	WorldID  string `json:"world_id" jsonschema:"world identifier"`
	MarkerID string `json:"marker_id" jsonschema:"marker identifier"`
}

type CreateMarkerInput struct {
	WorldID         string           `json:"world_id" jsonschema:"world identifier"`
	Title           string           `json:"title" jsonschema:"marker title"`
	Summary         string           `json:"summary,omitempty" jsonschema:"what happens at this point"`
	MarkerKind      string           `json:"marker_kind,omitempty" jsonschema:"explicit or semantic"`
	PlacementStatus string           `json:"placement_status,omitempty" jsonschema:"placed or unplaced"`
	DateLabel       string           `json:"date_label,omitempty" jsonschema:"human-readable in-fiction date"`
	DateSortValue   *float64         `json:"date_sort_value,omitempty" jsonschema:"numeric in-fiction date for ordering"`
	SortKey         *float64         `json:"sort_key,omitempty" jsonschema:"explicit timeline position"`
	Operations      []OperationInput `json:"operations,omitempty" jsonschema:"operations applied at this marker"`
}

type OperationInput struct {
	OpType     string         `json:"op_type" jsonschema:"operation verb, e.g. entity_create"`
	TargetKind string         `json:"target_kind" jsonschema:"entity, relation, or world"`
	TargetID   string         `json:"target_id,omitempty" jsonschema:"id of the affected record"`
	Payload    map[string]any `json:"payload,omitempty" jsonschema:"fields to apply"`
	OrderIndex *int           `json:"order_index,omitempty" jsonschema:"replay position within the marker"`
}

type GetWorldStateInput struct {
	WorldID     string `json:"world_id" jsonschema:"world identifier"`
	MarkerID    string `json:"marker_id,omitempty" jsonschema:"project as of this marker; empty means present"`
	NoSnapshot  bool   `json:"no_snapshot,omitempty" jsonschema:"force full replay instead of the snapshot cache"`
}

type ListSnapshotsInput struct {
	WorldID string `json:"world_id" jsonschema:"world identifier"`
}

type RebuildSnapshotsInput struct {
	WorldID string `json:"world_id" jsonschema:"world identifier"`
}

type MarkerOutput struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Summary         string            `json:"summary,omitempty"`
	MarkerKind      string            `json:"marker_kind"`
	PlacementStatus string            `json:"placement_status"`
	DateLabel       string            `json:"date_label,omitempty"`
	DateSortValue   *float64          `json:"date_sort_value,omitempty"`
	SortKey         float64           `json:"sort_key"`
	Source          string            `json:"source"`
	CreatedAt       string            `json:"created_at"`
	Operations      []OperationOutput `json:"operations,omitempty"`
}

type OperationOutput struct {
	ID         string         `json:"id"`
	OpType     string         `json:"op_type"`
	TargetKind string         `json:"target_kind"`
	TargetID   string         `json:"target_id,omitempty"`
	Payload    map[string]any `json:"payload"`
	OrderIndex int            `json:"order_index"`
}

type SnapshotOutput struct {
	MarkerID           string `json:"marker_id"`
	StateHash          string `json:"state_hash"`
	AppliedMarkerCount int    `json:"applied_marker_count"`
	EntityCount        int    `json:"entity_count"`
	RelationCount      int    `json:"relation_count"`
	UpdatedAt          string `json:"updated_at"`
}

type ListMarkersOutput struct {
	Markers []MarkerOutput `json:"markers"`
}

type ListSnapshotsOutput struct {
	Snapshots []SnapshotOutput `json:"snapshots"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_markers",
		Description: "List a world's timeline markers in chronological order",
	}, s.handleListMarkers)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_marker",
		Description: "Retrieve a marker with its operations",
	}, s.handleGetMarker)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_marker",
		Description: "Create a timeline marker, optionally with inline operations",
	}, s.handleCreateMarker)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_world_state",
		Description: "Project the world's entities and relations as of a marker",
	}, s.handleGetWorldState)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_snapshots",
		Description: "List cached snapshots for a world",
	}, s.handleListSnapshots)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "rebuild_snapshots",
		Description: "Drop and regenerate every snapshot for a world",
	}, s.handleRebuildSnapshots)
}

func (s *Server) handleListMarkers(ctx context.Context, req *sdk.CallToolRequest, input ListMarkersInput) (*sdk.CallToolResult, ListMarkersOutput, error) {
	if input.WorldID == "" {
		return nil, ListMarkersOutput{}, fmt.Errorf("world_id is required")
	}
	markers, err := s.service.ListMarkers(ctx, input.WorldID, input.IncludeOperations)
	if err != nil {
		return nil, ListMarkersOutput{}, err
	}

	output := make([]MarkerOutput, 0, len(markers))
	for i := range markers {
		output = append(output, markerOutputFromStore(&markers[i]))
	}
	return nil, ListMarkersOutput{Markers: output}, nil
}

func (s *Server) handleGetMarker(ctx context.Context, req *sdk.CallToolRequest, input GetMarkerInput) (*sdk.CallToolResult, MarkerOutput, error) {
	if input.WorldID == "" || input.MarkerID == "" {
		return nil, MarkerOutput{}, fmt.Errorf("world_id and marker_id are required")
	}
	marker, err := s.service.GetMarker(ctx, input.WorldID, input.MarkerID, true)
	if err != nil {
		return nil, MarkerOutput{}, err
	}
	return nil, markerOutputFromStore(marker), nil
}

func (s *Server) handleCreateMarker(ctx context.Context, req *sdk.CallToolRequest, input CreateMarkerInput) (*sdk.CallToolResult, MarkerOutput, error) {
	if input.WorldID == "" {
		return nil, MarkerOutput{}, fmt.Errorf("world_id is required")
	}
	if input.Title == "" {
		return nil, MarkerOutput{}, fmt.Errorf("title is required")
	}

	operations := make([]timeline.OperationCreate, 0, len(input.Operations))
	for _, op := range input.Operations {
		operations = append(operations, timeline.OperationCreate{
			OpType:     op.OpType,
			TargetKind: op.TargetKind,
			TargetID:   op.TargetID,
			Payload:    op.Payload,
			OrderIndex: op.OrderIndex,
		})
	}

	marker, err := s.service.CreateMarker(ctx, input.WorldID, timeline.MarkerCreate{
		Title:           input.Title,
		Summary:         input.Summary,
		MarkerKind:      input.MarkerKind,
		PlacementStatus: input.PlacementStatus,
		DateLabel:       input.DateLabel,
		DateSortValue:   input.DateSortValue,
		SortKey:         input.SortKey,
		Operations:      operations,
	}, true)
	if err != nil {
		return nil, MarkerOutput{}, err
	}
	return nil, markerOutputFromStore(marker), nil
}

func (s *Server) handleGetWorldState(ctx context.Context, req *sdk.CallToolRequest, input GetWorldStateInput) (*sdk.CallToolResult, timeline.WorldState, error) {
	if input.WorldID == "" {
		return nil, timeline.WorldState{}, fmt.Errorf("world_id is required")
	}
	state, err := s.service.GetWorldState(ctx, input.WorldID, input.MarkerID, !input.NoSnapshot)
	if err != nil {
		return nil, timeline.WorldState{}, err
	}
	return nil, *state, nil
}

func (s *Server) handleListSnapshots(ctx context.Context, req *sdk.CallToolRequest, input ListSnapshotsInput) (*sdk.CallToolResult, ListSnapshotsOutput, error) {
	if input.WorldID == "" {
		return nil, ListSnapshotsOutput{}, fmt.Errorf("world_id is required")
	}
	snapshots, err := s.service.ListSnapshots(ctx, input.WorldID)
	if err != nil {
		return nil, ListSnapshotsOutput{}, err
	}

	output := make([]SnapshotOutput, 0, len(snapshots))
	for _, snapshot := range snapshots {
		output = append(output, SnapshotOutput{
			MarkerID:           snapshot.MarkerID,
			StateHash:          snapshot.StateHash,
			AppliedMarkerCount: snapshot.AppliedMarkerCount,
			EntityCount:        snapshot.EntityCount,
			RelationCount:      snapshot.RelationCount,
			UpdatedAt:          snapshot.UpdatedAt,
		})
	}
	return nil, ListSnapshotsOutput{Snapshots: output}, nil
}

func (s *Server) handleRebuildSnapshots(ctx context.Context, req *sdk.CallToolRequest, input RebuildSnapshotsInput) (*sdk.CallToolResult, timeline.RebuildResult, error) {
	if input.WorldID == "" {
		return nil, timeline.RebuildResult{}, fmt.Errorf("world_id is required")
	}
	result, err := s.service.RebuildSnapshots(ctx, input.WorldID)
	if err != nil {
		return nil, timeline.RebuildResult{}, err
	}
	return nil, *result, nil
}

func markerOutputFromStore(marker *store.Marker) MarkerOutput {
	if marker == nil {
		return MarkerOutput{}
	}
	out := MarkerOutput{
		ID:              marker.ID,
		Title:           marker.Title,
		Summary:         marker.Summary,
		MarkerKind:      marker.MarkerKind,
		PlacementStatus: marker.PlacementStatus,
		DateLabel:       marker.DateLabel,
		DateSortValue:   marker.DateSortValue,
		SortKey:         marker.SortKey,
		Source:          marker.Source,
		CreatedAt:       marker.CreatedAt,
	}
	for _, op := range marker.Operations {
		out.Operations = append(out.Operations, OperationOutput{
			ID:         op.ID,
			OpType:     op.OpType,
			TargetKind: op.TargetKind,
			TargetID:   op.TargetID,
			Payload:    op.Payload,
			OrderIndex: op.OrderIndex,
		})
	}
	return out
}
