package timeline

import "worldline/internal/store"

// MarkerCreate describes a new marker, optionally with inline operations.
// Zero values fall back to defaults: explicit kind, placed status, user
// source. SortKey nil means the service computes one.
type MarkerCreate struct {
	Title           string
	Summary         string
	MarkerKind      string
	PlacementStatus string
	DateLabel       string
	DateSortValue   *float64
	SortKey         *float64
	Source          string
	SourceNoteID    string
	Operations      []OperationCreate
}

// OperationCreate describes a new operation. OrderIndex nil defaults to the
// operation's position within the marker.
type OperationCreate struct {
	OpType     string
	TargetKind string
	TargetID   string
	Payload    map[string]any
	OrderIndex *int
}

// MarkerUpdate carries partial marker changes; nil fields are left untouched.
type MarkerUpdate struct {
	Title           *string
	Summary         *string
	MarkerKind      *string
	PlacementStatus *string
	DateLabel       *string
	DateSortValue   *float64
	SortKey         *float64
	SourceNoteID    *string
}

// OperationUpdate carries partial operation changes; nil fields are left
// untouched.
type OperationUpdate struct {
	OpType     *string
	TargetKind *string
	TargetID   *string
	Payload    map[string]any
	OrderIndex *int
}

// WorldState is the projected graph at a timeline point. MarkerID empty means
// "present": every marker's operations were replayed.
type WorldState struct {
	WorldID              string           `json:"world_id"`
	MarkerID             string           `json:"marker_id,omitempty"`
	AppliedMarkerCount   int              `json:"applied_marker_count"`
	Entities             []store.Entity   `json:"entities"`
	Relations            []store.Relation `json:"relations"`
	FromSnapshotMarkerID string           `json:"from_snapshot_marker_id,omitempty"`
	Note                 string           `json:"note,omitempty"`
}

// RebuildResult summarizes a snapshot rebuild run. A correct rebuild always
// reports SnapshotCount == MarkerCount.
type RebuildResult struct {
	Status        string `json:"status"`
	WorldID       string `json:"world_id"`
	MarkerCount   int    `json:"marker_count"`
	SnapshotCount int    `json:"snapshot_count"`
	RebuiltAt     string `json:"rebuilt_at"`
}
