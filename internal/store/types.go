package store

// Marker is a named anchor point on a world's timeline. Explicit markers sit
// at a fixed in-fiction date; semantic markers carry narrative ordering only.
type Marker struct {
	ID              string      `json:"id"`
	WorldID         string      `json:"world_id"`
	Title           string      `json:"title"`
	Summary         string      `json:"summary,omitempty"`
	MarkerKind      string      `json:"marker_kind"`
	PlacementStatus string      `json:"placement_status"`
	DateLabel       string      `json:"date_label,omitempty"`
	DateSortValue   *float64    `json:"date_sort_value,omitempty"`
	SortKey         float64     `json:"sort_key"`
	Source          string      `json:"source"`
	SourceNoteID    string      `json:"source_note_id,omitempty"`
	CreatedAt       string      `json:"created_at"`
	UpdatedAt       string      `json:"updated_at"`
	Operations      []Operation `json:"operations,omitempty"`
}

// Operation is an atomic mutation instruction attached to a marker. Operations
// within a marker replay in (order_index, created_at, id) order.
type Operation struct {
	ID         string         `json:"id"`
	WorldID    string         `json:"world_id"`
	MarkerID   string         `json:"marker_id"`
	OpType     string         `json:"op_type"`
	TargetKind string         `json:"target_kind"`
	TargetID   string         `json:"target_id,omitempty"`
	Payload    map[string]any `json:"payload"`
	OrderIndex int            `json:"order_index"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

// Snapshot is a cached projection of world state at a marker. Exactly one
// snapshot exists per (world_id, marker_id); writes are upserts.
type Snapshot struct {
	ID                 string `json:"id"`
	WorldID            string `json:"world_id"`
	MarkerID           string `json:"marker_id"`
	StateJSON          []byte `json:"-"`
	StateHash          string `json:"state_hash,omitempty"`
	AppliedMarkerCount int    `json:"applied_marker_count"`
	EntityCount        int    `json:"entity_count"`
	RelationCount      int    `json:"relation_count"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// Entity is a canonical graph record. ExistsAtMarker is derived during
// projection and never persisted on the canonical row.
type Entity struct {
	ID             string   `json:"id"`
	WorldID        string   `json:"world_id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Subtype        string   `json:"subtype,omitempty"`
	Aliases        []string `json:"aliases"`
	Context        string   `json:"context,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	Tags           []string `json:"tags"`
	ImageURL       string   `json:"image_url,omitempty"`
	Status         string   `json:"status"`
	ExistsAtMarker bool     `json:"exists_at_marker"`
	Source         string   `json:"source"`
	SourceNoteID   string   `json:"source_note_id,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// Relation is a canonical edge between two entities. Like Entity,
// ExistsAtMarker is projection-derived only.
type Relation struct {
	ID             string  `json:"id"`
	WorldID        string  `json:"world_id"`
	SourceEntityID string  `json:"source_entity_id"`
	TargetEntityID string  `json:"target_entity_id"`
	Type           string  `json:"type"`
	Context        string  `json:"context,omitempty"`
	Weight         float64 `json:"weight"`
	ExistsAtMarker bool    `json:"exists_at_marker"`
	Source         string  `json:"source"`
	SourceNoteID   string  `json:"source_note_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// OperationTarget is the slice of an operation needed to locate the first
// creating marker for each entity/relation id.
type OperationTarget struct {
	OpType     string
	TargetKind string
	TargetID   string
	SortKey    float64
}
