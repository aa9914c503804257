package validate

import (
	"context"
	"fmt"
	"strings"

	"worldline/internal/store"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeEnumInvalid         = "enum_value_invalid"
	codeMissingRequired     = "missing_required_property"
	codeLegacyOpType        = "legacy_op_type"
	codeDuplicateOrderIndex = "duplicate_order_index"
	codeOrphanedSnapshot    = "orphaned_snapshot"
	codeSnapshotCoverageGap = "snapshot_coverage_gap"
	codeUnplacedWithDate    = "unplaced_with_date"
)

type Issue struct {
	Severity    Severity
	Code        string
	Message     string
	WorldID     string
	MarkerID    string
	OperationID string
}

type Report struct {
	Issues []Issue
}

// TimelineValidator is the slice of the store the integrity checks read.
type TimelineValidator interface {
	ListMarkers(ctx context.Context, worldID string) ([]store.Marker, error)
	ListOperations(ctx context.Context, worldID, markerID string) ([]store.Operation, error)
	ListSnapshots(ctx context.Context, worldID string) ([]store.Snapshot, error)
}

// Run inspects a world's timeline log for rows that predate the current
// write-side validation: open-enum values, legacy operation verbs, duplicate
// order indexes, and snapshots that no longer line up with the marker set.
func Run(ctx context.Context, db TimelineValidator, worldID string) (*Report, error) {
	if db == nil {
		return nil, fmt.Errorf("store is required")
	}
	if strings.TrimSpace(worldID) == "" {
		return nil, fmt.Errorf("world id is required")
	}

	issues := make([]Issue, 0)

	markers, err := db.ListMarkers(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}

	markerIDs := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		markerIDs[m.ID] = struct{}{}
		issues = append(issues, validateMarker(m)...)

		operations, err := db.ListOperations(ctx, worldID, m.ID)
		if err != nil {
			return nil, fmt.Errorf("list operations for marker %s: %w", m.ID, err)
		}
		issues = append(issues, validateOperations(m, operations)...)
	}

	snapshots, err := db.ListSnapshots(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	for _, s := range snapshots {
		if _, ok := markerIDs[s.MarkerID]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeOrphanedSnapshot,
				Message:  fmt.Sprintf("snapshot %s references unknown marker %s", s.ID, s.MarkerID),
				WorldID:  worldID,
				MarkerID: s.MarkerID,
			})
		}
	}
	if len(snapshots) > 0 && len(snapshots) != len(markers) {
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     codeSnapshotCoverageGap,
			Message:  fmt.Sprintf("%d snapshots cover %d markers; run a rebuild", len(snapshots), len(markers)),
			WorldID:  worldID,
		})
	}

	return &Report{Issues: issues}, nil
}

func validateMarker(m store.Marker) []Issue {
	var issues []Issue

	if strings.TrimSpace(m.Title) == "" {
		issues = append(issues, markerIssue(m, SeverityError, codeMissingRequired, "marker title is empty"))
	}
	switch m.MarkerKind {
	case "explicit", "semantic":
	default:
		issues = append(issues, markerIssue(m, SeverityError, codeEnumInvalid,
			fmt.Sprintf("invalid marker_kind: %s", m.MarkerKind)))
	}
	switch m.PlacementStatus {
	case "placed", "unplaced":
	default:
		issues = append(issues, markerIssue(m, SeverityError, codeEnumInvalid,
			fmt.Sprintf("invalid placement_status: %s", m.PlacementStatus)))
	}
	switch m.Source {
	case "user", "ai":
	default:
		issues = append(issues, markerIssue(m, SeverityError, codeEnumInvalid,
			fmt.Sprintf("invalid source: %s", m.Source)))
	}
	if m.PlacementStatus == "unplaced" && m.DateSortValue != nil {
		issues = append(issues, markerIssue(m, SeverityWarn, codeUnplacedWithDate,
			"unplaced marker carries a date sort value"))
	}

	return issues
}

func validateOperations(m store.Marker, operations []store.Operation) []Issue {
	var issues []Issue

	canonical := map[string]struct{}{
		"entity_create": {}, "entity_patch": {}, "entity_delete": {},
		"relation_create": {}, "relation_patch": {}, "relation_delete": {},
		"world_patch": {},
	}
	legacy := map[string]struct{}{
		"entity_add": {}, "entity_update": {}, "entity_modify": {}, "entity_remove": {},
		"relation_add": {}, "relation_update": {}, "relation_modify": {}, "relation_remove": {},
		"world_update": {}, "world_modify": {},
	}

	seenOrder := make(map[int]struct{}, len(operations))
	for _, o := range operations {
		if _, ok := canonical[o.OpType]; !ok {
			if _, isLegacy := legacy[o.OpType]; isLegacy {
				issues = append(issues, operationIssue(m, o, SeverityWarn, codeLegacyOpType,
					fmt.Sprintf("legacy op_type stored verbatim: %s", o.OpType)))
			} else {
				issues = append(issues, operationIssue(m, o, SeverityError, codeEnumInvalid,
					fmt.Sprintf("invalid op_type: %s", o.OpType)))
			}
		}
		switch o.TargetKind {
		case "entity", "relation":
			if strings.TrimSpace(o.TargetID) == "" {
				issues = append(issues, operationIssue(m, o, SeverityError, codeMissingRequired,
					"operation target_id is empty"))
			}
		case "world":
		default:
			issues = append(issues, operationIssue(m, o, SeverityError, codeEnumInvalid,
				fmt.Sprintf("invalid target_kind: %s", o.TargetKind)))
		}
		if _, dup := seenOrder[o.OrderIndex]; dup {
			issues = append(issues, operationIssue(m, o, SeverityWarn, codeDuplicateOrderIndex,
				fmt.Sprintf("order_index %d appears more than once; replay order falls back to created_at", o.OrderIndex)))
		}
		seenOrder[o.OrderIndex] = struct{}{}
	}

	return issues
}

func markerIssue(m store.Marker, severity Severity, code, message string) Issue {
	return Issue{
		Severity: severity,
		Code:     code,
		Message:  message,
		WorldID:  m.WorldID,
		MarkerID: m.ID,
	}
}

func operationIssue(m store.Marker, o store.Operation, severity Severity, code, message string) Issue {
	return Issue{
		Severity:    severity,
		Code:        code,
		Message:     message,
		WorldID:     m.WorldID,
		MarkerID:    m.ID,
		OperationID: o.ID,
	}
}
