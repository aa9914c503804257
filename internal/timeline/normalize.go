package timeline

import (
	"fmt"
	"strings"
)

// Marker kinds.
const (
	MarkerExplicit = "explicit"
	MarkerSemantic = "semantic"
)

// Placement statuses.
const (
	PlacementPlaced   = "placed"
	PlacementUnplaced = "unplaced"
)

// Target kinds.
const (
	TargetEntity   = "entity"
	TargetRelation = "relation"
	TargetWorld    = "world"
)

// Canonical operation verbs. Legacy aliases are folded into these at the
// write boundary; replay only ever dispatches on canonical verbs.
const (
	OpEntityCreate   = "entity_create"
	OpEntityPatch    = "entity_patch"
	OpEntityDelete   = "entity_delete"
	OpRelationCreate = "relation_create"
	OpRelationPatch  = "relation_patch"
	OpRelationDelete = "relation_delete"
	OpWorldPatch     = "world_patch"
)

var opTypeAliases = map[string]string{
	"entity_add":      OpEntityCreate,
	"entity_update":   OpEntityPatch,
	"entity_modify":   OpEntityPatch,
	"entity_remove":   OpEntityDelete,
	"relation_add":    OpRelationCreate,
	"relation_update": OpRelationPatch,
	"relation_modify": OpRelationPatch,
	"relation_remove": OpRelationDelete,
	"world_update":    OpWorldPatch,
	"world_modify":    OpWorldPatch,
}

var canonicalOpTypes = map[string]struct{}{
	OpEntityCreate:   {},
	OpEntityPatch:    {},
	OpEntityDelete:   {},
	OpRelationCreate: {},
	OpRelationPatch:  {},
	OpRelationDelete: {},
	OpWorldPatch:     {},
}

// normalizeType lowercases, trims, and replaces spaces with underscores, so
// "Parent Of" and "parent_of" name the same type.
func normalizeType(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(s)), " ", "_")
}

func normalizeMarkerKind(kind string) (string, error) {
	normalized := normalizeType(kind)
	switch normalized {
	case MarkerExplicit, MarkerSemantic:
		return normalized, nil
	}
	return "", fmt.Errorf("marker_kind must be one of explicit, semantic: %w", ErrValidation)
}

func normalizePlacementStatus(status string) (string, error) {
	normalized := normalizeType(status)
	switch normalized {
	case PlacementPlaced, PlacementUnplaced:
		return normalized, nil
	}
	return "", fmt.Errorf("placement_status must be one of placed, unplaced: %w", ErrValidation)
}

func normalizeTargetKind(kind string) (string, error) {
	normalized := normalizeType(kind)
	switch normalized {
	case TargetEntity, TargetRelation, TargetWorld:
		return normalized, nil
	}
	return "", fmt.Errorf("target_kind must be one of entity, relation, world: %w", ErrValidation)
}

func normalizeSource(source string) (string, error) {
	normalized := normalizeType(source)
	switch normalized {
	case "user", "ai":
		return normalized, nil
	}
	return "", fmt.Errorf("source must be one of user, ai: %w", ErrValidation)
}

// normalizeOpType folds aliases into canonical verbs and rejects anything
// outside the closed set.
func normalizeOpType(opType string) (string, error) {
	normalized := normalizeType(opType)
	if canonical, ok := opTypeAliases[normalized]; ok {
		return canonical, nil
	}
	if _, ok := canonicalOpTypes[normalized]; ok {
		return normalized, nil
	}
	return "", fmt.Errorf("unsupported op_type %q: %w", opType, ErrValidation)
}

// canonicalOpType is the read-side counterpart of normalizeOpType: rows
// written before alias folding still replay, and unknown verbs come back
// empty so replay can skip them instead of failing mid-projection.
func canonicalOpType(opType string) string {
	normalized := normalizeType(opType)
	if canonical, ok := opTypeAliases[normalized]; ok {
		return canonical
	}
	if _, ok := canonicalOpTypes[normalized]; ok {
		return normalized
	}
	return ""
}
