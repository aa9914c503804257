package timeline

import (
	"fmt"

	"worldline/internal/store"
)

// projection holds replay state: id-keyed records plus explicit existence
// flags. Deletes tombstone records instead of removing them, so the last
// known field values stay inspectable.
type projection struct {
	worldID        string
	entities       map[string]*store.Entity
	relations      map[string]*store.Relation
	entityExists   map[string]bool
	relationExists map[string]bool
}

func newProjection(worldID string, baseEntities []store.Entity, baseRelations []store.Relation) *projection {
	p := &projection{
		worldID:        worldID,
		entities:       make(map[string]*store.Entity, len(baseEntities)),
		relations:      make(map[string]*store.Relation, len(baseRelations)),
		entityExists:   make(map[string]bool, len(baseEntities)),
		relationExists: make(map[string]bool, len(baseRelations)),
	}
	for i := range baseEntities {
		e := baseEntities[i]
		e.ExistsAtMarker = true
		p.entities[e.ID] = &e
		p.entityExists[e.ID] = true
	}
	for i := range baseRelations {
		r := baseRelations[i]
		r.ExistsAtMarker = true
		p.relations[r.ID] = &r
		p.relationExists[r.ID] = true
	}
	return p
}

// hideFutureCreations flags records whose first creating marker lies beyond
// the target sort key, so scrubbing backward through time hides
// not-yet-created objects without touching canonical rows.
func (p *projection) hideFutureCreations(targets []store.OperationTarget, maxSortKey float64) {
	entityFirst := map[string]float64{}
	relationFirst := map[string]float64{}

	// targets arrive in replay order; only the first creation counts.
	for _, t := range targets {
		if t.TargetID == "" {
			continue
		}
		opType := canonicalOpType(t.OpType)
		switch normalizeType(t.TargetKind) {
		case TargetEntity:
			if opType == OpEntityCreate {
				if _, ok := entityFirst[t.TargetID]; !ok {
					entityFirst[t.TargetID] = t.SortKey
				}
			}
		case TargetRelation:
			if opType == OpRelationCreate {
				if _, ok := relationFirst[t.TargetID]; !ok {
					relationFirst[t.TargetID] = t.SortKey
				}
			}
		}
	}

	for id, sortKey := range entityFirst {
		if sortKey > maxSortKey {
			p.entityExists[id] = false
		}
	}
	for id, sortKey := range relationFirst {
		if sortKey > maxSortKey {
			p.relationExists[id] = false
		}
	}
}

func (p *projection) apply(op store.Operation) {
	opType := canonicalOpType(op.OpType)
	if opType == "" {
		// Unknown verbs never replay; the write boundary rejects them, so
		// this only guards rows predating validation.
		return
	}
	payload := op.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	switch normalizeType(op.TargetKind) {
	case TargetEntity:
		targetID := op.TargetID
		if targetID == "" {
			targetID, _ = payloadString(payload, "id")
		}
		if targetID == "" {
			return
		}
		switch opType {
		case OpEntityCreate:
			p.createEntity(targetID, payload)
		case OpEntityPatch:
			p.patchEntity(targetID, payload)
		case OpEntityDelete:
			p.deleteEntity(targetID, payload)
		}
	case TargetRelation:
		targetID := op.TargetID
		if targetID == "" {
			targetID, _ = payloadString(payload, "id")
		}
		if targetID == "" {
			return
		}
		switch opType {
		case OpRelationCreate:
			p.createRelation(targetID, payload)
		case OpRelationPatch:
			p.patchRelation(targetID, payload)
		case OpRelationDelete:
			p.deleteRelation(targetID)
		}
	case TargetWorld:
		// world_patch is accepted and replayed, but no world-level projected
		// field is materialized from its payload.
	}
}

func (p *projection) createEntity(targetID string, payload map[string]any) {
	e := p.ensureEntity(targetID, payload)
	if e == nil {
		return
	}
	p.patchEntityFields(e, payload)
	p.entityExists[targetID] = true
	e.ExistsAtMarker = true
}

func (p *projection) patchEntity(targetID string, payload map[string]any) {
	e := p.ensureEntity(targetID, payload)
	if e == nil {
		return
	}
	p.patchEntityFields(e, payload)
	// A patch revives nothing: existence stays whatever it already was, and
	// defaults to true for records the future-creation pre-pass never saw.
	if _, ok := p.entityExists[targetID]; !ok {
		p.entityExists[targetID] = true
	}
	e.ExistsAtMarker = p.entityExists[targetID]
}

func (p *projection) deleteEntity(targetID string, payload map[string]any) {
	if e, ok := p.entities[targetID]; ok {
		if raw, ok := payload["status"]; ok && raw != nil {
			e.Status = fmt.Sprint(raw)
		}
		e.UpdatedAt = nowUTC()
		e.ExistsAtMarker = false
	}
	p.entityExists[targetID] = false
}

// ensureEntity auto-vivifies a record from the payload when the target id is
// unknown, tolerating logs without an explicit create. A payload without a
// name cannot materialize anything.
func (p *projection) ensureEntity(targetID string, payload map[string]any) *store.Entity {
	if e, ok := p.entities[targetID]; ok {
		return e
	}

	name, _ := payloadString(payload, "name")
	if name == "" {
		return nil
	}
	entityType := firstPayloadString(payload, "type", "entity_type", "kind")
	if entityType == "" {
		entityType = "concept"
	}

	now := nowUTC()
	e := &store.Entity{
		ID:             targetID,
		WorldID:        p.worldID,
		Name:           name,
		Type:           normalizeType(entityType),
		Aliases:        toStringSlice(payload["aliases"]),
		Tags:           toStringSlice(payload["tags"]),
		Status:         "active",
		ExistsAtMarker: true,
		Source:         "user",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if v, _ := payloadString(payload, "subtype"); v != "" {
		e.Subtype = normalizeType(v)
	}
	if v, _ := payloadString(payload, "context"); v != "" {
		e.Context = v
	}
	if v, _ := payloadString(payload, "summary"); v != "" {
		e.Summary = v
	}
	if v, _ := payloadString(payload, "image_url"); v != "" {
		e.ImageURL = v
	}
	if v, _ := payloadString(payload, "status"); v != "" {
		e.Status = v
	}
	if v, _ := payloadString(payload, "source"); v != "" {
		e.Source = v
	}
	if v, _ := payloadString(payload, "source_note_id"); v != "" {
		e.SourceNoteID = v
	}
	if v, _ := payloadString(payload, "created_at"); v != "" {
		e.CreatedAt = v
	}
	if v, _ := payloadString(payload, "updated_at"); v != "" {
		e.UpdatedAt = v
	}

	p.entities[targetID] = e
	return e
}

// patchEntityFields mutates only the fields present in the payload.
func (p *projection) patchEntityFields(e *store.Entity, payload map[string]any) {
	if raw, ok := payload["name"]; ok {
		if v, ok := raw.(string); ok && v != "" {
			e.Name = v
		}
	}
	if raw, ok := payload["type"]; ok {
		if v, ok := raw.(string); ok && v != "" {
			e.Type = normalizeType(v)
		}
	}
	if raw, ok := payload["subtype"]; ok {
		if v, ok := raw.(string); ok && v != "" {
			e.Subtype = normalizeType(v)
		} else {
			e.Subtype = ""
		}
	}
	if raw, ok := payload["aliases"]; ok {
		e.Aliases = toStringSlice(raw)
	}
	if raw, ok := payload["context"]; ok {
		e.Context, _ = raw.(string)
	}
	if raw, ok := payload["summary"]; ok {
		e.Summary, _ = raw.(string)
	}
	if raw, ok := payload["tags"]; ok {
		e.Tags = toStringSlice(raw)
	}
	if raw, ok := payload["image_url"]; ok {
		e.ImageURL, _ = raw.(string)
	}
	if raw, ok := payload["status"]; ok && raw != nil {
		e.Status = fmt.Sprint(raw)
	}
	e.UpdatedAt = nowUTC()
}

func (p *projection) createRelation(targetID string, payload map[string]any) {
	r, ok := p.relations[targetID]
	if !ok {
		sourceID, _ := payloadString(payload, "source_entity_id")
		destID, _ := payloadString(payload, "target_entity_id")
		if sourceID == "" || destID == "" {
			return
		}
		// A relation cannot materialize without both endpoints known.
		if _, ok := p.entities[sourceID]; !ok {
			return
		}
		if _, ok := p.entities[destID]; !ok {
			return
		}
		relType := firstPayloadString(payload, "type", "relation_type", "kind")
		if relType == "" {
			relType = "related_to"
		}

		now := nowUTC()
		r = &store.Relation{
			ID:             targetID,
			WorldID:        p.worldID,
			SourceEntityID: sourceID,
			TargetEntityID: destID,
			Type:           normalizeType(relType),
			Weight:         0.5,
			ExistsAtMarker: true,
			Source:         "user",
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if v, ok := toFloat(payload["weight"]); ok {
			r.Weight = v
		}
		if v, _ := payloadString(payload, "context"); v != "" {
			r.Context = v
		}
		if v, _ := payloadString(payload, "source"); v != "" {
			r.Source = v
		}
		if v, _ := payloadString(payload, "source_note_id"); v != "" {
			r.SourceNoteID = v
		}
		if v, _ := payloadString(payload, "created_at"); v != "" {
			r.CreatedAt = v
		}
		if v, _ := payloadString(payload, "updated_at"); v != "" {
			r.UpdatedAt = v
		}
		p.relations[targetID] = r
	}

	p.patchRelationFields(r, payload)
	r.ExistsAtMarker = true
	p.relationExists[targetID] = true
}

func (p *projection) patchRelation(targetID string, payload map[string]any) {
	r, ok := p.relations[targetID]
	if !ok {
		return
	}
	p.patchRelationFields(r, payload)
	if _, ok := p.relationExists[targetID]; !ok {
		p.relationExists[targetID] = true
	}
	r.ExistsAtMarker = p.relationExists[targetID]
}

func (p *projection) deleteRelation(targetID string) {
	if r, ok := p.relations[targetID]; ok {
		r.UpdatedAt = nowUTC()
		r.ExistsAtMarker = false
	}
	p.relationExists[targetID] = false
}

func (p *projection) patchRelationFields(r *store.Relation, payload map[string]any) {
	// Endpoint moves only land when the new endpoint is a known entity.
	if raw, ok := payload["source_entity_id"]; ok {
		if v, ok := raw.(string); ok {
			if _, known := p.entities[v]; known {
				r.SourceEntityID = v
			}
		}
	}
	if raw, ok := payload["target_entity_id"]; ok {
		if v, ok := raw.(string); ok {
			if _, known := p.entities[v]; known {
				r.TargetEntityID = v
			}
		}
	}
	if raw, ok := payload["type"]; ok {
		if v, ok := raw.(string); ok && v != "" {
			r.Type = normalizeType(v)
		}
	}
	if raw, ok := payload["context"]; ok {
		r.Context, _ = raw.(string)
	}
	if raw, ok := payload["weight"]; ok {
		if v, ok := toFloat(raw); ok {
			r.Weight = v
		}
	}
	r.UpdatedAt = nowUTC()
}

func payloadString(payload map[string]any, key string) (string, bool) {
	raw, ok := payload[key]
	if !ok {
		return "", false
	}
	v, ok := raw.(string)
	return v, ok
}

func firstPayloadString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := payloadString(payload, key); ok && v != "" {
			return v
		}
	}
	return ""
}

func toStringSlice(raw any) []string {
	switch values := raw.(type) {
	case []string:
		out := make([]string, len(values))
		copy(out, values)
		return out
	case []any:
		out := make([]string, 0, len(values))
		for _, item := range values {
			if v, ok := item.(string); ok {
				out = append(out, v)
			}
		}
		return out
	default:
		return []string{}
	}
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
