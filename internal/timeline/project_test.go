package timeline

import (
	"context"
	"errors"
	"testing"

	"worldline/internal/store"
)

// buildAldricTimeline seeds the scenario used across projection tests:
// Aldric is created at year 100, knighted at year 200, and dies at year 300.
func buildAldricTimeline(t *testing.T, service *Service) (m1, m2, m3 *store.Marker) {
	t.Helper()
	ctx := context.Background()

	var err error
	m1, err = service.CreateMarker(ctx, "w1", MarkerCreate{
		Title:         "Aldric is born",
		DateLabel:     "Year 100",
		DateSortValue: floatPtr(100),
		Operations: []OperationCreate{{
			OpType:     "entity_create",
			TargetKind: "entity",
			TargetID:   "e-aldric",
			Payload:    map[string]any{"name": "Aldric", "type": "character"},
		}},
	}, false)
	if err != nil {
		t.Fatalf("create m1: %v", err)
	}

	m2, err = service.CreateMarker(ctx, "w1", MarkerCreate{
		Title:         "Aldric is knighted",
		DateLabel:     "Year 200",
		DateSortValue: floatPtr(200),
		Operations: []OperationCreate{{
			OpType:     "entity_patch",
			TargetKind: "entity",
			TargetID:   "e-aldric",
			Payload:    map[string]any{"status": "knighted"},
		}},
	}, false)
	if err != nil {
		t.Fatalf("create m2: %v", err)
	}

	m3, err = service.CreateMarker(ctx, "w1", MarkerCreate{
		Title:         "Aldric falls in battle",
		DateLabel:     "Year 300",
		DateSortValue: floatPtr(300),
		Operations: []OperationCreate{{
			OpType:     "entity_delete",
			TargetKind: "entity",
			TargetID:   "e-aldric",
			Payload:    map[string]any{"status": "deceased"},
		}},
	}, false)
	if err != nil {
		t.Fatalf("create m3: %v", err)
	}

	return m1, m2, m3
}

func findEntity(t *testing.T, state *WorldState, id string) *store.Entity {
	t.Helper()
	for i := range state.Entities {
		if state.Entities[i].ID == id {
			return &state.Entities[i]
		}
	}
	return nil
}

func TestGetWorldState_LifecycleAcrossMarkers(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	m1, m2, m3 := buildAldricTimeline(t, service)

	t.Run("at creation", func(t *testing.T) {
		state, err := service.GetWorldState(ctx, "w1", m1.ID, false)
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		aldric := findEntity(t, state, "e-aldric")
		if aldric == nil {
			t.Fatalf("expected Aldric at m1")
		}
		if !aldric.ExistsAtMarker || aldric.Status != "active" {
			t.Fatalf("expected active existing Aldric, got %+v", aldric)
		}
		if state.AppliedMarkerCount != 1 {
			t.Fatalf("expected 1 applied marker, got %d", state.AppliedMarkerCount)
		}
	})

	t.Run("after patch", func(t *testing.T) {
		state, err := service.GetWorldState(ctx, "w1", m2.ID, false)
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		aldric := findEntity(t, state, "e-aldric")
		if aldric == nil || !aldric.ExistsAtMarker || aldric.Status != "knighted" {
			t.Fatalf("expected knighted Aldric at m2, got %+v", aldric)
		}
	})

	t.Run("after delete the tombstone stays visible", func(t *testing.T) {
		state, err := service.GetWorldState(ctx, "w1", m3.ID, false)
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		aldric := findEntity(t, state, "e-aldric")
		if aldric == nil {
			t.Fatalf("expected tombstoned Aldric at m3")
		}
		if aldric.ExistsAtMarker || aldric.Status != "deceased" {
			t.Fatalf("expected deceased non-existing Aldric, got %+v", aldric)
		}
		if state.AppliedMarkerCount != 3 {
			t.Fatalf("expected 3 applied markers, got %d", state.AppliedMarkerCount)
		}
	})

	t.Run("present equals last marker", func(t *testing.T) {
		atLast, err := service.GetWorldState(ctx, "w1", m3.ID, false)
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		present, err := service.GetWorldState(ctx, "w1", "", false)
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		a, b := findEntity(t, atLast, "e-aldric"), findEntity(t, present, "e-aldric")
		if a == nil || b == nil || a.Status != b.Status || a.ExistsAtMarker != b.ExistsAtMarker {
			t.Fatalf("expected present to match last marker: %+v vs %+v", a, b)
		}
	})

	t.Run("unknown marker", func(t *testing.T) {
		_, err := service.GetWorldState(ctx, "w1", "missing", false)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestGetWorldState_FutureCreationHidden(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	// The canonical row exists up front, the way normal entity editing leaves
	// it; its creating marker sits at year 100.
	if err := db.UpsertEntity(ctx, &store.Entity{
		ID: "e-aldric", WorldID: "w1", Name: "Aldric", Type: "character",
		Aliases: []string{}, Tags: []string{}, Status: "active", Source: "user",
		CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("seed entity: %v", err)
	}

	buildAldricTimeline(t, service)

	early, err := service.CreateMarker(ctx, "w1", MarkerCreate{
		Title:         "The age before",
		DateLabel:     "Year 50",
		DateSortValue: floatPtr(50),
	}, false)
	if err != nil {
		t.Fatalf("create early marker: %v", err)
	}

	state, err := service.GetWorldState(ctx, "w1", early.ID, false)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	aldric := findEntity(t, state, "e-aldric")
	if aldric == nil {
		t.Fatalf("expected canonical Aldric in the output")
	}
	if aldric.ExistsAtMarker {
		t.Fatalf("expected Aldric hidden before his creating marker")
	}
}

func TestGetWorldState_RelationExistenceIsDerived(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, m2, m3 := buildAldricTimeline(t, service)

	// The castle and Aldric's residence there both start at year 150.
	if _, err := service.CreateMarker(ctx, "w1", MarkerCreate{
		Title:         "Aldric takes residence",
		DateLabel:     "Year 150",
		DateSortValue: floatPtr(150),
		Operations: []OperationCreate{
			{
				OpType:     "entity_create",
				TargetKind: "entity",
				TargetID:   "e-castle",
				Payload:    map[string]any{"name": "Castle Brand", "type": "location"},
			},
			{
				OpType:     "relation_create",
				TargetKind: "relation",
				TargetID:   "r-residence",
				Payload: map[string]any{
					"source_entity_id": "e-aldric",
					"target_entity_id": "e-castle",
					"type":             "resides_in",
				},
			},
		},
	}, false); err != nil {
		t.Fatalf("create residence marker: %v", err)
	}

	t.Run("alive at year 200", func(t *testing.T) {
		state, err := service.GetWorldState(ctx, "w1", m2.ID, false)
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		if len(state.Relations) != 1 {
			t.Fatalf("expected one relation, got %+v", state.Relations)
		}
		if !state.Relations[0].ExistsAtMarker {
			t.Fatalf("expected relation to exist while both endpoints do")
		}
		if state.Relations[0].Weight != 0.5 {
			t.Fatalf("expected default weight 0.5, got %g", state.Relations[0].Weight)
		}
	})

	t.Run("endpoint death kills the relation", func(t *testing.T) {
		state, err := service.GetWorldState(ctx, "w1", m3.ID, false)
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		if len(state.Relations) != 1 {
			t.Fatalf("expected one relation, got %+v", state.Relations)
		}
		if state.Relations[0].ExistsAtMarker {
			t.Fatalf("expected relation existence to follow its deleted endpoint")
		}
	})
}

func TestGetWorldState_EntityOrdering(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.CreateMarker(ctx, "w1", MarkerCreate{
		Title: "Census",
		Operations: []OperationCreate{
			{OpType: "entity_create", TargetKind: "entity", TargetID: "e1", Payload: map[string]any{"name": "zephyr"}},
			{OpType: "entity_create", TargetKind: "entity", TargetID: "e2", Payload: map[string]any{"name": "Aldric"}},
			{OpType: "entity_create", TargetKind: "entity", TargetID: "e3", Payload: map[string]any{"name": "brand"}},
		},
	}, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	state, err := service.GetWorldState(ctx, "w1", "", false)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(state.Entities) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(state.Entities))
	}
	names := []string{state.Entities[0].Name, state.Entities[1].Name, state.Entities[2].Name}
	if names[0] != "Aldric" || names[1] != "brand" || names[2] != "zephyr" {
		t.Fatalf("expected case-insensitive name order, got %v", names)
	}
}

func TestGetWorldState_PatchVivifiesEntity(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.CreateMarker(ctx, "w1", MarkerCreate{
		Title: "Out of nowhere",
		Operations: []OperationCreate{{
			OpType:     "entity_patch",
			TargetKind: "entity",
			TargetID:   "e-ghost",
			Payload:    map[string]any{"name": "The Ghost", "status": "rumored"},
		}},
	}, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	state, err := service.GetWorldState(ctx, "w1", "", false)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	ghost := findEntity(t, state, "e-ghost")
	if ghost == nil || !ghost.ExistsAtMarker || ghost.Status != "rumored" {
		t.Fatalf("expected vivified entity, got %+v", ghost)
	}
	if ghost.Type != "concept" {
		t.Fatalf("expected default type concept, got %q", ghost.Type)
	}
}

func TestGetWorldState_RelationNeedsKnownEndpoints(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.CreateMarker(ctx, "w1", MarkerCreate{
		Title: "Dangling",
		Operations: []OperationCreate{{
			OpType:     "relation_create",
			TargetKind: "relation",
			TargetID:   "r1",
			Payload: map[string]any{
				"source_entity_id": "nobody",
				"target_entity_id": "nowhere",
				"type":             "knows",
			},
		}},
	}, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	state, err := service.GetWorldState(ctx, "w1", "", false)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(state.Relations) != 0 {
		t.Fatalf("expected no relations without endpoints, got %+v", state.Relations)
	}
}

func TestGetWorldState_WorldPatchIsInert(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, m2, _ := buildAldricTimeline(t, service)

	before, err := service.GetWorldState(ctx, "w1", m2.ID, false)
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	if _, err := service.CreateMarker(ctx, "w1", MarkerCreate{
		Title:         "The realm is renamed",
		DateLabel:     "Year 150",
		DateSortValue: floatPtr(150),
		Operations: []OperationCreate{{
			OpType:     "world_patch",
			TargetKind: "world",
			Payload:    map[string]any{"name": "New Arden", "description": "renamed by decree"},
		}},
	}, false); err != nil {
		t.Fatalf("create world_patch marker: %v", err)
	}

	after, err := service.GetWorldState(ctx, "w1", m2.ID, false)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if after.AppliedMarkerCount != before.AppliedMarkerCount+1 {
		t.Fatalf("expected the marker to count toward replay, got %d vs %d", after.AppliedMarkerCount, before.AppliedMarkerCount)
	}
	if len(after.Entities) != len(before.Entities) || len(after.Relations) != len(before.Relations) {
		t.Fatalf("expected world_patch to leave projected records untouched")
	}
	aldric := findEntity(t, after, "e-aldric")
	if aldric == nil || !aldric.ExistsAtMarker || aldric.Status != "knighted" {
		t.Fatalf("expected Aldric unchanged, got %+v", aldric)
	}
}
