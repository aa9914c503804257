package timeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"worldline/internal/store"
	"worldline/internal/store/sqlite"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	ctx := context.Background()

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "worldline.db")
	client, err := sqlite.New(ctx, dsn)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { client.Close(ctx) })
	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}

	return NewService(client, nil, true), client
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func TestCreateMarker_SortKeyResolution(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	t.Run("append gets sequential keys", func(t *testing.T) {
		first, err := service.CreateMarker(ctx, "w1", MarkerCreate{Title: "First"}, false)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		second, err := service.CreateMarker(ctx, "w1", MarkerCreate{Title: "Second"}, false)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if first.SortKey != 1 || second.SortKey != 2 {
			t.Fatalf("expected keys 1 and 2, got %g and %g", first.SortKey, second.SortKey)
		}
	})

	t.Run("explicit sort key wins", func(t *testing.T) {
		m, err := service.CreateMarker(ctx, "w1", MarkerCreate{Title: "Pinned", SortKey: floatPtr(0.5)}, false)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if m.SortKey != 0.5 {
			t.Fatalf("expected 0.5, got %g", m.SortKey)
		}
	})

	t.Run("explicit marker uses date sort value", func(t *testing.T) {
		m, err := service.CreateMarker(ctx, "w1", MarkerCreate{
			Title:         "Dated",
			MarkerKind:    MarkerExplicit,
			DateLabel:     "Year 812",
			DateSortValue: floatPtr(812),
		}, false)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if m.SortKey != 812 {
			t.Fatalf("expected 812, got %g", m.SortKey)
		}
		if m.PlacementStatus != PlacementPlaced {
			t.Fatalf("expected placed, got %q", m.PlacementStatus)
		}
	})

	t.Run("semantic marker without key is unplaced at end", func(t *testing.T) {
		m, err := service.CreateMarker(ctx, "w1", MarkerCreate{Title: "Sometime", MarkerKind: MarkerSemantic}, false)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if m.PlacementStatus != PlacementUnplaced {
			t.Fatalf("expected unplaced, got %q", m.PlacementStatus)
		}
		if m.SortKey <= 812 {
			t.Fatalf("expected end-of-timeline key, got %g", m.SortKey)
		}
	})
}

func TestCreateMarker_Validation(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	t.Run("bad marker kind", func(t *testing.T) {
		_, err := service.CreateMarker(ctx, "w1", MarkerCreate{Title: "Bad", MarkerKind: "approximate"}, false)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("bad inline op leaves nothing behind", func(t *testing.T) {
		_, err := service.CreateMarker(ctx, "w1", MarkerCreate{
			Title: "Partial",
			Operations: []OperationCreate{
				{OpType: "entity_create", TargetKind: "entity", TargetID: "e1", Payload: map[string]any{"name": "A"}},
				{OpType: "entity_destroy", TargetKind: "entity", TargetID: "e1"},
			},
		}, false)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		markers, err := db.ListMarkers(ctx, "w1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(markers) != 0 {
			t.Fatalf("expected no markers after failed create, got %d", len(markers))
		}
	})

	t.Run("legacy alias accepted and folded", func(t *testing.T) {
		m, err := service.CreateMarker(ctx, "w1", MarkerCreate{
			Title: "Aliased",
			Operations: []OperationCreate{
				{OpType: "entity_add", TargetKind: "entity", TargetID: "e1", Payload: map[string]any{"name": "A"}},
			},
		}, false)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if len(m.Operations) != 1 || m.Operations[0].OpType != OpEntityCreate {
			t.Fatalf("expected folded entity_create, got %+v", m.Operations)
		}
	})
}

func TestUpdateMarker(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.CreateMarker(ctx, "w1", MarkerCreate{Title: "Before"}, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := service.UpdateMarker(ctx, "w1", created.ID, MarkerUpdate{
		Title:   strPtr("After"),
		SortKey: floatPtr(42),
	}, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "After" || updated.SortKey != 42 {
		t.Fatalf("unexpected marker after update: %+v", updated)
	}

	t.Run("unknown marker", func(t *testing.T) {
		_, err := service.UpdateMarker(ctx, "w1", "missing", MarkerUpdate{Title: strPtr("X")}, false)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("bad enum", func(t *testing.T) {
		_, err := service.UpdateMarker(ctx, "w1", created.ID, MarkerUpdate{MarkerKind: strPtr("fuzzy")}, false)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestDeleteMarker_CascadesOperations(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	created, err := service.CreateMarker(ctx, "w1", MarkerCreate{
		Title: "Doomed",
		Operations: []OperationCreate{
			{OpType: "entity_create", TargetKind: "entity", TargetID: "e1", Payload: map[string]any{"name": "A"}},
		},
	}, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := service.DeleteMarker(ctx, "w1", created.ID, false); err != nil {
		t.Fatalf("delete: %v", err)
	}

	operations, err := db.ListOperationsThrough(ctx, "w1", nil)
	if err != nil {
		t.Fatalf("list operations: %v", err)
	}
	if len(operations) != 0 {
		t.Fatalf("expected cascade to remove operations, got %d", len(operations))
	}

	if err := service.DeleteMarker(ctx, "w1", created.ID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestOperationLifecycle(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	marker, err := service.CreateMarker(ctx, "w1", MarkerCreate{Title: "M"}, false)
	if err != nil {
		t.Fatalf("create marker: %v", err)
	}

	op, err := service.CreateOperation(ctx, "w1", marker.ID, OperationCreate{
		OpType:     "entity_add",
		TargetKind: "entity",
		TargetID:   "e1",
		Payload:    map[string]any{"name": "A"},
	}, false)
	if err != nil {
		t.Fatalf("create operation: %v", err)
	}
	if op.OpType != OpEntityCreate {
		t.Fatalf("expected folded verb, got %q", op.OpType)
	}

	updated, err := service.UpdateOperation(ctx, "w1", marker.ID, op.ID, OperationUpdate{
		Payload: map[string]any{"name": "B"},
	}, false)
	if err != nil {
		t.Fatalf("update operation: %v", err)
	}
	if updated.Payload["name"] != "B" {
		t.Fatalf("expected payload update, got %+v", updated.Payload)
	}

	if err := service.DeleteOperation(ctx, "w1", marker.ID, op.ID, false); err != nil {
		t.Fatalf("delete operation: %v", err)
	}
	if err := service.DeleteOperation(ctx, "w1", marker.ID, op.ID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	t.Run("unknown marker rejected", func(t *testing.T) {
		_, err := service.CreateOperation(ctx, "w1", "missing", OperationCreate{
			OpType:     "entity_create",
			TargetKind: "entity",
			TargetID:   "e1",
		}, false)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestListMarkers_IncludeOperations(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.CreateMarker(ctx, "w1", MarkerCreate{Title: "Empty"}, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.CreateMarker(ctx, "w1", MarkerCreate{
		Title: "Busy",
		Operations: []OperationCreate{
			{OpType: "entity_create", TargetKind: "entity", TargetID: "e1", Payload: map[string]any{"name": "A"}},
		},
	}, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	markers, err := service.ListMarkers(ctx, "w1", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(markers) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(markers))
	}
	if markers[0].Operations == nil || len(markers[0].Operations) != 0 {
		t.Fatalf("expected empty operations slice on first marker, got %+v", markers[0].Operations)
	}
	if len(markers[1].Operations) != 1 {
		t.Fatalf("expected one operation on second marker, got %+v", markers[1].Operations)
	}
}

func TestRepositionMarker_ReordersReplay(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	m1, _, m3 := buildAldricTimeline(t, service)

	// Move the death marker ahead of the birth marker.
	moved, err := service.RepositionMarker(ctx, "w1", m3.ID, 50, "", false)
	if err != nil {
		t.Fatalf("reposition: %v", err)
	}
	if moved.SortKey != 50 || moved.PlacementStatus != PlacementPlaced {
		t.Fatalf("unexpected moved marker: %+v", moved)
	}

	// With the delete replaying before the create, Aldric is alive at the
	// end of the timeline.
	present, err := service.GetWorldState(ctx, "w1", "", false)
	if err != nil {
		t.Fatalf("project present: %v", err)
	}
	aldric := findEntity(t, present, "e-aldric")
	if aldric == nil || !aldric.ExistsAtMarker {
		t.Fatalf("expected living Aldric after reposition, got %+v", aldric)
	}
	if aldric.Status != "knighted" {
		t.Fatalf("expected the later patch to win, got status %q", aldric.Status)
	}

	// The birth marker now replays after the relocated delete too.
	atBirth, err := service.GetWorldState(ctx, "w1", m1.ID, false)
	if err != nil {
		t.Fatalf("project at birth: %v", err)
	}
	aldric = findEntity(t, atBirth, "e-aldric")
	if aldric == nil || !aldric.ExistsAtMarker {
		t.Fatalf("expected living Aldric at his birth marker, got %+v", aldric)
	}
}
