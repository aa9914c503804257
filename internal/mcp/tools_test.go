package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"worldline/internal/store/sqlite"
	"worldline/internal/timeline"
)

func newTestServer(t *testing.T) *Server {
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

	return NewServer(timeline.NewService(client, nil, true), "test")
}

func TestCreateAndListMarkers(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	sortKey := 10.0
	_, created, err := server.handleCreateMarker(ctx, nil, CreateMarkerInput{
		WorldID:    "w1",
		Title:      "The Founding",
		MarkerKind: "explicit",
		SortKey:    &sortKey,
		Operations: []OperationInput{{
			OpType:     "entity_create",
			TargetKind: "entity",
			TargetID:   "e1",
			Payload:    map[string]any{"name": "Westport", "type": "settlement"},
		}},
	})
	if err != nil {
		t.Fatalf("create marker: %v", err)
	}
	if created.Title != "The Founding" || created.SortKey != 10 {
		t.Fatalf("unexpected marker: %+v", created)
	}
	if len(created.Operations) != 1 || created.Operations[0].OpType != "entity_create" {
		t.Fatalf("unexpected operations: %+v", created.Operations)
	}

	_, listed, err := server.handleListMarkers(ctx, nil, ListMarkersInput{WorldID: "w1"})
	if err != nil {
		t.Fatalf("list markers: %v", err)
	}
	if len(listed.Markers) != 1 || listed.Markers[0].ID != created.ID {
		t.Fatalf("unexpected marker list: %+v", listed)
	}
}

func TestCreateMarker_MissingTitle(t *testing.T) {
	server := newTestServer(t)

	_, _, err := server.handleCreateMarker(context.Background(), nil, CreateMarkerInput{WorldID: "w1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestGetMarker_NotFound(t *testing.T) {
	server := newTestServer(t)

	_, _, err := server.handleGetMarker(context.Background(), nil, GetMarkerInput{WorldID: "w1", MarkerID: "missing"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestGetWorldState(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, created, err := server.handleCreateMarker(ctx, nil, CreateMarkerInput{
		WorldID: "w1",
		Title:   "The Founding",
		Operations: []OperationInput{{
			OpType:     "entity_create",
			TargetKind: "entity",
			TargetID:   "e1",
			Payload:    map[string]any{"name": "Westport", "type": "settlement"},
		}},
	})
	if err != nil {
		t.Fatalf("create marker: %v", err)
	}

	_, state, err := server.handleGetWorldState(ctx, nil, GetWorldStateInput{WorldID: "w1", MarkerID: created.ID})
	if err != nil {
		t.Fatalf("get world state: %v", err)
	}
	if len(state.Entities) != 1 || state.Entities[0].Name != "Westport" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestRebuildAndListSnapshots(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, _, err := server.handleCreateMarker(ctx, nil, CreateMarkerInput{WorldID: "w1", Title: "The Founding"})
	if err != nil {
		t.Fatalf("create marker: %v", err)
	}

	_, result, err := server.handleRebuildSnapshots(ctx, nil, RebuildSnapshotsInput{WorldID: "w1"})
	if err != nil {
		t.Fatalf("rebuild snapshots: %v", err)
	}
	if result.SnapshotCount != result.MarkerCount {
		t.Fatalf("expected full coverage, got %+v", result)
	}

	_, listed, err := server.handleListSnapshots(ctx, nil, ListSnapshotsInput{WorldID: "w1"})
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(listed.Snapshots) != 1 {
		t.Fatalf("unexpected snapshots: %+v", listed)
	}
}
