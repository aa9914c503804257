package sqlite

import (
	"context"
	"fmt"

	"worldline/internal/store"
)

const snapshotColumns = `id, world_id, marker_id, state_json, COALESCE(state_hash, ''), applied_marker_count, entity_count, relation_count, created_at, updated_at`

func scanSnapshot(sc scanner) (*store.Snapshot, error) {
	var s store.Snapshot
	err := sc.Scan(
		&s.ID,
		&s.WorldID,
		&s.MarkerID,
		&s.StateJSON,
		&s.StateHash,
		&s.AppliedMarkerCount,
		&s.EntityCount,
		&s.RelationCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}
	return &s, nil
}

func (c *Client) ListSnapshots(ctx context.Context, worldID string) ([]store.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + `
	FROM timeline_snapshots
	WHERE world_id = ?
	ORDER BY updated_at DESC, created_at DESC`

	rows, err := c.db.QueryContext(ctx, query, worldID)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []store.Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snapshots, nil
}

func (c *Client) GetSnapshot(ctx context.Context, worldID, markerID string) (*store.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + `
	FROM timeline_snapshots
	WHERE world_id = ? AND marker_id = ?`

	rows, err := c.db.QueryContext(ctx, query, worldID, markerID)
	if err != nil {
		return nil, fmt.Errorf("getting snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting snapshot: %w", err)
		}
		return nil, nil
	}
	return scanSnapshot(rows)
}

func (c *Client) UpsertSnapshot(ctx context.Context, s *store.Snapshot) error {
	query := `
	INSERT INTO timeline_snapshots
		(id, world_id, marker_id, state_json, state_hash, applied_marker_count, entity_count, relation_count, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (world_id, marker_id) DO UPDATE SET
		state_json = excluded.state_json,
		state_hash = excluded.state_hash,
		applied_marker_count = excluded.applied_marker_count,
		entity_count = excluded.entity_count,
		relation_count = excluded.relation_count,
		updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(ctx, query,
		s.ID,
		s.WorldID,
		s.MarkerID,
		s.StateJSON,
		s.StateHash,
		s.AppliedMarkerCount,
		s.EntityCount,
		s.RelationCount,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting snapshot: %w", err)
	}
	return nil
}

func (c *Client) DeleteSnapshots(ctx context.Context, worldID string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM timeline_snapshots WHERE world_id = ?`, worldID,
	); err != nil {
		return fmt.Errorf("deleting snapshots: %w", err)
	}
	return nil
}

func (c *Client) NearestSnapshotMarker(ctx context.Context, worldID string, maxSortKey *float64) (string, error) {
	query := `
	SELECT s.marker_id
	FROM timeline_snapshots s
	JOIN timeline_markers m ON m.id = s.marker_id
	WHERE s.world_id = ?`
	args := []any{worldID}
	if maxSortKey != nil {
		query += ` AND m.sort_key <= ?`
		args = append(args, *maxSortKey)
	}
	query += ` ORDER BY m.sort_key DESC, s.updated_at DESC LIMIT 1`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("finding nearest snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("finding nearest snapshot: %w", err)
		}
		return "", nil
	}

	var markerID string
	if err := rows.Scan(&markerID); err != nil {
		return "", fmt.Errorf("scanning nearest snapshot: %w", err)
	}
	return markerID, nil
}
