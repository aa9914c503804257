package postgres

import (
	"context"
	"fmt"

	"worldline/internal/store"
)

const markerColumns = `id, world_id, title, COALESCE(summary, ''), marker_kind, placement_status,
	COALESCE(date_label, ''), date_sort_value, sort_key, source, COALESCE(source_note_id, ''), created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMarker(sc scanner) (*store.Marker, error) {
	var m store.Marker
	err := sc.Scan(
		&m.ID,
		&m.WorldID,
		&m.Title,
		&m.Summary,
		&m.MarkerKind,
		&m.PlacementStatus,
		&m.DateLabel,
		&m.DateSortValue,
		&m.SortKey,
		&m.Source,
		&m.SourceNoteID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning marker: %w", err)
	}
	return &m, nil
}

func (c *Client) InsertMarker(ctx context.Context, m *store.Marker) error {
	query := `
INSERT INTO timeline_markers
	(id, world_id, title, summary, marker_kind, placement_status, date_label, date_sort_value, sort_key, source, source_note_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

	_, err := c.pool.Exec(ctx, query,
		m.ID,
		m.WorldID,
		m.Title,
		m.Summary,
		m.MarkerKind,
		m.PlacementStatus,
		m.DateLabel,
		m.DateSortValue,
		m.SortKey,
		m.Source,
		m.SourceNoteID,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting marker: %w", err)
	}
	return nil
}

func (c *Client) GetMarker(ctx context.Context, worldID, markerID string) (*store.Marker, error) {
	query := `SELECT ` + markerColumns + ` FROM timeline_markers WHERE world_id = $1 AND id = $2`

	rows, err := c.pool.Query(ctx, query, worldID, markerID)
	if err != nil {
		return nil, fmt.Errorf("getting marker: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting marker: %w", err)
		}
		return nil, nil
	}
	return scanMarker(rows)
}

func (c *Client) ListMarkers(ctx context.Context, worldID string) ([]store.Marker, error) {
	query := `SELECT ` + markerColumns + `
FROM timeline_markers
WHERE world_id = $1
ORDER BY sort_key ASC, created_at ASC, id ASC`

	rows, err := c.pool.Query(ctx, query, worldID)
	if err != nil {
		return nil, fmt.Errorf("listing markers: %w", err)
	}
	defer rows.Close()

	markers := []store.Marker{}
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, err
		}
		markers = append(markers, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating markers: %w", err)
	}
	return markers, nil
}

func (c *Client) UpdateMarker(ctx context.Context, m *store.Marker) (bool, error) {
	query := `
UPDATE timeline_markers
SET title = $1, summary = $2, marker_kind = $3, placement_status = $4, date_label = $5,
	date_sort_value = $6, sort_key = $7, source = $8, source_note_id = $9, updated_at = $10
WHERE world_id = $11 AND id = $12
`

	tag, err := c.pool.Exec(ctx, query,
		m.Title,
		m.Summary,
		m.MarkerKind,
		m.PlacementStatus,
		m.DateLabel,
		m.DateSortValue,
		m.SortKey,
		m.Source,
		m.SourceNoteID,
		m.UpdatedAt,
		m.WorldID,
		m.ID,
	)
	if err != nil {
		return false, fmt.Errorf("updating marker: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (c *Client) DeleteMarker(ctx context.Context, worldID, markerID string) (bool, error) {
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM timeline_markers WHERE world_id = $1 AND id = $2`,
		worldID, markerID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting marker: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (c *Client) NextSortKey(ctx context.Context, worldID string) (float64, error) {
	var next float64
	err := c.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(sort_key), 0) + 1 FROM timeline_markers WHERE world_id = $1`,
		worldID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("computing next sort key: %w", err)
	}
	return next, nil
}

func (c *Client) CountMarkersThrough(ctx context.Context, worldID string, maxSortKey *float64) (int, error) {
	query := `SELECT COUNT(*) FROM timeline_markers WHERE world_id = $1 AND ($2::double precision IS NULL OR sort_key <= $2)`

	var count int
	if err := c.pool.QueryRow(ctx, query, worldID, maxSortKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting markers: %w", err)
	}
	return count, nil
}
