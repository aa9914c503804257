package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"worldline/internal/store"
)

const operationOrder = `m.sort_key ASC, m.created_at ASC, m.id ASC, o.order_index ASC, o.created_at ASC, o.id ASC`

const operationColumns = `id, world_id, marker_id, op_type, target_kind, COALESCE(target_id, ''), payload, order_index, created_at, updated_at`

func scanOperation(sc scanner) (*store.Operation, error) {
	var o store.Operation
	var payloadBytes []byte
	err := sc.Scan(
		&o.ID,
		&o.WorldID,
		&o.MarkerID,
		&o.OpType,
		&o.TargetKind,
		&o.TargetID,
		&payloadBytes,
		&o.OrderIndex,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning operation: %w", err)
	}
	if len(payloadBytes) > 0 {
		if err := json.Unmarshal(payloadBytes, &o.Payload); err != nil {
			return nil, fmt.Errorf("unmarshaling payload: %w", err)
		}
	}
	if o.Payload == nil {
		o.Payload = map[string]any{}
	}
	return &o, nil
}

func (c *Client) InsertOperation(ctx context.Context, o *store.Operation) error {
	payloadJSON, err := json.Marshal(o.Payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	query := `
INSERT INTO timeline_operations
	(id, world_id, marker_id, op_type, target_kind, target_id, payload, order_index, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

	_, err = c.pool.Exec(ctx, query,
		o.ID,
		o.WorldID,
		o.MarkerID,
		o.OpType,
		o.TargetKind,
		o.TargetID,
		payloadJSON,
		o.OrderIndex,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting operation: %w", err)
	}
	return nil
}

func (c *Client) GetOperation(ctx context.Context, worldID, markerID, operationID string) (*store.Operation, error) {
	query := `SELECT ` + operationColumns + `
FROM timeline_operations
WHERE world_id = $1 AND marker_id = $2 AND id = $3`

	rows, err := c.pool.Query(ctx, query, worldID, markerID, operationID)
	if err != nil {
		return nil, fmt.Errorf("getting operation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting operation: %w", err)
		}
		return nil, nil
	}
	return scanOperation(rows)
}

func (c *Client) ListOperations(ctx context.Context, worldID, markerID string) ([]store.Operation, error) {
	query := `SELECT ` + operationColumns + `
FROM timeline_operations
WHERE world_id = $1 AND marker_id = $2
ORDER BY order_index ASC, created_at ASC, id ASC`

	rows, err := c.pool.Query(ctx, query, worldID, markerID)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	operations := []store.Operation{}
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		operations = append(operations, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return operations, nil
}

func (c *Client) ListOperationsThrough(ctx context.Context, worldID string, maxSortKey *float64) ([]store.Operation, error) {
	query := `
SELECT o.id, o.world_id, o.marker_id, o.op_type, o.target_kind, COALESCE(o.target_id, ''), o.payload, o.order_index, o.created_at, o.updated_at
FROM timeline_operations o
JOIN timeline_markers m ON m.id = o.marker_id
WHERE o.world_id = $1 AND ($2::double precision IS NULL OR m.sort_key <= $2)
ORDER BY ` + operationOrder

	rows, err := c.pool.Query(ctx, query, worldID, maxSortKey)
	if err != nil {
		return nil, fmt.Errorf("listing operations through marker: %w", err)
	}
	defer rows.Close()

	operations := []store.Operation{}
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		operations = append(operations, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return operations, nil
}

func (c *Client) ListOperationTargets(ctx context.Context, worldID string) ([]store.OperationTarget, error) {
	query := `
SELECT o.op_type, o.target_kind, o.target_id, m.sort_key
FROM timeline_operations o
JOIN timeline_markers m ON m.id = o.marker_id
WHERE o.world_id = $1 AND o.target_id IS NOT NULL AND o.target_id != ''
ORDER BY ` + operationOrder

	rows, err := c.pool.Query(ctx, query, worldID)
	if err != nil {
		return nil, fmt.Errorf("listing operation targets: %w", err)
	}
	defer rows.Close()

	targets := []store.OperationTarget{}
	for rows.Next() {
		var t store.OperationTarget
		if err := rows.Scan(&t.OpType, &t.TargetKind, &t.TargetID, &t.SortKey); err != nil {
			return nil, fmt.Errorf("scanning operation target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operation targets: %w", err)
	}
	return targets, nil
}

func (c *Client) UpdateOperation(ctx context.Context, o *store.Operation) (bool, error) {
	payloadJSON, err := json.Marshal(o.Payload)
	if err != nil {
		return false, fmt.Errorf("marshaling payload: %w", err)
	}

	query := `
UPDATE timeline_operations
SET op_type = $1, target_kind = $2, target_id = $3, payload = $4, order_index = $5, updated_at = $6
WHERE world_id = $7 AND marker_id = $8 AND id = $9
`

	tag, err := c.pool.Exec(ctx, query,
		o.OpType,
		o.TargetKind,
		o.TargetID,
		payloadJSON,
		o.OrderIndex,
		o.UpdatedAt,
		o.WorldID,
		o.MarkerID,
		o.ID,
	)
	if err != nil {
		return false, fmt.Errorf("updating operation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (c *Client) DeleteOperation(ctx context.Context, worldID, markerID, operationID string) (bool, error) {
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM timeline_operations WHERE world_id = $1 AND marker_id = $2 AND id = $3`,
		worldID, markerID, operationID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting operation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
