package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS entities (
		id             TEXT PRIMARY KEY,
		world_id       TEXT NOT NULL,
		name           TEXT NOT NULL,
		type           TEXT NOT NULL,
		subtype        TEXT,
		aliases        TEXT DEFAULT '[]',
		context        TEXT,
		summary        TEXT,
		tags           TEXT DEFAULT '[]',
		image_url      TEXT,
		status         TEXT NOT NULL DEFAULT 'active',
		source         TEXT NOT NULL DEFAULT 'user',
		source_note_id TEXT,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relations (
		id               TEXT PRIMARY KEY,
		world_id         TEXT NOT NULL,
		source_entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		target_entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		type             TEXT NOT NULL,
		context          TEXT,
		weight           REAL NOT NULL DEFAULT 0.5,
		source           TEXT NOT NULL DEFAULT 'user',
		source_note_id   TEXT,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS timeline_markers (
		id               TEXT PRIMARY KEY,
		world_id         TEXT NOT NULL,
		title            TEXT NOT NULL,
		summary          TEXT,
		marker_kind      TEXT NOT NULL DEFAULT 'explicit',
		placement_status TEXT NOT NULL DEFAULT 'placed',
		date_label       TEXT,
		date_sort_value  REAL,
		sort_key         REAL NOT NULL,
		source           TEXT NOT NULL DEFAULT 'user',
		source_note_id   TEXT,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS timeline_operations (
		id          TEXT PRIMARY KEY,
		world_id    TEXT NOT NULL,
		marker_id   TEXT NOT NULL REFERENCES timeline_markers(id) ON DELETE CASCADE,
		op_type     TEXT NOT NULL,
		target_kind TEXT NOT NULL,
		target_id   TEXT,
		payload     TEXT DEFAULT '{}',
		order_index INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS timeline_snapshots (
		id                   TEXT PRIMARY KEY,
		world_id             TEXT NOT NULL,
		marker_id            TEXT NOT NULL REFERENCES timeline_markers(id) ON DELETE CASCADE,
		state_json           TEXT DEFAULT '{}',
		state_hash           TEXT,
		applied_marker_count INTEGER NOT NULL DEFAULT 0,
		entity_count         INTEGER NOT NULL DEFAULT 0,
		relation_count       INTEGER NOT NULL DEFAULT 0,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL,
		CONSTRAINT uq_snapshot_world_marker UNIQUE (world_id, marker_id)
	);

	CREATE INDEX IF NOT EXISTS idx_entities_world ON entities (world_id);
	CREATE INDEX IF NOT EXISTS idx_entities_world_name ON entities (world_id, name);
	CREATE INDEX IF NOT EXISTS idx_relations_world ON relations (world_id);
	CREATE INDEX IF NOT EXISTS idx_relations_src ON relations (source_entity_id);
	CREATE INDEX IF NOT EXISTS idx_relations_dst ON relations (target_entity_id);
	CREATE INDEX IF NOT EXISTS idx_markers_world_sort ON timeline_markers (world_id, sort_key);
	CREATE INDEX IF NOT EXISTS idx_operations_world_marker ON timeline_operations (world_id, marker_id);
	CREATE INDEX IF NOT EXISTS idx_operations_world_target ON timeline_operations (world_id, target_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_world ON timeline_snapshots (world_id);
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	statements := splitStatements(ddl)
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}
