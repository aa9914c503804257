package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"worldline/internal/store"
)

const entityColumns = `id, world_id, name, type, COALESCE(subtype, ''), aliases, COALESCE(context, ''),
	COALESCE(summary, ''), tags, COALESCE(image_url, ''), status, source, COALESCE(source_note_id, ''), created_at, updated_at`

func (c *Client) ListEntities(ctx context.Context, worldID string) ([]store.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE world_id = $1 ORDER BY name ASC`

	rows, err := c.pool.Query(ctx, query, worldID)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	entities := []store.Entity{}
	for rows.Next() {
		var e store.Entity
		var aliasesBytes, tagsBytes []byte
		err := rows.Scan(
			&e.ID,
			&e.WorldID,
			&e.Name,
			&e.Type,
			&e.Subtype,
			&aliasesBytes,
			&e.Context,
			&e.Summary,
			&tagsBytes,
			&e.ImageURL,
			&e.Status,
			&e.Source,
			&e.SourceNoteID,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		if e.Aliases, err = unmarshalStrings(aliasesBytes); err != nil {
			return nil, fmt.Errorf("unmarshaling aliases: %w", err)
		}
		if e.Tags, err = unmarshalStrings(tagsBytes); err != nil {
			return nil, fmt.Errorf("unmarshaling tags: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

const relationColumns = `id, world_id, source_entity_id, target_entity_id, type, COALESCE(context, ''),
	weight, source, COALESCE(source_note_id, ''), created_at, updated_at`

func (c *Client) ListRelations(ctx context.Context, worldID string) ([]store.Relation, error) {
	query := `SELECT ` + relationColumns + ` FROM relations WHERE world_id = $1 ORDER BY created_at ASC`

	rows, err := c.pool.Query(ctx, query, worldID)
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}
	defer rows.Close()

	relations := []store.Relation{}
	for rows.Next() {
		var r store.Relation
		err := rows.Scan(
			&r.ID,
			&r.WorldID,
			&r.SourceEntityID,
			&r.TargetEntityID,
			&r.Type,
			&r.Context,
			&r.Weight,
			&r.Source,
			&r.SourceNoteID,
			&r.CreatedAt,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		relations = append(relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relations: %w", err)
	}
	return relations, nil
}

func (c *Client) UpsertEntity(ctx context.Context, e *store.Entity) error {
	aliasesJSON, err := json.Marshal(emptyIfNil(e.Aliases))
	if err != nil {
		return fmt.Errorf("marshaling aliases: %w", err)
	}
	tagsJSON, err := json.Marshal(emptyIfNil(e.Tags))
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	query := `
INSERT INTO entities (id, world_id, name, type, subtype, aliases, context, summary, tags, image_url, status, source, source_note_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	type = EXCLUDED.type,
	subtype = EXCLUDED.subtype,
	aliases = EXCLUDED.aliases,
	context = EXCLUDED.context,
	summary = EXCLUDED.summary,
	tags = EXCLUDED.tags,
	image_url = EXCLUDED.image_url,
	status = EXCLUDED.status,
	source = EXCLUDED.source,
	source_note_id = EXCLUDED.source_note_id,
	updated_at = EXCLUDED.updated_at
`

	_, err = c.pool.Exec(ctx, query,
		e.ID,
		e.WorldID,
		e.Name,
		e.Type,
		e.Subtype,
		aliasesJSON,
		e.Context,
		e.Summary,
		tagsJSON,
		e.ImageURL,
		e.Status,
		e.Source,
		e.SourceNoteID,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting entity: %w", err)
	}
	return nil
}

func (c *Client) UpsertRelation(ctx context.Context, r *store.Relation) error {
	query := `
INSERT INTO relations (id, world_id, source_entity_id, target_entity_id, type, context, weight, source, source_note_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	source_entity_id = EXCLUDED.source_entity_id,
	target_entity_id = EXCLUDED.target_entity_id,
	type = EXCLUDED.type,
	context = EXCLUDED.context,
	weight = EXCLUDED.weight,
	source = EXCLUDED.source,
	source_note_id = EXCLUDED.source_note_id,
	updated_at = EXCLUDED.updated_at
`

	_, err := c.pool.Exec(ctx, query,
		r.ID,
		r.WorldID,
		r.SourceEntityID,
		r.TargetEntityID,
		r.Type,
		r.Context,
		r.Weight,
		r.Source,
		r.SourceNoteID,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting relation: %w", err)
	}
	return nil
}

func unmarshalStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
