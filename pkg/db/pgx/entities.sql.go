// source: entities.sql

package pgx

import (
	"context"
)

const entityColumns = `id, label, author, description, source_key, owner_id, is_favorite, created_at, updated_at`

func scanEntity(row interface{ Scan(...any) error }) (Entity, error) {
	var i Entity
	err := row.Scan(
		&i.ID,
		&i.Label,
		&i.Author,
		&i.Description,
		&i.SourceKey,
		&i.OwnerID,
		&i.IsFavorite,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createEntity = `-- name: CreateEntity :one
INSERT INTO entities (label, author, description, source_key, owner_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + entityColumns

type CreateEntityParams struct {
	Label       string `json:"label"`
	Author      string `json:"author"`
	Description string `json:"description"`
	SourceKey   string `json:"source_key"`
	OwnerID     int64  `json:"owner_id"`
}

func (q *Queries) CreateEntity(ctx context.Context, arg CreateEntityParams) (Entity, error) {
	row := q.db.QueryRow(ctx, createEntity,
		arg.Label,
		arg.Author,
		arg.Description,
		arg.SourceKey,
		arg.OwnerID,
	)
	return scanEntity(row)
}

const getEntity = `-- name: GetEntity :one
SELECT ` + entityColumns + `
FROM entities
WHERE id = $1`

func (q *Queries) GetEntity(ctx context.Context, id int64) (Entity, error) {
	row := q.db.QueryRow(ctx, getEntity, id)
	return scanEntity(row)
}

const listEntities = `-- name: ListEntities :many
SELECT ` + entityColumns + `
FROM entities
WHERE is_favorite = $1
ORDER BY updated_at DESC, id DESC
LIMIT $2 OFFSET $3`

type ListEntitiesParams struct {
	IsFavorite bool  `json:"is_favorite"`
	Limit      int32 `json:"limit"`
	Offset     int32 `json:"offset"`
}

func (q *Queries) ListEntities(ctx context.Context, arg ListEntitiesParams) ([]Entity, error) {
	rows, err := q.db.Query(ctx, listEntities, arg.IsFavorite, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Entity{}
	for rows.Next() {
		i, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countEntities = `-- name: CountEntities :one
SELECT count(*) FROM entities
WHERE is_favorite = $1`

func (q *Queries) CountEntities(ctx context.Context, isFavorite bool) (int64, error) {
	row := q.db.QueryRow(ctx, countEntities, isFavorite)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateEntity = `-- name: UpdateEntity :one
UPDATE entities
SET label = $2, author = $3, description = $4, updated_at = now()
WHERE id = $1
RETURNING ` + entityColumns

type UpdateEntityParams struct {
	ID          int64  `json:"id"`
	Label       string `json:"label"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

func (q *Queries) UpdateEntity(ctx context.Context, arg UpdateEntityParams) (Entity, error) {
	row := q.db.QueryRow(ctx, updateEntity, arg.ID, arg.Label, arg.Author, arg.Description)
	return scanEntity(row)
}

const toggleEntityFavorite = `-- name: ToggleEntityFavorite :one
UPDATE entities
SET is_favorite = NOT is_favorite
WHERE id = $1
RETURNING ` + entityColumns

func (q *Queries) ToggleEntityFavorite(ctx context.Context, id int64) (Entity, error) {
	row := q.db.QueryRow(ctx, toggleEntityFavorite, id)
	return scanEntity(row)
}

const deleteEntity = `-- name: DeleteEntity :one
DELETE FROM entities
WHERE id = $1
RETURNING ` + entityColumns

func (q *Queries) DeleteEntity(ctx context.Context, id int64) (Entity, error) {
	row := q.db.QueryRow(ctx, deleteEntity, id)
	return scanEntity(row)
}
