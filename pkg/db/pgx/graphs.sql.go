// source: graphs.sql

package pgx

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const graphColumns = `id, uuid, label, description, owner_id, is_favorite, state, created_at, updated_at`

func scanGraph(row interface{ Scan(...any) error }) (Graph, error) {
	var i Graph
	err := row.Scan(
		&i.ID,
		&i.Uuid,
		&i.Label,
		&i.Description,
		&i.OwnerID,
		&i.IsFavorite,
		&i.State,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createGraph = `-- name: CreateGraph :one
INSERT INTO graphs (uuid, label, description, owner_id)
VALUES ($1, $2, $3, $4)
RETURNING ` + graphColumns

type CreateGraphParams struct {
	Uuid        pgtype.UUID `json:"uuid"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	OwnerID     int64       `json:"owner_id"`
}

func (q *Queries) CreateGraph(ctx context.Context, arg CreateGraphParams) (Graph, error) {
	row := q.db.QueryRow(ctx, createGraph,
		arg.Uuid,
		arg.Label,
		arg.Description,
		arg.OwnerID,
	)
	return scanGraph(row)
}

const getGraph = `-- name: GetGraph :one
SELECT ` + graphColumns + `
FROM graphs
WHERE id = $1 AND state <> 'deleting'`

func (q *Queries) GetGraph(ctx context.Context, id int64) (Graph, error) {
	row := q.db.QueryRow(ctx, getGraph, id)
	return scanGraph(row)
}

const getGraphForDelete = `-- name: GetGraphForDelete :one
SELECT ` + graphColumns + `
FROM graphs
WHERE id = $1`

func (q *Queries) GetGraphForDelete(ctx context.Context, id int64) (Graph, error) {
	row := q.db.QueryRow(ctx, getGraphForDelete, id)
	return scanGraph(row)
}

const listGraphs = `-- name: ListGraphs :many
SELECT ` + graphColumns + `
FROM graphs
WHERE state <> 'deleting' AND is_favorite = $1
ORDER BY updated_at DESC, id DESC
LIMIT $2 OFFSET $3`

type ListGraphsParams struct {
	IsFavorite bool  `json:"is_favorite"`
	Limit      int32 `json:"limit"`
	Offset     int32 `json:"offset"`
}

func (q *Queries) ListGraphs(ctx context.Context, arg ListGraphsParams) ([]Graph, error) {
	rows, err := q.db.Query(ctx, listGraphs, arg.IsFavorite, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Graph{}
	for rows.Next() {
		i, err := scanGraph(rows)
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

const countGraphs = `-- name: CountGraphs :one
SELECT count(*) FROM graphs
WHERE state <> 'deleting' AND is_favorite = $1`

func (q *Queries) CountGraphs(ctx context.Context, isFavorite bool) (int64, error) {
	row := q.db.QueryRow(ctx, countGraphs, isFavorite)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateGraph = `-- name: UpdateGraph :one
UPDATE graphs
SET label = $2, description = $3, updated_at = now()
WHERE id = $1 AND state <> 'deleting'
RETURNING ` + graphColumns

type UpdateGraphParams struct {
	ID          int64  `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

func (q *Queries) UpdateGraph(ctx context.Context, arg UpdateGraphParams) (Graph, error) {
	row := q.db.QueryRow(ctx, updateGraph, arg.ID, arg.Label, arg.Description)
	return scanGraph(row)
}

const toggleGraphFavorite = `-- name: ToggleGraphFavorite :one
UPDATE graphs
SET is_favorite = NOT is_favorite
WHERE id = $1 AND state <> 'deleting'
RETURNING ` + graphColumns

func (q *Queries) ToggleGraphFavorite(ctx context.Context, id int64) (Graph, error) {
	row := q.db.QueryRow(ctx, toggleGraphFavorite, id)
	return scanGraph(row)
}

const markGraphDeleting = `-- name: MarkGraphDeleting :one
UPDATE graphs
SET state = 'deleting', updated_at = now()
WHERE id = $1
RETURNING ` + graphColumns

func (q *Queries) MarkGraphDeleting(ctx context.Context, id int64) (Graph, error) {
	row := q.db.QueryRow(ctx, markGraphDeleting, id)
	return scanGraph(row)
}

const deleteGraph = `-- name: DeleteGraph :exec
DELETE FROM graphs
WHERE id = $1`

func (q *Queries) DeleteGraph(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, deleteGraph, id)
	return err
}
