package pgx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/common"
	"github.com/osintbuddy/backend/pkg/query"

	"github.com/jackc/pgx/v5/pgconn"
)

// AGE reports a missing graph as invalid_schema_name.
const undefinedGraphCode = "3F000"

func (s *GraphDBStorage) CreateGraph(ctx context.Context, graph string) error {
	if err := query.ValidateGraphName(graph); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if _, err := s.conn.Exec(ctx, "SELECT ag_catalog.create_graph($1::name)", graph); err != nil {
		return apperror.NewQuery(fmt.Errorf("create graph %s: %w", graph, err))
	}
	return nil
}

func (s *GraphDBStorage) DropGraph(ctx context.Context, graph string) error {
	if err := query.ValidateGraphName(graph); err != nil {
		return apperror.ErrBadRequest.WithInternal(err)
	}
	if _, err := s.conn.Exec(ctx, "SELECT ag_catalog.drop_graph($1::name, true)", graph); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedGraphCode {
			return apperror.NewNotFound("graph", graph)
		}
		return apperror.NewQuery(fmt.Errorf("drop graph %s: %w", graph, err))
	}
	return nil
}

// ReadGraph loads every vertex and edge of the graph, ordered by id.
func (s *GraphDBStorage) ReadGraph(ctx context.Context, graph string) ([]common.Vertex, []common.Edge, error) {
	var vertices []common.Vertex
	var edges []common.Edge

	err := s.WithGraphTransaction(ctx, func(ctx context.Context, tx *GraphTx) error {
		rows, err := tx.Query(ctx, query.MatchAllVertices(graph))
		if err != nil {
			return err
		}
		vertices = make([]common.Vertex, 0, len(rows))
		for _, row := range rows {
			v, err := query.DecodeVertex(row[0])
			if err != nil {
				return apperror.NewQuery(err)
			}
			vertices = append(vertices, v)
		}

		rows, err = tx.Query(ctx, query.MatchAllEdges(graph))
		if err != nil {
			return err
		}
		edges = make([]common.Edge, 0, len(rows))
		for _, row := range rows {
			e, err := query.DecodeEdge(row[0])
			if err != nil {
				return apperror.NewQuery(err)
			}
			edges = append(edges, e)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(vertices, func(i, j int) bool { return vertices[i].ID < vertices[j].ID })
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return vertices, edges, nil
}

func (s *GraphDBStorage) GetVertex(ctx context.Context, graph string, id int64) (common.Vertex, error) {
	var v common.Vertex
	err := s.WithGraphTransaction(ctx, func(ctx context.Context, tx *GraphTx) error {
		var err error
		v, err = matchVertex(ctx, tx, graph, id)
		return err
	})
	return v, err
}

// VertexExists reports whether the graph holds a vertex with the id.
func (s *GraphDBStorage) VertexExists(ctx context.Context, graph string, id int64) (bool, error) {
	var exists bool
	err := s.WithGraphTransaction(ctx, func(ctx context.Context, tx *GraphTx) error {
		rows, err := tx.Query(ctx, query.MatchByID(graph, id))
		if err != nil {
			return err
		}
		exists = len(rows) > 0
		return nil
	})
	return exists, err
}

func matchVertex(ctx context.Context, tx *GraphTx, graph string, id int64) (common.Vertex, error) {
	rows, err := tx.Query(ctx, query.MatchByID(graph, id))
	if err != nil {
		return common.Vertex{}, err
	}
	if len(rows) == 0 {
		return common.Vertex{}, apperror.NewNotFound("vertex", strconv.FormatInt(id, 10))
	}
	v, err := query.DecodeVertex(rows[0][0])
	if err != nil {
		return common.Vertex{}, apperror.NewQuery(err)
	}
	return v, nil
}

func (s *GraphDBStorage) CreateVertex(ctx context.Context, graph, label string, props common.Properties) (common.Vertex, error) {
	stmt, err := query.CreateVertex(graph, label, props)
	if err != nil {
		return common.Vertex{}, apperror.ErrBadRequest.WithInternal(err)
	}

	var v common.Vertex
	err = s.WithGraphTransaction(ctx, func(ctx context.Context, tx *GraphTx) error {
		rows, err := tx.Query(ctx, stmt)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return apperror.NewQuery(fmt.Errorf("create vertex returned %d rows", len(rows)))
		}
		v, err = query.DecodeVertex(rows[0][0])
		if err != nil {
			return apperror.NewQuery(err)
		}
		return nil
	})
	return v, err
}

// SetProperties sets every property of props on the vertex in one
// transaction, in key order. A missing vertex is a not found error.
func (s *GraphDBStorage) SetProperties(ctx context.Context, graph string, id int64, props common.Properties) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stmts := make([]query.Statement, 0, len(keys))
	for _, k := range keys {
		stmt, err := query.SetProperty(graph, id, k, props[k])
		if err != nil {
			return apperror.ErrBadRequest.WithInternal(err)
		}
		stmts = append(stmts, stmt)
	}

	return s.WithGraphTransaction(ctx, func(ctx context.Context, tx *GraphTx) error {
		if _, err := matchVertex(ctx, tx, graph, id); err != nil {
			return err
		}
		for _, stmt := range stmts {
			if err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveVertex deletes a vertex. A vertex with edges is detach-deleted so
// its edges go with it; other vertices are never touched.
func (s *GraphDBStorage) RemoveVertex(ctx context.Context, graph string, id int64) (int, error) {
	removed := 0
	err := s.WithGraphTransaction(ctx, func(ctx context.Context, tx *GraphTx) error {
		if _, err := matchVertex(ctx, tx, graph, id); err != nil {
			return err
		}
		out, err := tx.Query(ctx, query.MatchOutEdges(graph, id))
		if err != nil {
			return err
		}
		in, err := tx.Query(ctx, query.MatchInEdges(graph, id))
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(out)+len(in))
		for _, row := range append(out, in...) {
			seen[row[0]] = struct{}{}
		}
		removed = len(seen)
		if removed > 0 {
			return tx.Exec(ctx, query.DetachDeleteVertex(graph, id))
		}
		return tx.Exec(ctx, query.DeleteVertex(graph, id))
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
