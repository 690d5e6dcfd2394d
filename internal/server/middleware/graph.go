package middleware

import (
	"errors"

	"github.com/osintbuddy/backend/internal/hid"
	"github.com/osintbuddy/backend/pkg/apperror"
	pgdb "github.com/osintbuddy/backend/pkg/db/pgx"
	"github.com/osintbuddy/backend/pkg/logger"
	"github.com/osintbuddy/backend/pkg/query"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

// ResolveGraph loads the graph named by the :hid path parameter. Graphs
// marked for deletion do not resolve.
func ResolveGraph(c echo.Context) (*pgdb.Graph, error) {
	cc := c.(*AppContext)
	id, err := cc.App.HID.Decode(hid.Graph, c.Param("hid"))
	if err != nil {
		return nil, apperror.NewNotFound("graph", c.Param("hid"))
	}

	graph, err := pgdb.New(cc.App.DBConn).GetGraph(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("graph", c.Param("hid"))
		}
		logger.Error("[Server] Failed to load graph", "id", id, "err", err)
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return &graph, nil
}

// GraphMiddleware resolves the graph of a /graphs/:hid route.
func GraphMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		graph, err := ResolveGraph(c)
		if err != nil {
			status, body := apperror.ToHTTPError(err)
			return c.JSON(status, body)
		}
		c.(*AppContext).Graph = graph
		return next(c)
	}
}

// GraphName is the AGE graph of a graph row.
func GraphName(g *pgdb.Graph) string {
	return query.GraphName(uuid.UUID(g.Uuid.Bytes))
}
