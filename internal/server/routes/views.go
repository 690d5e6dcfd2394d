package routes

import (
	"net/http"
	"time"

	"github.com/osintbuddy/backend/internal/hid"
	"github.com/osintbuddy/backend/internal/server/middleware"
	"github.com/osintbuddy/backend/pkg/apperror"
	pgdb "github.com/osintbuddy/backend/pkg/db/pgx"
	"github.com/osintbuddy/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 50
	maxPageSize     = 50
)

type graphView struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	IsFavorite  bool      `json:"is_favorite"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type entityView struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	IsFavorite  bool      `json:"is_favorite"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toGraphView(enc *hid.Encoder, g pgdb.Graph) (graphView, error) {
	id, err := enc.Encode(hid.Graph, g.ID)
	if err != nil {
		return graphView{}, err
	}
	return graphView{
		ID:          id,
		Label:       g.Label,
		Description: g.Description,
		IsFavorite:  g.IsFavorite,
		CreatedAt:   g.CreatedAt.Time,
		UpdatedAt:   g.UpdatedAt.Time,
	}, nil
}

func toGraphViews(enc *hid.Encoder, graphs []pgdb.Graph) ([]graphView, error) {
	out := make([]graphView, 0, len(graphs))
	for _, g := range graphs {
		v, err := toGraphView(enc, g)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func toEntityView(enc *hid.Encoder, e pgdb.Entity) (entityView, error) {
	id, err := enc.Encode(hid.Entity, e.ID)
	if err != nil {
		return entityView{}, err
	}
	return entityView{
		ID:          id,
		Label:       e.Label,
		Author:      e.Author,
		Description: e.Description,
		IsFavorite:  e.IsFavorite,
		CreatedAt:   e.CreatedAt.Time,
		UpdatedAt:   e.UpdatedAt.Time,
	}, nil
}

// page clamps pagination query values.
func page(skip, limit int32) (offset, size int32) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	return skip, min(limit, maxPageSize)
}

func writeError(c echo.Context, err error) error {
	status, body := apperror.ToHTTPError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("[Server] Request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	}
	return c.JSON(status, body)
}

func appContext(c echo.Context) *middleware.AppContext {
	return c.(*middleware.AppContext)
}
