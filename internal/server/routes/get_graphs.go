package routes

import (
	"net/http"

	"github.com/osintbuddy/backend/internal/server/middleware"
	"github.com/osintbuddy/backend/pkg/apperror"
	pgdb "github.com/osintbuddy/backend/pkg/db/pgx"

	"github.com/labstack/echo/v4"
)

func GetGraphsHandler(c echo.Context) error {
	type getGraphsParams struct {
		Skip          int32 `query:"skip" validate:"gte=0"`
		Limit         int32 `query:"limit" validate:"gte=0"`
		FavoriteSkip  int32 `query:"favorite_skip" validate:"gte=0"`
		FavoriteLimit int32 `query:"favorite_limit" validate:"gte=0"`
	}

	type getGraphsResponse struct {
		Graphs         []graphView `json:"graphs"`
		Count          int64       `json:"count"`
		FavoriteGraphs []graphView `json:"favorite_graphs"`
		FavoriteCount  int64       `json:"favorite_count"`
	}

	data := new(getGraphsParams)
	if err := c.Bind(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request params"))
	}
	if err := c.Validate(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request params"))
	}

	app := appContext(c).App
	ctx := c.Request().Context()
	q := pgdb.New(app.DBConn)

	offset, limit := page(data.Skip, data.Limit)
	favOffset, favLimit := page(data.FavoriteSkip, data.FavoriteLimit)

	graphs, err := q.ListGraphs(ctx, pgdb.ListGraphsParams{IsFavorite: false, Limit: limit, Offset: offset})
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	count, err := q.CountGraphs(ctx, false)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	favorites, err := q.ListGraphs(ctx, pgdb.ListGraphsParams{IsFavorite: true, Limit: favLimit, Offset: favOffset})
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	favCount, err := q.CountGraphs(ctx, true)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}

	res := getGraphsResponse{Count: count, FavoriteCount: favCount}
	if res.Graphs, err = toGraphViews(app.HID, graphs); err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	if res.FavoriteGraphs, err = toGraphViews(app.HID, favorites); err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return c.JSON(http.StatusOK, res)
}

func GetFavoriteGraphsHandler(c echo.Context) error {
	type getFavoritesParams struct {
		Skip       int32 `query:"skip" validate:"gte=0"`
		Limit      int32 `query:"limit" validate:"gte=0"`
		IsFavorite bool  `query:"is_favorite"`
	}

	type getFavoritesResponse struct {
		Graphs []graphView `json:"graphs"`
		Count  int64       `json:"count"`
	}

	data := &getFavoritesParams{IsFavorite: true}
	if err := c.Bind(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request params"))
	}
	if err := c.Validate(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request params"))
	}

	app := appContext(c).App
	ctx := c.Request().Context()
	q := pgdb.New(app.DBConn)
	offset, limit := page(data.Skip, data.Limit)

	graphs, err := q.ListGraphs(ctx, pgdb.ListGraphsParams{IsFavorite: data.IsFavorite, Limit: limit, Offset: offset})
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	count, err := q.CountGraphs(ctx, data.IsFavorite)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}

	views, err := toGraphViews(app.HID, graphs)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return c.JSON(http.StatusOK, getFavoritesResponse{Graphs: views, Count: count})
}

// GetGraphHandler returns the graph resolved by GraphMiddleware.
func GetGraphHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	view, err := toGraphView(cc.App.HID, *cc.Graph)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return c.JSON(http.StatusOK, view)
}

func GetGraphStatsHandler(c echo.Context) error {
	cc := appContext(c)
	stats, err := cc.App.Graphs.Stats(c.Request().Context(), middleware.GraphName(cc.Graph))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
