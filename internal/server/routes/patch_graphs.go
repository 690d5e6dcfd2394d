package routes

import (
	"errors"
	"net/http"

	"github.com/osintbuddy/backend/internal/util"
	"github.com/osintbuddy/backend/pkg/apperror"
	pgdb "github.com/osintbuddy/backend/pkg/db/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

func EditGraphHandler(c echo.Context) error {
	type editGraphBody struct {
		Label       string `json:"label" validate:"required,max=256"`
		Description string `json:"description" validate:"max=4096"`
	}

	data := new(editGraphBody)
	if err := c.Bind(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}
	if err := c.Validate(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}

	cc := appContext(c)
	row, err := pgdb.New(cc.App.DBConn).UpdateGraph(c.Request().Context(), pgdb.UpdateGraphParams{
		ID:          cc.Graph.ID,
		Label:       util.SanitizePostgresText(data.Label),
		Description: util.SanitizePostgresText(data.Description),
	})
	if err != nil {
		return writeGraphRowError(c, err)
	}

	view, err := toGraphView(cc.App.HID, row)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return c.JSON(http.StatusOK, view)
}

func ToggleGraphFavoriteHandler(c echo.Context) error {
	cc := appContext(c)
	row, err := pgdb.New(cc.App.DBConn).ToggleGraphFavorite(c.Request().Context(), cc.Graph.ID)
	if err != nil {
		return writeGraphRowError(c, err)
	}

	view, err := toGraphView(cc.App.HID, row)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return c.JSON(http.StatusOK, view)
}

// writeGraphRowError handles a graph deleted between resolution and update.
func writeGraphRowError(c echo.Context, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return writeError(c, apperror.NewNotFound("graph", c.Param("hid")))
	}
	return writeError(c, apperror.ErrInternal.WithInternal(err))
}
