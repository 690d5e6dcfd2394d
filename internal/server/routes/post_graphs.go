package routes

import (
	"net/http"

	"github.com/osintbuddy/backend/internal/util"
	"github.com/osintbuddy/backend/pkg/apperror"
	pgdb "github.com/osintbuddy/backend/pkg/db/pgx"
	"github.com/osintbuddy/backend/pkg/logger"
	"github.com/osintbuddy/backend/pkg/query"
	pgstore "github.com/osintbuddy/backend/pkg/store/pgx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
)

// CreateGraphHandler inserts the graph row and creates its AGE graph in the
// same transaction.
func CreateGraphHandler(c echo.Context) error {
	type createGraphBody struct {
		Label       string `json:"label" validate:"required,max=256"`
		Description string `json:"description" validate:"max=4096"`
	}

	data := new(createGraphBody)
	if err := c.Bind(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}
	if err := c.Validate(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}

	data.Label = util.SanitizePostgresText(data.Label)
	data.Description = util.SanitizePostgresText(data.Description)

	cc := appContext(c)
	ctx := c.Request().Context()

	tx, err := cc.App.DBConn.Begin(ctx)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	defer tx.Rollback(ctx)

	id := uuid.New()
	row, err := pgdb.New(tx).CreateGraph(ctx, pgdb.CreateGraphParams{
		Uuid:        pgtype.UUID{Bytes: id, Valid: true},
		Label:       data.Label,
		Description: data.Description,
		OwnerID:     cc.User.UserID,
	})
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}

	name := query.GraphName(id)
	if err := pgstore.NewGraphDBStorageWithConnection(tx).CreateGraph(ctx, name); err != nil {
		return writeError(c, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	logger.Info("[Server] Graph created", "id", row.ID, "graph", name, "user", cc.User.UserID)

	view, err := toGraphView(cc.App.HID, row)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return c.JSON(http.StatusCreated, view)
}
