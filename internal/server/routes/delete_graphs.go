package routes

import (
	"encoding/json"
	"net/http"

	"github.com/osintbuddy/backend/internal/queue"
	"github.com/osintbuddy/backend/pkg/apperror"
	pgdb "github.com/osintbuddy/backend/pkg/db/pgx"
	"github.com/osintbuddy/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DeleteGraphHandler marks the graph as deleting and hands the drop to the
// worker. Marked graphs stop resolving right away.
func DeleteGraphHandler(c echo.Context) error {
	type deleteGraphResponse struct {
		Message string `json:"message"`
	}

	cc := appContext(c)
	ctx := c.Request().Context()

	row, err := pgdb.New(cc.App.DBConn).MarkGraphDeleting(ctx, cc.Graph.ID)
	if err != nil {
		return writeGraphRowError(c, err)
	}

	if cc.App.Queue != nil {
		if err := queue.EnqueueGraphDelete(cc.App.Queue, row.ID); err != nil {
			logger.Error("[Server] Failed to enqueue graph delete", "id", row.ID, "err", err)
			return writeError(c, apperror.ErrInternal.WithInternal(err))
		}
		return c.JSON(http.StatusAccepted, deleteGraphResponse{Message: "Graph deletion scheduled"})
	}

	body, err := json.Marshal(queue.GraphDeleteMsg{GraphID: row.ID})
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	if err := cc.App.Deleter.ProcessGraphDeleteMessage(ctx, body); err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return c.JSON(http.StatusOK, deleteGraphResponse{Message: "Graph deleted"})
}
