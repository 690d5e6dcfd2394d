package routes

import (
	"net/http"

	"github.com/osintbuddy/backend/internal/graphing"
	"github.com/osintbuddy/backend/internal/realtime"
	"github.com/osintbuddy/backend/internal/server/middleware"
	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

type transformResponse struct {
	Message  string          `json:"message"`
	Entities []common.Entity `json:"entities"`
}

// RunTransformHandler runs a transform on a node of the graph. Every
// ingested entity is broadcast to the room, including those of a batch that
// failed halfway.
func RunTransformHandler(c echo.Context) error {
	source := new(common.Entity)
	if err := c.Bind(source); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}
	if source.Transform == "" || source.Data.Label == "" {
		return writeError(c, apperror.NewBadRequest("transform and data.label are required"))
	}
	if _, err := source.VertexID(); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid entity id"))
	}

	cc := appContext(c)
	name := middleware.GraphName(cc.Graph)
	entities, err := cc.App.Graphs.RunTransform(c.Request().Context(), name, *source)
	for _, entity := range entities {
		cc.App.Hub.Broadcast(name, realtime.NodeMessage{Action: realtime.ActionCreateEntity, Node: entity})
	}
	if err != nil {
		if len(entities) == 0 {
			return writeError(c, err)
		}
		status, body := apperror.ToHTTPError(err)
		return c.JSON(status, map[string]any{
			"code":     body["code"],
			"error":    body["error"],
			"entities": entities,
		})
	}

	return c.JSON(http.StatusOK, transformResponse{
		Message:  graphing.TransformNotification(source.Transform, len(entities)),
		Entities: entities,
	})
}
