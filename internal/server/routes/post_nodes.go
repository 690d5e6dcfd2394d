package routes

import (
	"net/http"

	"github.com/osintbuddy/backend/internal/realtime"
	"github.com/osintbuddy/backend/internal/server/middleware"
	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

// CreateNodeHandler creates the vertex of an entity dropped on the canvas
// and announces it to the graph's room.
func CreateNodeHandler(c echo.Context) error {
	type createNodeBody struct {
		Label    string          `json:"label" validate:"required"`
		Position common.Position `json:"position"`
	}

	data := new(createNodeBody)
	if err := c.Bind(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}
	if err := c.Validate(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}

	cc := appContext(c)
	name := middleware.GraphName(cc.Graph)
	entity, err := cc.App.Graphs.CreateEntity(c.Request().Context(), name, data.Label, data.Position)
	if err != nil {
		return writeError(c, err)
	}

	cc.App.Hub.Broadcast(name, realtime.NodeMessage{Action: realtime.ActionCreateEntity, Node: entity})
	return c.JSON(http.StatusCreated, entity)
}
