package routes

import (
	"encoding/json"
	"net/http"

	"github.com/osintbuddy/backend/pkg/apperror"

	"github.com/labstack/echo/v4"
)

func GetPluginEntitiesHandler(c echo.Context) error {
	data, err := appContext(c).App.Plugins.Entities(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSONBlob(http.StatusOK, data)
}

func GetPluginEntityHandler(c echo.Context) error {
	data, err := appContext(c).App.Plugins.Entity(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSONBlob(http.StatusOK, data)
}

func GetPluginTransformsHandler(c echo.Context) error {
	type transformsParams struct {
		Label string `query:"label" validate:"required"`
	}

	type transformsResponse struct {
		Type       string          `json:"type"`
		Transforms json.RawMessage `json:"transforms"`
	}

	data := new(transformsParams)
	if err := c.Bind(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request params"))
	}
	if err := c.Validate(data); err != nil {
		return writeError(c, apperror.NewBadRequest("label is required"))
	}

	transforms, err := appContext(c).App.Plugins.Transforms(c.Request().Context(), data.Label)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, transformsResponse{Type: data.Label, Transforms: transforms})
}

// RefreshPluginsHandler asks the registry to reload and returns its plugins.
func RefreshPluginsHandler(c echo.Context) error {
	type refreshResponse struct {
		Status  string          `json:"status"`
		Plugins json.RawMessage `json:"plugins"`
	}

	plugins, err := appContext(c).App.Plugins.Refresh(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, refreshResponse{Status: "success", Plugins: plugins})
}
