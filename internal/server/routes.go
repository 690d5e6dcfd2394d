package server

import (
	"github.com/osintbuddy/backend/internal/server/middleware"
	"github.com/osintbuddy/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	// Authenticates on its own so failures can be reported over the socket.
	e.GET("/api/graphs/:hid/ws", routes.GraphSocketHandler)

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Graph routes
	apiRoutes.GET("/graphs", routes.GetGraphsHandler)
	apiRoutes.POST("/graphs", routes.CreateGraphHandler)
	apiRoutes.GET("/graphs/favorites", routes.GetFavoriteGraphsHandler)

	graphRoutes := apiRoutes.Group("/graphs/:hid", middleware.GraphMiddleware)
	graphRoutes.GET("", routes.GetGraphHandler)
	graphRoutes.PATCH("", routes.EditGraphHandler)
	graphRoutes.DELETE("", routes.DeleteGraphHandler)
	graphRoutes.PATCH("/favorite", routes.ToggleGraphFavoriteHandler)
	graphRoutes.GET("/stats", routes.GetGraphStatsHandler)
	graphRoutes.POST("/nodes", routes.CreateNodeHandler)
	graphRoutes.POST("/transforms", routes.RunTransformHandler)

	// Plugin registry routes
	apiRoutes.GET("/plugins/entities", routes.GetPluginEntitiesHandler)
	apiRoutes.GET("/plugins/entities/:id", routes.GetPluginEntityHandler)
	apiRoutes.GET("/plugins/transforms", routes.GetPluginTransformsHandler)
	apiRoutes.GET("/plugins/refresh", routes.RefreshPluginsHandler)

	// Custom entity routes
	apiRoutes.GET("/entities", routes.GetEntitiesHandler)
	apiRoutes.POST("/entities", routes.CreateEntityHandler)
	apiRoutes.GET("/entities/:hid", routes.GetEntityHandler)
	apiRoutes.GET("/entities/:hid/source", routes.GetEntitySourceHandler)
	apiRoutes.PUT("/entities/:hid", routes.UpdateEntityHandler)
	apiRoutes.PUT("/entities/:hid/favorite", routes.ToggleEntityFavoriteHandler)
	apiRoutes.DELETE("/entities/:hid", routes.DeleteEntityHandler)
}
