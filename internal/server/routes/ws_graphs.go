package routes

import (
	"context"

	"github.com/osintbuddy/backend/internal/realtime"
	"github.com/osintbuddy/backend/internal/server/middleware"
	"github.com/osintbuddy/backend/pkg/apperror"
	"github.com/osintbuddy/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GraphSocketHandler upgrades the request and joins the graph's room. Auth
// and graph lookup failures are reported over the socket before it closes,
// since browsers hide the status of a failed upgrade.
func GraphSocketHandler(c echo.Context) error {
	cc := appContext(c)

	user, authErr := middleware.Authenticate(c)
	var graphErr error
	if authErr == nil {
		cc.User = user
		cc.Graph, graphErr = middleware.ResolveGraph(c)
	}

	conn, err := cc.App.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written an HTTP error
		logger.Warn("[Realtime] Upgrade failed", "err", err)
		return nil
	}

	if authErr != nil {
		realtime.Reject(conn, apperror.ErrUnauthorized.Message)
		return nil
	}
	if graphErr != nil {
		_, body := apperror.ToHTTPError(graphErr)
		realtime.Reject(conn, body["error"])
		return nil
	}

	cc.App.Hub.Serve(context.WithoutCancel(c.Request().Context()), conn, middleware.GraphName(cc.Graph))
	return nil
}
