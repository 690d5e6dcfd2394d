package middleware

import (
	"context"
	"encoding/json"

	"github.com/osintbuddy/backend/internal/graphing"
	"github.com/osintbuddy/backend/internal/hid"
	"github.com/osintbuddy/backend/internal/queue"
	"github.com/osintbuddy/backend/internal/realtime"
	"github.com/osintbuddy/backend/internal/storage"
	pgdb "github.com/osintbuddy/backend/pkg/db/pgx"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID int64
	Role   string
}

// DB is a pool that can start transactions.
type DB interface {
	pgdb.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PluginCatalog is the read side of the plugin registry exposed over HTTP.
type PluginCatalog interface {
	Entities(ctx context.Context) (json.RawMessage, error)
	Entity(ctx context.Context, id string) (json.RawMessage, error)
	Transforms(ctx context.Context, label string) (json.RawMessage, error)
	Refresh(ctx context.Context) (json.RawMessage, error)
}

type App struct {
	DBConn   DB
	Graphs   *graphing.Service
	Hub      *realtime.Hub
	Upgrader *websocket.Upgrader
	Plugins  PluginCatalog
	HID      *hid.Encoder
	Keyfunc  jwt.Keyfunc

	// Queue is nil when no broker is configured; graph deletes then run
	// in the request through Deleter.
	Queue   queue.Publisher
	Deleter *queue.GraphDeleter
	// Sources is nil when no object storage is configured.
	Sources *storage.Sources

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App   *App
	User  *AppUser
	Graph *pgdb.Graph
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{Context: c, App: app}
			return next(cc)
		}
	}
}
