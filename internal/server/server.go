package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/osintbuddy/backend/internal/config"
	"github.com/osintbuddy/backend/internal/db"
	"github.com/osintbuddy/backend/internal/graphing"
	"github.com/osintbuddy/backend/internal/hid"
	"github.com/osintbuddy/backend/internal/queue"
	"github.com/osintbuddy/backend/internal/realtime"
	mid "github.com/osintbuddy/backend/internal/server/middleware"
	"github.com/osintbuddy/backend/internal/storage"
	"github.com/osintbuddy/backend/pkg/leaselock"
	"github.com/osintbuddy/backend/pkg/logger"
	"github.com/osintbuddy/backend/pkg/plugins"
	pgstore "github.com/osintbuddy/backend/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New builds the echo instance for app with every route registered.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("8M"))

	RegisterRoutes(e)
	return e
}

func Init(cfg *config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}

	conn, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	k, err := keyfunc.NewDefault([]string{cfg.Auth.JWKSURL()})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	registry, err := plugins.NewClient(plugins.NewClientParams{
		BaseURL:               cfg.Plugins.URL,
		MaxConcurrentRequests: cfg.Plugins.MaxParallel,
		Retries:               cfg.Plugins.Retries,
		Backoff:               cfg.Plugins.Backoff,
	})
	if err != nil {
		logger.Fatal("Failed to create plugins client", "err", err)
	}

	ids, err := hid.New(cfg.Sqids.Alphabet, cfg.Sqids.MinLength)
	if err != nil {
		logger.Fatal("Failed to create id encoder", "err", err)
	}

	graphStore := pgstore.NewGraphDBStorageWithConnection(conn, pgstore.WithTimeout(cfg.GraphTxTimeout))
	graphs := graphing.NewService(graphStore, registry)
	hub := realtime.NewHub(graphs)
	defer hub.Shutdown()

	app := &mid.App{
		DBConn:   conn,
		Graphs:   graphs,
		Hub:      hub,
		Upgrader: realtime.NewUpgrader(cfg.AllowedOrigins),
		Plugins:  registry,
		HID:      ids,
		Keyfunc:  k.Keyfunc,
		Deleter: &queue.GraphDeleter{
			DB:    conn,
			Locks: leaselock.New(conn, leaselock.DefaultTTL),
			Store: graphStore,
		},
		MasterAPIKey:   cfg.Auth.MasterAPIKey,
		MasterUserID:   cfg.Auth.MasterUserID,
		MasterUserRole: cfg.Auth.MasterUserRole,
	}

	if cfg.Rabbit.IsConfigured() {
		que, err := queue.Init(cfg.Rabbit)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", "err", err)
		}
		defer que.Close()

		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.GraphDeleteQueue}); err != nil {
			logger.Fatal("Failed to declare queues", "err", err)
		}
		app.Queue = ch

		relay, err := realtime.NewAMQPRelay(que, hub)
		if err != nil {
			logger.Fatal("Failed to start relay", "err", err)
		}
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("[Realtime] Relay stopped", "err", err)
			}
		}()
	} else {
		logger.Warn("RabbitMQ not configured, graph deletes run in the request and rooms are local")
	}

	if cfg.Storage.IsConfigured() {
		s3, err := storage.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		app.Sources = storage.NewSources(s3, cfg.Storage.Bucket)
	}

	e := New(app)

	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
