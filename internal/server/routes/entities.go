package routes

import (
	"errors"
	"net/http"

	"github.com/osintbuddy/backend/internal/hid"
	"github.com/osintbuddy/backend/internal/storage"
	"github.com/osintbuddy/backend/internal/util"
	"github.com/osintbuddy/backend/pkg/apperror"
	pgdb "github.com/osintbuddy/backend/pkg/db/pgx"
	"github.com/osintbuddy/backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

var errNoStorage = apperror.New(http.StatusServiceUnavailable, "storage_unavailable", "Plugin source storage is not configured")

func entityID(c echo.Context) (int64, error) {
	id, err := appContext(c).App.HID.Decode(hid.Entity, c.Param("hid"))
	if err != nil {
		return 0, apperror.NewNotFound("entity", c.Param("hid"))
	}
	return id, nil
}

func entityRowError(c echo.Context, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return writeError(c, apperror.NewNotFound("entity", c.Param("hid")))
	}
	return writeError(c, apperror.ErrInternal.WithInternal(err))
}

func writeEntity(c echo.Context, status int, row pgdb.Entity) error {
	view, err := toEntityView(appContext(c).App.HID, row)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return c.JSON(status, view)
}

func GetEntitiesHandler(c echo.Context) error {
	type getEntitiesParams struct {
		Skip          int32 `query:"skip" validate:"gte=0"`
		Limit         int32 `query:"limit" validate:"gte=0"`
		FavoriteSkip  int32 `query:"favorite_skip" validate:"gte=0"`
		FavoriteLimit int32 `query:"favorite_limit" validate:"gte=0"`
	}

	type getEntitiesResponse struct {
		Entities         []entityView `json:"entities"`
		Count            int64        `json:"count"`
		FavoriteEntities []entityView `json:"favorite_entities"`
		FavoriteCount    int64        `json:"favorite_count"`
	}

	data := new(getEntitiesParams)
	if err := c.Bind(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request params"))
	}
	if err := c.Validate(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request params"))
	}

	app := appContext(c).App
	ctx := c.Request().Context()
	q := pgdb.New(app.DBConn)

	res := getEntitiesResponse{
		Entities:         []entityView{},
		FavoriteEntities: []entityView{},
	}
	for _, fav := range []bool{false, true} {
		skip, limit := data.Skip, data.Limit
		if fav {
			skip, limit = data.FavoriteSkip, data.FavoriteLimit
		}
		offset, size := page(skip, limit)

		rows, err := q.ListEntities(ctx, pgdb.ListEntitiesParams{IsFavorite: fav, Limit: size, Offset: offset})
		if err != nil {
			return writeError(c, apperror.ErrInternal.WithInternal(err))
		}
		count, err := q.CountEntities(ctx, fav)
		if err != nil {
			return writeError(c, apperror.ErrInternal.WithInternal(err))
		}

		views := make([]entityView, 0, len(rows))
		for _, row := range rows {
			v, err := toEntityView(app.HID, row)
			if err != nil {
				return writeError(c, apperror.ErrInternal.WithInternal(err))
			}
			views = append(views, v)
		}
		if fav {
			res.FavoriteEntities, res.FavoriteCount = views, count
		} else {
			res.Entities, res.Count = views, count
		}
	}
	return c.JSON(http.StatusOK, res)
}

func GetEntityHandler(c echo.Context) error {
	id, err := entityID(c)
	if err != nil {
		return writeError(c, err)
	}
	row, err := pgdb.New(appContext(c).App.DBConn).GetEntity(c.Request().Context(), id)
	if err != nil {
		return entityRowError(c, err)
	}
	return writeEntity(c, http.StatusOK, row)
}

// GetEntitySourceHandler returns the stored plugin source of an entity.
func GetEntitySourceHandler(c echo.Context) error {
	type entitySourceResponse struct {
		ID     string `json:"id"`
		Source string `json:"source"`
	}

	id, err := entityID(c)
	if err != nil {
		return writeError(c, err)
	}
	app := appContext(c).App
	if app.Sources == nil {
		return writeError(c, errNoStorage)
	}

	ctx := c.Request().Context()
	row, err := pgdb.New(app.DBConn).GetEntity(ctx, id)
	if err != nil {
		return entityRowError(c, err)
	}
	source, err := app.Sources.Get(ctx, row.SourceKey)
	if err != nil {
		if errors.Is(err, storage.ErrNoSource) {
			return writeError(c, apperror.NewNotFound("entity source", c.Param("hid")))
		}
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return c.JSON(http.StatusOK, entitySourceResponse{ID: c.Param("hid"), Source: string(source)})
}

// CreateEntityHandler stores a custom entity and scaffolds its plugin
// source. The row is only committed once the source is uploaded.
func CreateEntityHandler(c echo.Context) error {
	type createEntityBody struct {
		Label       string `json:"label" validate:"required,max=256"`
		Author      string `json:"author" validate:"max=256"`
		Description string `json:"description" validate:"max=4096"`
	}

	data := new(createEntityBody)
	if err := c.Bind(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}
	if err := c.Validate(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}

	data.Label = util.SanitizePostgresText(data.Label)
	data.Author = util.SanitizePostgresText(data.Author)
	data.Description = util.SanitizePostgresText(data.Description)

	cc := appContext(c)
	ctx := c.Request().Context()

	source, err := storage.RenderSource(storage.ScaffoldParams{
		Label:       data.Label,
		Author:      data.Author,
		Description: data.Description,
	})
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}

	tx, err := cc.App.DBConn.Begin(ctx)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	defer tx.Rollback(ctx)

	row, err := pgdb.New(tx).CreateEntity(ctx, pgdb.CreateEntityParams{
		Label:       data.Label,
		Author:      data.Author,
		Description: data.Description,
		SourceKey:   storage.SourceKey(data.Label),
		OwnerID:     cc.User.UserID,
	})
	if err != nil {
		return writeError(c, apperror.ErrBadRequest.WithMessage("An entity with this label already exists").WithInternal(err))
	}

	if cc.App.Sources != nil {
		if err := cc.App.Sources.Put(ctx, row.SourceKey, []byte(source)); err != nil {
			return writeError(c, apperror.ErrInternal.WithInternal(err))
		}
	} else {
		logger.Warn("[Server] No object storage, entity source not stored", "label", row.Label)
	}

	if err := tx.Commit(ctx); err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return writeEntity(c, http.StatusCreated, row)
}

// UpdateEntityHandler replaces the entity metadata and, when given, its
// plugin source.
func UpdateEntityHandler(c echo.Context) error {
	type updateEntityBody struct {
		Label       string  `json:"label" validate:"required,max=256"`
		Author      string  `json:"author" validate:"max=256"`
		Description string  `json:"description" validate:"max=4096"`
		Source      *string `json:"source"`
	}

	id, err := entityID(c)
	if err != nil {
		return writeError(c, err)
	}

	data := new(updateEntityBody)
	if err := c.Bind(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}
	if err := c.Validate(data); err != nil {
		return writeError(c, apperror.NewBadRequest("Invalid request body"))
	}

	app := appContext(c).App
	if data.Source != nil && app.Sources == nil {
		return writeError(c, errNoStorage)
	}

	ctx := c.Request().Context()
	tx, err := app.DBConn.Begin(ctx)
	if err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	defer tx.Rollback(ctx)

	row, err := pgdb.New(tx).UpdateEntity(ctx, pgdb.UpdateEntityParams{
		ID:          id,
		Label:       util.SanitizePostgresText(data.Label),
		Author:      util.SanitizePostgresText(data.Author),
		Description: util.SanitizePostgresText(data.Description),
	})
	if err != nil {
		return entityRowError(c, err)
	}

	if data.Source != nil {
		if err := app.Sources.Put(ctx, row.SourceKey, []byte(*data.Source)); err != nil {
			return writeError(c, apperror.ErrInternal.WithInternal(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return writeError(c, apperror.ErrInternal.WithInternal(err))
	}
	return writeEntity(c, http.StatusOK, row)
}

func ToggleEntityFavoriteHandler(c echo.Context) error {
	id, err := entityID(c)
	if err != nil {
		return writeError(c, err)
	}
	row, err := pgdb.New(appContext(c).App.DBConn).ToggleEntityFavorite(c.Request().Context(), id)
	if err != nil {
		return entityRowError(c, err)
	}
	return writeEntity(c, http.StatusOK, row)
}

func DeleteEntityHandler(c echo.Context) error {
	type deleteEntityResponse struct {
		Message string `json:"message"`
	}

	id, err := entityID(c)
	if err != nil {
		return writeError(c, err)
	}
	app := appContext(c).App
	ctx := c.Request().Context()

	row, err := pgdb.New(app.DBConn).DeleteEntity(ctx, id)
	if err != nil {
		return entityRowError(c, err)
	}
	if app.Sources != nil {
		if err := app.Sources.Delete(ctx, row.SourceKey); err != nil {
			logger.Warn("[Server] Failed to delete entity source", "key", row.SourceKey, "err", err)
		}
	}
	return c.JSON(http.StatusOK, deleteEntityResponse{Message: "Entity deleted"})
}
