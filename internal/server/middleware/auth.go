package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/osintbuddy/backend/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	// browsers cannot set headers on websocket upgrades
	return c.QueryParam("token")
}

// Authenticate resolves the caller from the bearer token or the master API
// key.
func Authenticate(c echo.Context) (*AppUser, error) {
	token := bearerToken(c)
	if token == "" {
		return nil, apperror.ErrUnauthorized
	}
	app := c.(*AppContext).App

	// Master API Key bypass
	if app.MasterAPIKey != "" && app.MasterUserID != 0 && app.MasterUserRole != "" && token == app.MasterAPIKey {
		return &AppUser{
			UserID: app.MasterUserID,
			Role:   app.MasterUserRole,
		}, nil
	}

	if app.Keyfunc == nil {
		return nil, apperror.ErrUnauthorized
	}
	parsed, err := jwt.Parse(token, app.Keyfunc)
	if err != nil || !parsed.Valid {
		return nil, apperror.ErrUnauthorized.WithInternal(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperror.ErrUnauthorized
	}

	var userID int64
	switch id := claims["id"].(type) {
	case string:
		userID, err = strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, apperror.ErrUnauthorized.WithMessage("Invalid user ID")
		}
	case float64:
		userID = int64(id)
	default:
		return nil, apperror.ErrUnauthorized.WithMessage("Invalid user ID").WithInternal(fmt.Errorf("id claim is %T", claims["id"]))
	}

	role := "user"
	if roleClaim, ok := claims["role"].(string); ok {
		role = roleClaim
	}

	return &AppUser{
		UserID: userID,
		Role:   role,
	}, nil
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := Authenticate(c)
		if err != nil {
			status, body := apperror.ToHTTPError(err)
			if status != http.StatusUnauthorized {
				status = http.StatusUnauthorized
			}
			return c.JSON(status, body)
		}
		c.(*AppContext).User = user
		return next(c)
	}
}
