package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opway/opway/internal/api/middleware"
	"github.com/opway/opway/internal/core/ports"
)

// ctxClaims extracts the claims injected by the Auth middleware and performs
// a fast-fail check before any service call: the subject must be present,
// its presence proves the middleware ran.
func ctxClaims(c echo.Context) (ports.TokenClaims, error) {
	claims, ok := c.Get(middleware.ClaimsKey).(ports.TokenClaims)
	if !ok || claims.UserID == "" {
		return ports.TokenClaims{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}

func ctxActor(c echo.Context) (ports.Actor, error) {
	claims, err := ctxClaims(c)
	if err != nil {
		return ports.Actor{}, err
	}
	return ports.Actor{UserID: claims.UserID, Role: claims.Role}, nil
}
