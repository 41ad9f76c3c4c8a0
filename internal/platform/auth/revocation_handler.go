package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RegisterLogoutRoute registers POST /auth/logout on an authenticated group.
func RegisterLogoutRoute(g *echo.Group, store *TokenRevocationStore) {
	g.POST("/auth/logout", handleLogout(store))
}

// handleLogout revokes the token that authenticated the request.
func handleLogout(store *TokenRevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		jti := TokenIDFromContext(ctx)
		if jti == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "token has no id")
		}

		exp := ExpiresAtFromContext(ctx)
		if exp.IsZero() {
			exp = time.Now().Add(24 * time.Hour)
		}
		store.Revoke(jti, exp)
		return c.NoContent(http.StatusNoContent)
	}
}
