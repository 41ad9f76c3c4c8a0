package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route patterns that bypass authentication: health checks,
// login/registration and the SafePass emergency lookup.
var publicPaths = map[string]bool{
	"/health":               true,
	"/health/db":            true,
	"/api/v1/auth/login":    true,
	"/api/v1/auth/register": true,
	"/emergency/:code":      true,
}

// AuthSkipper returns true for requests whose matched route should skip
// authentication. It keys on c.Path(), the route pattern, so path parameters
// like the SafePass code do not need listing.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// SkipperWith extends AuthSkipper with routes known only at startup, such
// as the static photo route. Pass the Path of the *echo.Route that was
// registered, not the prefix it was registered with.
func SkipperWith(routes ...string) func(c echo.Context) bool {
	extra := make(map[string]bool, len(routes))
	for _, r := range routes {
		extra[r] = true
	}
	return func(c echo.Context) bool {
		return AuthSkipper(c) || extra[c.Path()]
	}
}
