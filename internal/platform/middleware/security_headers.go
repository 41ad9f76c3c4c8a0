package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	apiCSP    = "default-src 'none'; frame-ancestors 'none'"
	uploadCSP = "default-src 'none'; img-src 'self'; frame-ancestors 'none'"
)

// SecurityHeaders marks every response uncacheable and unframeable. Files
// under uploadPrefix may be embedded as images by the web client; SafePass
// pages under /emergency/ are kept out of search indexes.
func SecurityHeaders(uploadPrefix string) echo.MiddlewareFunc {
	uploadPrefix = strings.TrimRight(uploadPrefix, "/") + "/"
	static := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "0",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "no-referrer",
		"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
		"Cache-Control":             "no-store",
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range static {
				h.Set(k, v)
			}

			path := c.Request().URL.Path
			switch {
			case uploadPrefix != "/" && strings.HasPrefix(path, uploadPrefix):
				h.Set("Content-Security-Policy", uploadCSP)
			case strings.HasPrefix(path, "/emergency/"):
				h.Set("Content-Security-Policy", apiCSP)
				h.Set("X-Robots-Tag", "noindex, nofollow")
			default:
				h.Set("Content-Security-Policy", apiCSP)
			}

			return next(c)
		}
	}
}
