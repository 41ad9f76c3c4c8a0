package middleware

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
)

const maxHeaderValueSize = 8192

// Sanitize answers 400 for requests carrying path traversal, null bytes or
// CR/LF in headers. It guards the /uploads file server as well as the API.
func Sanitize() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if reason := rejectReason(c); reason != "" {
				return echo.NewHTTPError(http.StatusBadRequest, reason)
			}
			return next(c)
		}
	}
}

func rejectReason(c echo.Context) string {
	u := c.Request().URL
	for _, p := range []string{u.Path, u.EscapedPath()} {
		if hasTraversal(p) {
			return "path traversal detected"
		}
		if hasNullByte(p) {
			return "null byte in path"
		}
	}

	for name, values := range c.Request().Header {
		for _, v := range values {
			if len(v) > maxHeaderValueSize {
				return "header value too large: " + name
			}
			if strings.ContainsAny(v, "\r\n") {
				return "header injection detected: " + name
			}
		}
	}

	for key, values := range u.Query() {
		if hasNullByte(key) {
			return "null byte in query parameter"
		}
		for _, v := range values {
			if hasNullByte(v) {
				return "null byte in query parameter"
			}
		}
	}

	for _, v := range c.ParamValues() {
		if hasNullByte(v) {
			return "null byte in path parameter"
		}
	}
	return ""
}

func hasTraversal(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "..") || strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func hasNullByte(s string) bool {
	return strings.ContainsRune(s, 0) || strings.Contains(strings.ToLower(s), "%00")
}

// SanitizeString drops null bytes and control characters except newline,
// carriage return and tab, then trims whitespace. Handlers run free-text
// clinical fields through it.
func SanitizeString(input string) string {
	clean := strings.Map(func(r rune) rune {
		if r == 0 || (unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t') {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(clean)
}
