package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// uploadTimeoutFactor stretches the deadline for multipart uploads, which
// stream a lab report or photo into blob storage before the row is written.
const uploadTimeoutFactor = 4

// RequestTimeout cancels the request context after timeout and answers 504
// if the handler has not finished. Multipart uploads get uploadTimeoutFactor
// times as long. A zero timeout disables the deadline.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := deadlineFor(c.Request(), timeout)
			if d <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() { done <- next(c) }()

			var err error
			select {
			case err = <-done:
			case <-ctx.Done():
				err = ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return timeoutError(c)
			}
			return err
		}
	}
}

func deadlineFor(req *http.Request, timeout time.Duration) time.Duration {
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return timeout * uploadTimeoutFactor
	}
	return timeout
}

func timeoutError(c echo.Context) error {
	if c.Response().Committed {
		return nil
	}
	return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
}
