package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout sets a deadline on each request context and runs the handler
// in the calling goroutine, so Recovery still sees its panics. Handlers that
// honour ctx stop early; when the deadline has passed and nothing was written
// yet, a 504 JSON error is sent. The adapter's outbound Salesforce calls are
// bound by the same deadline.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return err
			}
			if c.Response().Committed {
				return nil
			}
			return c.JSON(http.StatusGatewayTimeout, errorBody("request processing exceeded the allowed time limit"))
		}
	}
}
