package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ironsheep/door-ai-studio/internal/logger"
	"github.com/ironsheep/door-ai-studio/internal/metrics"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// requestID reuses the caller's X-Request-ID or generates one, stores it on
// the request context for logging and echoes it back.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			id := req.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}

			ctx := logger.WithRequestID(req.Context(), id)
			c.SetRequest(req.WithContext(ctx))
			c.Response().Header().Set(HeaderRequestID, id)

			return next(c)
		}
	}
}

func requestLogger(c echo.Context, base *slog.Logger) *slog.Logger {
	return logger.FromContext(c.Request().Context(), base)
}

// recordMetrics counts requests by route template and final status. Errors
// have not been written yet at this point, so their status is derived the
// same way the error handler will derive it.
func recordMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				status, _ = mapError(err)
			}
			metrics.RecordHTTP(route, strconv.Itoa(status), time.Since(start).Seconds())
			return err
		}
	}
}
