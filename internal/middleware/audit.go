package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/apperr"
)

// Audit emits structured logs for each request/response lifecycle event.
// Errors are logged with the status the error handler will render.
func Audit(logger *slog.Logger, skip ...string) fiber.Handler {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		if _, ok := skipped[c.Path()]; ok {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperr.HTTPStatus(err)
		}
		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if requestID := GetRequestID(c); requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}

		switch {
		case err != nil && status >= fiber.StatusInternalServerError:
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
		case err != nil:
			attrs = append(attrs, slog.Any("error", err))
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
		return err
	}
}
