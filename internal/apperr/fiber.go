package apperr

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Body is the JSON shape of every error response.
type Body struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// fiberError returns the *fiber.Error in err's chain unless a taxonomy kind
// takes precedence.
func fiberError(err error) (*fiber.Error, bool) {
	var (
		ae *Error
		fe *fiber.Error
	)
	if !errors.As(err, &ae) && errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// HTTPStatus is Status extended to errors raised by Fiber itself.
func HTTPStatus(err error) int {
	if fe, ok := fiberError(err); ok {
		return fe.Code
	}
	return Status(err)
}

// Handler returns a Fiber ErrorHandler that renders errors as Body JSON.
// Server-side failures are logged; client errors are not.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if fe, ok := fiberError(err); ok {
			return c.Status(fe.Code).JSON(Body{Message: fe.Message, Error: fe.Message})
		}

		status := Status(err)
		message, detail := Message(err)
		if status >= fiber.StatusInternalServerError && logger != nil {
			requestID, _ := c.Locals("X-Request-ID").(string)
			logger.Error("request failed",
				slog.String("path", c.Path()),
				slog.Int("status", status),
				slog.String("request_id", requestID),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(Body{Message: message, Error: detail})
	}
}
