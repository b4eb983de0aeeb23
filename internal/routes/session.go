package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/session"
)

// RegisterSessionRoutes wires the two-step handshake.
func RegisterSessionRoutes(r fiber.Router, h *session.Handler, rateLimit, idempotency fiber.Handler) {
	r.Post("/session/request", rateLimit, h.Request)
	r.Post("/session/start", idempotency, h.Start)
}
