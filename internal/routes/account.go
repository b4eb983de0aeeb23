package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/account"
)

// RegisterAccountRoutes exposes the activation history.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Get("/sessions/:sessionAddress/activations", h.Activations)
}
