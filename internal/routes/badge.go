package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/badge"
)

// RegisterBadgeRoutes exposes badge metadata.
func RegisterBadgeRoutes(r fiber.Router, h *badge.Handler) {
	r.Get("/badges/:collection/:badgeId", h.Get)
}
