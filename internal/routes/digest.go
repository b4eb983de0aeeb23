package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/digest"
)

// RegisterDigestRoutes exposes the hashing helper clients use to check their
// packing.
func RegisterDigestRoutes(r fiber.Router, h *digest.Handler) {
	r.Post("/hash", h.Hash)
}
