package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/settlement"
)

// RegisterSettlementRoutes wires group payouts.
func RegisterSettlementRoutes(r fiber.Router, h *settlement.Handler, idempotency fiber.Handler) {
	r.Post("/split", idempotency, h.Split)
}
