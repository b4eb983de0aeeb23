package badge

import (
	"math/big"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/apperr"
	"github.com/spliteth/spliteth/internal/identity"
)

// Handler exposes badge metadata.
type Handler struct {
	service *Service
}

// NewHandler builds a badge handler. A nil service answers 500 (missing configuration).
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get handles GET /badges/:collection/:badgeId.
func (h *Handler) Get(c *fiber.Ctx) error {
	if h.service == nil {
		return apperr.Unavailable("Missing chain configuration")
	}
	collection, err := identity.ParseAddress(c.Params("collection"))
	if err != nil {
		return apperr.Wrap(apperr.ErrBadRequest, "Invalid collection address", err)
	}
	id, ok := new(big.Int).SetString(c.Params("badgeId"), 10)
	if !ok || id.Sign() < 0 {
		return apperr.BadRequest("Invalid badge id")
	}
	b, err := h.service.Get(c.UserContext(), collection, id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(b)
}
