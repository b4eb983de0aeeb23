package settlement

import (
	"net/http"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/apperr"
	"github.com/spliteth/spliteth/internal/identity"
)

// Handler exposes settlement endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a settlement handler. A nil service answers 500 (missing configuration).
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type splitRequest struct {
	Group string `json:"group"`
}

type splitResponse struct {
	Receipt *types.Receipt     `json:"receipt"`
	Tx      *types.Transaction `json:"tx"`
}

// Split handles POST /split.
func (h *Handler) Split(c *fiber.Ctx) error {
	if h.service == nil {
		return apperr.Unavailable("Missing chain configuration")
	}
	var req splitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Wrap(apperr.ErrBadRequest, "Invalid request body", err)
	}
	if req.Group == "" {
		return apperr.BadRequest("Missing data in request")
	}
	group, err := identity.ParseAddress(req.Group)
	if err != nil {
		return apperr.Wrap(apperr.ErrBadRequest, "Invalid group address", err)
	}
	res, err := h.service.Split(c.UserContext(), group)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(splitResponse{Receipt: res.Receipt, Tx: res.Tx})
}
