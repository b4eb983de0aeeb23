package account

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/apperr"
	"github.com/spliteth/spliteth/internal/identity"
)

// Handler exposes the activation read model.
type Handler struct {
	provisioner *Provisioner
}

// NewHandler builds an account HTTP handler.
func NewHandler(provisioner *Provisioner) *Handler {
	return &Handler{provisioner: provisioner}
}

type activationResponse struct {
	ID              string    `json:"id"`
	Account         string    `json:"account"`
	Session         string    `json:"sessionAddress"`
	DurationSeconds uint64    `json:"durationSeconds"`
	TxHash          string    `json:"txHash"`
	Status          string    `json:"status"`
	BlockNumber     uint64    `json:"blockNumber,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Activations lists activations recorded for a session address.
func (h *Handler) Activations(c *fiber.Ctx) error {
	if h.provisioner == nil {
		return apperr.Unavailable("Service not configured")
	}
	session, err := identity.ParseAddress(c.Params("sessionAddress"))
	if err != nil {
		return apperr.BadRequest("Invalid session address")
	}
	list, err := h.provisioner.Activations(c.UserContext(), session)
	if err != nil {
		return err
	}
	out := make([]activationResponse, 0, len(list))
	for _, a := range list {
		out = append(out, activationResponse{
			ID:              a.ID,
			Account:         a.Account.Hex(),
			Session:         a.Session.Hex(),
			DurationSeconds: a.DurationSeconds,
			TxHash:          a.TxHash.Hex(),
			Status:          a.Status,
			BlockNumber:     a.BlockNumber,
			CreatedAt:       a.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"activations": out})
}
