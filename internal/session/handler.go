package session

import (
	"net/http"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/apperr"
)

// Handler exposes the handshake over HTTP. A nil service means the chain
// configuration was incomplete at startup.
type Handler struct {
	service *Service
}

// NewHandler builds a session HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type requestBody struct {
	SecondFactor   string `json:"secondFactor"`
	SessionAddress string `json:"sessionAddress"`
	Signature      string `json:"signature"`
}

type requestResponse struct {
	Provider       string `json:"provider"`
	Salt           string `json:"salt"`
	SessionAddress string `json:"sessionAddress"`
	Signature      string `json:"signature"`
}

type startBody struct {
	SecondFactor     string `json:"secondFactor"`
	Salt             string `json:"salt"`
	SaltSignature    string `json:"saltSignature"`
	SessionAddress   string `json:"sessionAddress"`
	SessionSignature string `json:"sessionSignature"`
}

type startResponse struct {
	Account string             `json:"account"`
	Receipt *types.Receipt     `json:"receipt"`
	Tx      *types.Transaction `json:"tx"`
}

// Request handles POST /session/request.
func (h *Handler) Request(c *fiber.Ctx) error {
	if h.service == nil {
		return apperr.Unavailable("Missing chain configuration")
	}
	var body requestBody
	if err := c.BodyParser(&body); err != nil {
		return apperr.Wrap(apperr.ErrBadRequest, "Invalid request body", err)
	}
	res, err := h.service.Request(c.UserContext(), RequestInput{
		SecondFactor:   body.SecondFactor,
		SessionAddress: body.SessionAddress,
		Signature:      body.Signature,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(requestResponse{
		Provider:       res.Provider.Hex(),
		Salt:           res.Salt,
		SessionAddress: res.SessionAddress,
		Signature:      res.Signature,
	})
}

// Start handles POST /session/start.
func (h *Handler) Start(c *fiber.Ctx) error {
	if h.service == nil {
		return apperr.Unavailable("Missing chain configuration")
	}
	var body startBody
	if err := c.BodyParser(&body); err != nil {
		return apperr.Wrap(apperr.ErrBadRequest, "Invalid request body", err)
	}
	res, err := h.service.Start(c.UserContext(), StartInput{
		SecondFactor:     body.SecondFactor,
		Salt:             body.Salt,
		SaltSignature:    body.SaltSignature,
		SessionAddress:   body.SessionAddress,
		SessionSignature: body.SessionSignature,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(startResponse{
		Account: res.Account.Address.Hex(),
		Receipt: res.Activation.Receipt,
		Tx:      res.Activation.Tx,
	})
}
