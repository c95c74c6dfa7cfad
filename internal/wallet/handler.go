package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenledger/internal/keys"
	"github.com/congo-pay/tokenledger/internal/remote"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Label string `json:"label"`
	PIN   string `json:"pin"`
}

type revealRequest struct {
	PIN string `json:"pin"`
}

type walletResponse struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName"`
	CreatedAt   string `json:"createdAt"`
	PINRequired bool   `json:"pinRequired"`
}

func toResponse(p Profile) walletResponse {
	return walletResponse{
		Address:     p.Address,
		DisplayName: p.DisplayName,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		PINRequired: p.HasPIN(),
	}
}

// Create provisions the wallet and returns its key material once.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	created, err := h.service.Create(c.UserContext(), CreateInput{Label: req.Label, RevealPIN: req.PIN})
	if err != nil {
		return mapError(err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"wallet":     toResponse(created.Profile),
		"privateKey": created.Secret.PrivateKey,
		"mnemonic":   created.Secret.Mnemonic,
	})
}

// Get returns the public wallet profile.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, err := h.service.Get(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toResponse(p))
}

// Reveal decrypts the key material for display.
func (h *Handler) Reveal(c *fiber.Ctx) error {
	var req revealRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	secret, err := h.service.Reveal(c.UserContext(), req.PIN)
	if err != nil {
		return mapError(err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(secret)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrWalletExists):
		return fiber.NewError(http.StatusConflict, "wallet already exists")
	case errors.Is(err, ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	case errors.Is(err, ErrInvalidPIN):
		return fiber.NewError(http.StatusUnauthorized, "invalid PIN")
	case errors.Is(err, ErrWeakPIN):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, remote.ErrNetwork):
		return fiber.NewError(http.StatusBadGateway, "wallet backend unavailable")
	case errors.Is(err, ErrInvalidKeyMaterial),
		errors.Is(err, keys.ErrMalformedCiphertext),
		errors.Is(err, keys.ErrDecryption),
		errors.Is(err, keys.ErrInvalidKey):
		// Never echo ciphertext details.
		return fiber.NewError(http.StatusUnprocessableEntity, "wallet key material could not be decrypted")
	default:
		return fiber.NewError(http.StatusInternalServerError, "wallet operation failed")
	}
}
