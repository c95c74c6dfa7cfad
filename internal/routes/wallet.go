package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenledger/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints. revealLimiter guards secret disclosure.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, revealLimiter fiber.Handler) {
	r.Post("/wallet", h.Create)
	r.Get("/wallet", h.Get)
	r.Post("/wallet/reveal", revealLimiter, h.Reveal)
}
