package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenledger/internal/payments"
)

// RegisterPaymentRoutes wires balance mutation endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/transfers", h.Transfer)
	r.Post("/swaps/quote", h.Quote)
	r.Post("/swaps", h.Swap)
	r.Post("/transactions/:id/confirm", h.Confirm)
	r.Post("/sync", h.Sync)
}
