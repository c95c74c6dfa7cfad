package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenledger/internal/ledger"
)

// RegisterLedgerRoutes wires read-only balance and history endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/balances", h.Balances)
	r.Get("/balances/:tokenId", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.Get("/portfolio", h.Portfolio)
}
