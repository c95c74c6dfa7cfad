package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes read-only ledger endpoints.
type Handler struct {
	ledger *Ledger
}

// NewHandler constructs a ledger handler.
func NewHandler(l *Ledger) *Handler {
	return &Handler{ledger: l}
}

// Balances lists every tracked token.
func (h *Handler) Balances(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"balances": h.ledger.Balances()})
}

// Balance returns one token.
func (h *Handler) Balance(c *fiber.Ctx) error {
	tok, err := h.ledger.Balance(c.Params("tokenId"))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return fiber.NewError(http.StatusNotFound, "token not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(tok)
}

// Transactions returns the newest-first log, optionally filtered by ?token=.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	if token := c.Query("token"); token != "" {
		return c.JSON(fiber.Map{"transactions": h.ledger.TransactionsFor(token)})
	}
	return c.JSON(fiber.Map{"transactions": h.ledger.Transactions()})
}

// Portfolio summarizes total value across tokens.
func (h *Handler) Portfolio(c *fiber.Ctx) error {
	snap := h.ledger.Snapshot()
	return c.JSON(fiber.Map{
		"total_value_usd":   snap.TotalValueUSD().StringFixed(2),
		"token_count":       len(snap.Balances),
		"transaction_count": len(snap.Transactions),
		"version":           snap.Version,
	})
}
