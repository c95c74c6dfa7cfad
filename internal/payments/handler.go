package payments

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/ledger"
	"github.com/congo-pay/tokenledger/internal/middleware"
	"github.com/congo-pay/tokenledger/internal/pricing"
	"github.com/congo-pay/tokenledger/internal/remote"
)

// AddressSource resolves the address of the wallet the ledger belongs to.
type AddressSource interface {
	Address(ctx context.Context) (string, error)
}

// Handler exposes balance mutation endpoints.
type Handler struct {
	service *Service
	wallets AddressSource
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service, wallets AddressSource) *Handler {
	return &Handler{service: service, wallets: wallets}
}

type transferRequest struct {
	TokenID      string      `json:"tokenId"`
	Amount       string      `json:"amount"`
	Direction    domain.Kind `json:"direction"`
	Counterparty string      `json:"counterpartyAddress"`
}

type swapRequest struct {
	FromTokenID string `json:"fromTokenId"`
	ToTokenID   string `json:"toTokenId"`
	Amount      string `json:"amount"`
	Slippage    string `json:"slippage"`
}

type confirmRequest struct {
	Status         domain.Status `json:"status"`
	ExternalTxHash string        `json:"externalTxHash"`
}

// Transfer records a send or receive.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.ApplyTransfer(c.UserContext(), TransferInput{
		TokenID:        req.TokenID,
		Amount:         amount,
		Direction:      req.Direction,
		Counterparty:   req.Counterparty,
		IdempotencyKey: middleware.IdempotencyKey(c),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "duplicate transaction", "transaction": tx})
		}
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Quote prices a swap without committing it.
func (h *Handler) Quote(c *fiber.Ctx) error {
	var req swapRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	slippage := pricing.DefaultSlippage
	if req.Slippage != "" {
		if slippage, err = decimal.NewFromString(req.Slippage); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid slippage")
		}
	}

	q, err := h.service.Quote(req.FromTokenID, req.ToTokenID, amount)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"quote":            q,
		"slippage":         slippage,
		"minimum_received": q.MinimumReceived(slippage),
	})
}

// Swap commits a swap locally and submits it to the backend.
func (h *Handler) Swap(c *fiber.Ctx) error {
	var req swapRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	address, err := h.wallets.Address(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusPreconditionFailed, "create a wallet before swapping")
	}

	tx, err := h.service.ExecuteSwap(c.UserContext(), SwapInput{
		FromTokenID:    req.FromTokenID,
		ToTokenID:      req.ToTokenID,
		AmountIn:       amount,
		IdempotencyKey: middleware.IdempotencyKey(c),
	}, address)
	switch {
	case err == nil:
		return c.Status(http.StatusCreated).JSON(tx)
	case errors.Is(err, ErrDuplicateTransaction):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "duplicate transaction", "transaction": tx})
	case errors.Is(err, remote.ErrNetwork) && tx.ID != "":
		// Committed locally; the backend can still be confirmed later.
		return c.Status(http.StatusAccepted).JSON(fiber.Map{"transaction": tx, "remote_error": err.Error()})
	default:
		return mapError(err)
	}
}

// Confirm applies an asynchronous confirmation to a transaction.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Confirm(c.UserContext(), c.Params("id"), req.Status, req.ExternalTxHash)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(tx)
}

// Sync refreshes balances from the backend.
func (h *Handler) Sync(c *fiber.Ctx) error {
	address, err := h.wallets.Address(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusPreconditionFailed, "create a wallet before syncing")
	}
	report, err := h.service.Refresh(c.UserContext(), address)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(report)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrInvalidDirection),
		errors.Is(err, ErrSameToken),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, pricing.ErrInvalidPrice):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientBalance):
		return fiber.NewError(http.StatusUnprocessableEntity, "insufficient balance")
	case errors.Is(err, ledger.ErrTokenNotFound):
		return fiber.NewError(http.StatusNotFound, "token not found")
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	case errors.Is(err, ErrAlreadyConfirmed):
		return fiber.NewError(http.StatusConflict, "transaction already confirmed")
	case errors.Is(err, remote.ErrNetwork):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	case errors.Is(err, ledger.ErrPersistence):
		return fiber.NewError(http.StatusServiceUnavailable, "ledger storage unavailable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
