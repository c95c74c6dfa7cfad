package remote

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
)

var (
	// ErrNetwork covers transport failures, timeouts and non-success responses from the backend.
	ErrNetwork = errors.New("remote backend unreachable")

	// ErrUnsupported is returned by backends that cannot serve a call, such as
	// on-chain balance lookups against the simulator.
	ErrUnsupported = errors.New("operation not supported by backend")
)

// SwapRequest identifies a swap the backend should execute on chain.
type SwapRequest struct {
	FromTokenID   string          `json:"fromTokenAddress"`
	ToTokenID     string          `json:"toTokenAddress"`
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"walletAddress"`
}

// SwapReceipt is the backend's acknowledgement of a submitted swap.
type SwapReceipt struct {
	ExternalTxHash string `json:"txHash"`
}

// Backend is the custodial service the ledger syncs with. Every call may block
// and may fail with ErrNetwork; callers keep their last local state on failure.
type Backend interface {
	CreateWallet(ctx context.Context, label string) (domain.WalletKeyMaterial, error)
	ExecuteSwap(ctx context.Context, req SwapRequest) (SwapReceipt, error)
	FetchOnChainBalance(ctx context.Context, tokenID, walletAddress string) (decimal.Decimal, error)
}
