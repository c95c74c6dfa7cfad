package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/ledger"
	"github.com/congo-pay/tokenledger/internal/pricing"
	"github.com/congo-pay/tokenledger/internal/remote"
)

var (
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = pricing.ErrInvalidAmount

	// ErrInvalidAddress indicates a counterparty that is not a 0x-prefixed 40 hex character address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidDirection indicates a transfer that is neither a send nor a receive.
	ErrInvalidDirection = errors.New("transfer direction must be send or receive")

	// ErrInsufficientBalance is returned when a debit exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSameToken rejects swaps whose source and destination are the same token.
	ErrSameToken = errors.New("cannot swap a token for itself")

	// ErrDuplicateTransaction is returned together with the original transaction
	// when an idempotency key has already been used.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAlreadyConfirmed indicates the transaction has already received its confirmation.
	ErrAlreadyConfirmed = errors.New("transaction already confirmed")

	// ErrInvalidStatus rejects confirmations that carry no final status.
	ErrInvalidStatus = errors.New("confirmation status must be completed or failed")
)

// Service validates and applies balance mutations to the ledger.
type Service struct {
	ledger  *ledger.Ledger
	backend remote.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a payment service.
func NewService(l *ledger.Ledger, backend remote.Backend, logger *slog.Logger) *Service {
	return &Service{ledger: l, backend: backend, logger: logger, now: time.Now}
}

// TransferInput describes a send to or a receive from a counterparty.
type TransferInput struct {
	TokenID        string
	Amount         decimal.Decimal
	Direction      domain.Kind
	Counterparty   string
	IdempotencyKey string
}

// SwapInput describes a swap of AmountIn of one token into another.
type SwapInput struct {
	FromTokenID    string
	ToTokenID      string
	AmountIn       decimal.Decimal
	IdempotencyKey string
}

// RefreshReport summarizes a balance sync against the remote backend.
type RefreshReport struct {
	Updated  []string `json:"updated"`
	Kept     []string `json:"kept"`
	Rejected []string `json:"rejected"`
}

// ApplyTransfer debits (send) or credits (receive) one token and records the movement.
func (s *Service) ApplyTransfer(ctx context.Context, in TransferInput) (domain.Transaction, error) {
	if !in.Amount.IsPositive() {
		return domain.Transaction{}, ErrInvalidAmount
	}
	switch in.Direction {
	case domain.KindSend:
		if !domain.IsAddress(in.Counterparty) {
			return domain.Transaction{}, ErrInvalidAddress
		}
	case domain.KindReceive:
		if in.Counterparty != "" && !domain.IsAddress(in.Counterparty) {
			return domain.Transaction{}, ErrInvalidAddress
		}
	default:
		return domain.Transaction{}, ErrInvalidDirection
	}

	var recorded domain.Transaction
	_, err := s.ledger.Update(ctx, func(snap ledger.Snapshot) ([]domain.TokenBalance, *domain.Transaction, error) {
		if prior, ok := snap.ByIdempotencyKey(in.IdempotencyKey); ok {
			recorded = prior
			return nil, nil, ErrDuplicateTransaction
		}
		idx := indexOf(snap.Balances, in.TokenID)
		if idx < 0 {
			return nil, nil, ledger.ErrTokenNotFound
		}

		tok := snap.Balances[idx]
		switch in.Direction {
		case domain.KindSend:
			if in.Amount.GreaterThan(tok.Balance) {
				return nil, nil, ErrInsufficientBalance
			}
			snap.Balances[idx] = tok.WithBalance(tok.Balance.Sub(in.Amount))
		case domain.KindReceive:
			snap.Balances[idx] = tok.WithBalance(tok.Balance.Add(in.Amount))
		}

		recorded = s.newTransaction(in.Direction, in.TokenID, in.Amount, in.IdempotencyKey)
		recorded.Counterparty = in.Counterparty
		return snap.Balances, &recorded, nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return recorded, err
		}
		return domain.Transaction{}, err
	}
	return recorded, nil
}

// ApplySwap debits the source token, credits the destination with the quoted
// output and records the fee against the source token.
func (s *Service) ApplySwap(ctx context.Context, in SwapInput) (domain.Transaction, error) {
	if in.FromTokenID == in.ToTokenID {
		return domain.Transaction{}, ErrSameToken
	}
	if !in.AmountIn.IsPositive() {
		return domain.Transaction{}, ErrInvalidAmount
	}

	var recorded domain.Transaction
	_, err := s.ledger.Update(ctx, func(snap ledger.Snapshot) ([]domain.TokenBalance, *domain.Transaction, error) {
		if prior, ok := snap.ByIdempotencyKey(in.IdempotencyKey); ok {
			recorded = prior
			return nil, nil, ErrDuplicateTransaction
		}
		fromIdx, toIdx := indexOf(snap.Balances, in.FromTokenID), indexOf(snap.Balances, in.ToTokenID)
		if fromIdx < 0 || toIdx < 0 {
			return nil, nil, ledger.ErrTokenNotFound
		}
		from, to := snap.Balances[fromIdx], snap.Balances[toIdx]
		if in.AmountIn.GreaterThan(from.Balance) {
			return nil, nil, ErrInsufficientBalance
		}
		quote, err := pricing.QuoteSwap(from, to, in.AmountIn)
		if err != nil {
			return nil, nil, err
		}

		snap.Balances[fromIdx] = from.WithBalance(from.Balance.Sub(in.AmountIn))
		snap.Balances[toIdx] = to.WithBalance(to.Balance.Add(quote.AmountOut))

		recorded = s.newTransaction(domain.KindSwap, from.ID, in.AmountIn, in.IdempotencyKey)
		fee := quote.Fee
		recorded.FeeAmount = &fee
		recorded.Note = fmt.Sprintf("Swapped %s %s for %s %s", in.AmountIn, from.Symbol, quote.AmountOut.StringFixed(6), to.Symbol)
		return snap.Balances, &recorded, nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return recorded, err
		}
		return domain.Transaction{}, err
	}
	return recorded, nil
}

// ExecuteSwap commits the swap locally, then submits it to the backend and
// records the returned hash. If the backend call fails the committed local
// transaction is returned together with the error and is left as is.
func (s *Service) ExecuteSwap(ctx context.Context, in SwapInput, walletAddress string) (domain.Transaction, error) {
	if !domain.IsAddress(walletAddress) {
		return domain.Transaction{}, ErrInvalidAddress
	}
	tx, err := s.ApplySwap(ctx, in)
	if err != nil {
		return tx, err
	}

	receipt, err := s.backend.ExecuteSwap(ctx, remote.SwapRequest{
		FromTokenID:   in.FromTokenID,
		ToTokenID:     in.ToTokenID,
		Amount:        in.AmountIn,
		WalletAddress: walletAddress,
	})
	if err != nil {
		s.logger.Warn("remote swap failed, keeping local transaction",
			slog.String("transaction_id", tx.ID),
			slog.Any("error", err),
		)
		if !errors.Is(err, remote.ErrNetwork) {
			err = fmt.Errorf("%w: %v", remote.ErrNetwork, err)
		}
		return tx, err
	}

	return s.Confirm(ctx, tx.ID, domain.StatusCompleted, receipt.ExternalTxHash)
}

// Confirm records the asynchronous outcome of a transaction. It may be applied once.
func (s *Service) Confirm(ctx context.Context, txID string, status domain.Status, externalTxHash string) (domain.Transaction, error) {
	if status != domain.StatusCompleted && status != domain.StatusFailed {
		return domain.Transaction{}, ErrInvalidStatus
	}
	return s.ledger.Amend(ctx, txID, func(tx *domain.Transaction) error {
		if tx.Confirmed {
			return ErrAlreadyConfirmed
		}
		tx.Status = status
		tx.ExternalTxHash = externalTxHash
		tx.Confirmed = true
		return nil
	})
}

// Refresh pulls on-chain balances for every token. Tokens whose lookup fails
// keep their last-known value; negative answers are rejected.
func (s *Service) Refresh(ctx context.Context, walletAddress string) (RefreshReport, error) {
	if !domain.IsAddress(walletAddress) {
		return RefreshReport{}, ErrInvalidAddress
	}

	// Remote calls happen outside the writer lock; readers keep the last snapshot meanwhile.
	fetched := make(map[string]decimal.Decimal)
	var report RefreshReport
	for _, tok := range s.ledger.Balances() {
		bal, err := s.backend.FetchOnChainBalance(ctx, tok.ID, walletAddress)
		if err != nil {
			if !errors.Is(err, remote.ErrUnsupported) {
				s.logger.Warn("balance refresh failed", slog.String("token_id", tok.ID), slog.Any("error", err))
			}
			report.Kept = append(report.Kept, tok.ID)
			continue
		}
		if bal.IsNegative() {
			report.Rejected = append(report.Rejected, tok.ID)
			continue
		}
		fetched[tok.ID] = bal
	}
	if len(fetched) == 0 {
		return report, nil
	}

	errUnchanged := errors.New("unchanged")
	_, err := s.ledger.Update(ctx, func(snap ledger.Snapshot) ([]domain.TokenBalance, *domain.Transaction, error) {
		report.Updated = nil
		for i, tok := range snap.Balances {
			bal, ok := fetched[tok.ID]
			if !ok || bal.Equal(tok.Balance) {
				continue
			}
			snap.Balances[i] = tok.WithBalance(bal)
			report.Updated = append(report.Updated, tok.ID)
		}
		if len(report.Updated) == 0 {
			return nil, nil, errUnchanged
		}
		return snap.Balances, nil, nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return report, err
	}
	return report, nil
}

// Quote prices a swap against the current balances without committing anything.
func (s *Service) Quote(fromTokenID, toTokenID string, amountIn decimal.Decimal) (pricing.Quote, error) {
	if fromTokenID == toTokenID {
		return pricing.Quote{}, ErrSameToken
	}
	snap := s.ledger.Snapshot()
	from, err := snap.Balance(fromTokenID)
	if err != nil {
		return pricing.Quote{}, err
	}
	to, err := snap.Balance(toTokenID)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.QuoteSwap(from, to, amountIn)
}

func (s *Service) newTransaction(kind domain.Kind, tokenID string, amount decimal.Decimal, idempotencyKey string) domain.Transaction {
	return domain.Transaction{
		ID:             uuid.NewString(),
		Kind:           kind,
		TokenID:        tokenID,
		Amount:         amount,
		TimestampMs:    s.now().UnixMilli(),
		Status:         domain.StatusCompleted,
		IdempotencyKey: idempotencyKey,
	}
}

func indexOf(balances []domain.TokenBalance, tokenID string) int {
	_, idx, _ := lo.FindIndexOf(balances, func(b domain.TokenBalance) bool { return b.ID == tokenID })
	return idx
}
