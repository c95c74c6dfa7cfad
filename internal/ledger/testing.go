package ledger

import (
	"context"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/storage"
)

// NewInMemory opens a ledger over a fresh in-memory store. Useful for tests.
func NewInMemory() *Ledger {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Open(context.Background(), NewStore(storage.NewMemory()), logger)
}

// SeedBalance is a test helper that sets one token's balance, adding the token if needed.
func SeedBalance(l *Ledger, tok domain.TokenBalance, amount string) {
	_, err := l.Update(context.Background(), func(s Snapshot) ([]domain.TokenBalance, *domain.Transaction, error) {
		tok.Balance = decimal.RequireFromString(amount)
		for i, b := range s.Balances {
			if b.ID == tok.ID {
				s.Balances[i] = tok
				return s.Balances, nil, nil
			}
		}
		return append(s.Balances, tok), nil, nil
	})
	if err != nil {
		panic(err)
	}
}
