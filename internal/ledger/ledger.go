package ledger

import (
	"errors"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
)

var (
	// ErrPersistence occurs when the backing store is unavailable or holds data that cannot be decoded.
	ErrPersistence = errors.New("ledger persistence failure")

	// ErrTokenNotFound indicates the requested token is not tracked by the ledger.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTransactionNotFound indicates no transaction carries the requested identifier.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNegativeBalance is returned when a commit would publish a balance below zero.
	ErrNegativeBalance = errors.New("negative balance")
)

// Snapshot is an immutable view of the ledger. Transactions are newest-first.
type Snapshot struct {
	Balances     []domain.TokenBalance
	Transactions []domain.Transaction
	Version      uint64
}

// Balance finds a token by identifier.
func (s Snapshot) Balance(tokenID string) (domain.TokenBalance, error) {
	tok, ok := lo.Find(s.Balances, func(t domain.TokenBalance) bool { return t.ID == tokenID })
	if !ok {
		return domain.TokenBalance{}, ErrTokenNotFound
	}
	return tok, nil
}

// Transaction finds a transaction by identifier.
func (s Snapshot) Transaction(id string) (domain.Transaction, error) {
	tx, ok := lo.Find(s.Transactions, func(t domain.Transaction) bool { return t.ID == id })
	if !ok {
		return domain.Transaction{}, ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

// ByIdempotencyKey finds the transaction recorded for a client-supplied key.
func (s Snapshot) ByIdempotencyKey(key string) (domain.Transaction, bool) {
	if key == "" {
		return domain.Transaction{}, false
	}
	tx, ok := lo.Find(s.Transactions, func(t domain.Transaction) bool { return t.IdempotencyKey == key })
	return tx.Clone(), ok
}

// TransactionsFor returns the newest-first log restricted to one token.
func (s Snapshot) TransactionsFor(tokenID string) []domain.Transaction {
	return lo.FilterMap(s.Transactions, func(t domain.Transaction, _ int) (domain.Transaction, bool) {
		return t.Clone(), t.TokenID == tokenID
	})
}

// TotalValueUSD sums the USD value of every balance.
func (s Snapshot) TotalValueUSD() decimal.Decimal {
	return lo.Reduce(s.Balances, func(acc decimal.Decimal, t domain.TokenBalance, _ int) decimal.Decimal {
		return acc.Add(t.ValueUSD)
	}, decimal.Zero)
}

// Equal reports structural equality of balances and transactions, ignoring Version.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Balances) != len(o.Balances) || len(s.Transactions) != len(o.Transactions) {
		return false
	}
	for i := range s.Balances {
		if !s.Balances[i].Equal(o.Balances[i]) {
			return false
		}
	}
	for i := range s.Transactions {
		if !s.Transactions[i].Equal(o.Transactions[i]) {
			return false
		}
	}
	return true
}

func (s Snapshot) clone() Snapshot {
	txs := make([]domain.Transaction, len(s.Transactions))
	for i, t := range s.Transactions {
		txs[i] = t.Clone()
	}
	return Snapshot{
		Balances:     append([]domain.TokenBalance(nil), s.Balances...),
		Transactions: txs,
		Version:      s.Version,
	}
}

// Event is delivered to subscribers after each published change.
type Event struct {
	Snapshot    Snapshot
	Transaction *domain.Transaction
	Amended     bool
}
