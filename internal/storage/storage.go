package storage

import (
	"context"
	"errors"
)

// Keys under which the wallet client persists its state.
const (
	KeyBalances          = "balances"
	KeyTransactions      = "transactions"
	KeyWallet            = "wallet"
	KeyWalletDisplayName = "walletDisplayName"
	KeyWalletCreatedAt   = "walletCreatedAt"
)

// ErrUnavailable wraps any failure of the underlying storage medium.
var ErrUnavailable = errors.New("storage unavailable")

// Store is a small durable key/value document store.
type Store interface {
	// Get returns the raw values for the requested keys. Missing keys are absent from the map.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	// Put writes every entry or none of them.
	Put(ctx context.Context, entries map[string][]byte) error
}
