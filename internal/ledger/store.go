package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/storage"
)

// Store persists balances and the transaction log.
type Store interface {
	LoadBalances(ctx context.Context) ([]domain.TokenBalance, error)
	LoadTransactions(ctx context.Context) ([]domain.Transaction, error)
	// Save writes both collections atomically.
	Save(ctx context.Context, balances []domain.TokenBalance, transactions []domain.Transaction) error
}

// KVStore keeps the ledger as two JSON documents in a storage.Store.
type KVStore struct {
	kv storage.Store
}

// NewStore wraps a key/value store.
func NewStore(kv storage.Store) *KVStore {
	return &KVStore{kv: kv}
}

// LoadBalances decodes the balances document. A missing document is an empty ledger.
func (s *KVStore) LoadBalances(ctx context.Context) ([]domain.TokenBalance, error) {
	var balances []domain.TokenBalance
	if err := s.load(ctx, storage.KeyBalances, &balances); err != nil {
		return nil, err
	}
	for _, b := range balances {
		if b.Balance.IsNegative() {
			return nil, fmt.Errorf("%w: token %s has negative balance %s", ErrPersistence, b.ID, b.Balance)
		}
	}
	return balances, nil
}

// LoadTransactions decodes the newest-first transaction log.
func (s *KVStore) LoadTransactions(ctx context.Context) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if err := s.load(ctx, storage.KeyTransactions, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Save encodes both documents and writes them in one storage Put.
func (s *KVStore) Save(ctx context.Context, balances []domain.TokenBalance, transactions []domain.Transaction) error {
	if balances == nil {
		balances = []domain.TokenBalance{}
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	rawBalances, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("%w: encoding balances: %v", ErrPersistence, err)
	}
	rawTxs, err := json.Marshal(transactions)
	if err != nil {
		return fmt.Errorf("%w: encoding transactions: %v", ErrPersistence, err)
	}
	if err := s.kv.Put(ctx, map[string][]byte{
		storage.KeyBalances:     rawBalances,
		storage.KeyTransactions: rawTxs,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *KVStore) load(ctx context.Context, key string, dest any) error {
	entries, err := s.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	raw, ok := entries[key]
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrPersistence, key, err)
	}
	return nil
}
