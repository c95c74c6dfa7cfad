package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
)

// Ledger is the authoritative local record of balances and transactions.
//
// Reads are served lock-free from the last published Snapshot. All writes go
// through a single writer lock that covers the full read-modify-write cycle,
// so concurrent mutations serialize instead of overwriting each other.
type Ledger struct {
	store  Store
	logger *slog.Logger

	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// Open loads the persisted snapshot. If the store is unavailable or its
// content cannot be decoded, the ledger starts empty and logs the failure:
// balances here are simulated demo state, not money of record.
func Open(ctx context.Context, store Store, logger *slog.Logger) *Ledger {
	l := &Ledger{store: store, logger: logger, subs: make(map[int]func(Event))}

	snap := Snapshot{}
	balances, err := store.LoadBalances(ctx)
	if err == nil {
		var txs []domain.Transaction
		txs, err = store.LoadTransactions(ctx)
		if err == nil {
			snap = Snapshot{Balances: balances, Transactions: txs}
		}
	}
	if err != nil {
		logger.Warn("ledger load failed, starting from empty snapshot", slog.Any("error", err))
	}

	l.current.Store(&snap)
	return l
}

// Snapshot returns a copy of the current published state.
func (l *Ledger) Snapshot() Snapshot {
	return l.current.Load().clone()
}

// Balances returns the current token balances.
func (l *Ledger) Balances() []domain.TokenBalance {
	return l.Snapshot().Balances
}

// Transactions returns the transaction log, newest first.
func (l *Ledger) Transactions() []domain.Transaction {
	return l.Snapshot().Transactions
}

// Balance returns a single token balance.
func (l *Ledger) Balance(tokenID string) (domain.TokenBalance, error) {
	return l.current.Load().Balance(tokenID)
}

// TransactionsFor returns the newest-first log for one token.
func (l *Ledger) TransactionsFor(tokenID string) []domain.Transaction {
	return l.current.Load().TransactionsFor(tokenID)
}

// TotalValueUSD sums the current portfolio value.
func (l *Ledger) TotalValueUSD() decimal.Decimal {
	return l.current.Load().TotalValueUSD()
}

// FindByIdempotencyKey returns the transaction recorded for key, if any.
func (l *Ledger) FindByIdempotencyKey(key string) (domain.Transaction, bool) {
	return l.current.Load().ByIdempotencyKey(key)
}

// Commit publishes a new balance snapshot, prepending tx to the log when non-nil.
// It either saves both durably and publishes, or changes nothing.
func (l *Ledger) Commit(ctx context.Context, balances []domain.TokenBalance, tx *domain.Transaction) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.commitLocked(ctx, *l.current.Load(), balances, tx)
}

// Update runs fn against the current snapshot while holding the writer lock
// and commits what it returns. When fn fails nothing is written.
func (l *Ledger) Update(ctx context.Context, fn func(Snapshot) ([]domain.TokenBalance, *domain.Transaction, error)) (Snapshot, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	cur := *l.current.Load()
	balances, tx, err := fn(cur.clone())
	if err != nil {
		return Snapshot{}, err
	}
	if err := l.commitLocked(ctx, cur, balances, tx); err != nil {
		return Snapshot{}, err
	}
	return l.Snapshot(), nil
}

// Amend rewrites one transaction in place. fn receives a copy and may only
// change mutable fields; the ledger rejects edits to anything else.
func (l *Ledger) Amend(ctx context.Context, txID string, fn func(*domain.Transaction) error) (domain.Transaction, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	cur := *l.current.Load()
	idx := -1
	for i, t := range cur.Transactions {
		if t.ID == txID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Transaction{}, ErrTransactionNotFound
	}

	before := cur.Transactions[idx]
	after := before.Clone()
	if err := fn(&after); err != nil {
		return domain.Transaction{}, err
	}
	if !immutableFieldsEqual(before, after) {
		return domain.Transaction{}, errors.New("only status and external hash may change on a recorded transaction")
	}

	txs := append([]domain.Transaction(nil), cur.Transactions...)
	txs[idx] = after
	if err := l.store.Save(ctx, cur.Balances, txs); err != nil {
		return domain.Transaction{}, err
	}
	next := Snapshot{Balances: cur.Balances, Transactions: txs, Version: cur.Version + 1}
	l.publish(next, &after, true)
	return after, nil
}

// Seed installs catalog as the balance set when the ledger holds no tokens yet.
// It reports whether anything was written.
func (l *Ledger) Seed(ctx context.Context, catalog []domain.TokenBalance) (bool, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	cur := *l.current.Load()
	if len(cur.Balances) > 0 || len(catalog) == 0 {
		return false, nil
	}
	if err := l.commitLocked(ctx, cur, catalog, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Subscribe registers fn for every published change and returns a cancel func.
// fn runs on the writer's goroutine while the writer lock is held, so it must
// not call back into the ledger's mutating methods.
func (l *Ledger) Subscribe(fn func(Event)) func() {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.subsMu.Lock()
		defer l.subsMu.Unlock()
		delete(l.subs, id)
	}
}

func (l *Ledger) commitLocked(ctx context.Context, cur Snapshot, balances []domain.TokenBalance, tx *domain.Transaction) error {
	next := make([]domain.TokenBalance, len(balances))
	for i, b := range balances {
		if b.Balance.IsNegative() {
			return fmt.Errorf("%w: token %s", ErrNegativeBalance, b.ID)
		}
		next[i] = b.Revalue()
	}

	txs := cur.Transactions
	if tx != nil {
		txs = make([]domain.Transaction, 0, len(cur.Transactions)+1)
		txs = append(txs, tx.Clone())
		txs = append(txs, cur.Transactions...)
	}

	if err := l.store.Save(ctx, next, txs); err != nil {
		return err
	}
	l.publish(Snapshot{Balances: next, Transactions: txs, Version: cur.Version + 1}, tx, false)
	return nil
}

func (l *Ledger) publish(next Snapshot, tx *domain.Transaction, amended bool) {
	l.current.Store(&next)

	l.subsMu.Lock()
	subs := make([]func(Event), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.subsMu.Unlock()

	for _, fn := range subs {
		fn(Event{Snapshot: next.clone(), Transaction: tx, Amended: amended})
	}
}

func immutableFieldsEqual(a, b domain.Transaction) bool {
	a.Status, b.Status = "", ""
	a.ExternalTxHash, b.ExternalTxHash = "", ""
	a.Confirmed, b.Confirmed = false, false
	return a.Equal(b)
}
