package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func usdt() domain.TokenBalance {
	return domain.TokenBalance{ID: "usdt", Name: "Tether", Symbol: "USDT", Decimals: 6, UnitPrice: decimal.NewFromInt(1)}
}

func tx(id string, amount int64) *domain.Transaction {
	return &domain.Transaction{
		ID:          id,
		Kind:        domain.KindSend,
		TokenID:     "usdt",
		Amount:      decimal.NewFromInt(amount),
		TimestampMs: 1_700_000_000_000,
		Status:      domain.StatusCompleted,
	}
}

func TestOpenCorruptStoreStartsEmpty(t *testing.T) {
	kv := storage.NewMemory()
	storage.SeedRaw(kv, storage.KeyBalances, []byte(`{not json`))

	l := Open(context.Background(), NewStore(kv), discardLogger())
	snap := l.Snapshot()
	if len(snap.Balances) != 0 || len(snap.Transactions) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestOpenRejectsNegativePersistedBalance(t *testing.T) {
	kv := storage.NewMemory()
	storage.SeedRaw(kv, storage.KeyBalances, []byte(`[{"id":"usdt","balance":"-1"}]`))

	if _, err := NewStore(kv).LoadBalances(context.Background()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	l := Open(context.Background(), NewStore(kv), discardLogger())
	if len(l.Balances()) != 0 {
		t.Fatalf("expected empty ledger after invalid load")
	}
}

func TestCommitOrdersNewestFirst(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	SeedBalance(l, usdt(), "100")

	bal := l.Balances()
	if err := l.Commit(ctx, bal, tx("t1", 1)); err != nil {
		t.Fatalf("commit t1: %v", err)
	}
	if err := l.Commit(ctx, bal, tx("t2", 2)); err != nil {
		t.Fatalf("commit t2: %v", err)
	}

	txs := l.Transactions()
	if len(txs) != 2 || txs[0].ID != "t2" || txs[1].ID != "t1" {
		t.Fatalf("unexpected order: %+v", txs)
	}
}

func TestCommitRevaluesBalances(t *testing.T) {
	l := NewInMemory()
	tok := usdt()
	tok.UnitPrice = decimal.RequireFromString("2.5")
	SeedBalance(l, tok, "4")

	got, err := l.Balance("usdt")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !got.ValueUSD.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected valueUsd 10, got %s", got.ValueUSD)
	}
}

func TestCommitRejectsNegativeBalance(t *testing.T) {
	l := NewInMemory()
	SeedBalance(l, usdt(), "5")
	before := l.Snapshot()

	neg := usdt()
	neg.Balance = decimal.NewFromInt(-1)
	err := l.Commit(context.Background(), []domain.TokenBalance{neg}, tx("t1", 6))
	if !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("expected negative balance error, got %v", err)
	}
	if !l.Snapshot().Equal(before) {
		t.Fatalf("snapshot changed after rejected commit")
	}
}

func TestSaveFailureLeavesSnapshotUntouched(t *testing.T) {
	kv := storage.NewMemory()
	l := Open(context.Background(), NewStore(kv), discardLogger())
	SeedBalance(l, usdt(), "100")
	before := l.Snapshot()

	storage.FailPuts(kv, errors.New("disk full"))
	spent := usdt()
	spent.Balance = decimal.NewFromInt(70)
	err := l.Commit(context.Background(), []domain.TokenBalance{spent}, tx("t1", 30))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	after := l.Snapshot()
	if !after.Equal(before) || after.Version != before.Version {
		t.Fatalf("snapshot changed after failed save: %+v", after)
	}
}

func TestReopenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	ctx := context.Background()
	l := Open(ctx, NewStore(fs), discardLogger())
	SeedBalance(l, usdt(), "100")
	fee := decimal.RequireFromString("0.01")
	t1 := tx("t1", 3)
	t1.FeeAmount = &fee
	t1.Note = "hello"
	if err := l.Commit(ctx, l.Balances(), t1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	want := l.Snapshot()

	fs2, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	got := Open(ctx, NewStore(fs2), discardLogger()).Snapshot()
	if !got.Equal(want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	l := NewInMemory()
	SeedBalance(l, usdt(), "1000")
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Update(ctx, func(s Snapshot) ([]domain.TokenBalance, *domain.Transaction, error) {
				s.Balances[0].Balance = s.Balances[0].Balance.Sub(decimal.NewFromInt(10))
				return s.Balances, tx(fmt.Sprintf("tx-%d", i), 10), nil
			})
			if err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := l.Balance("usdt")
	if !got.Balance.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("expected 800 after %d debits, got %s", workers, got.Balance)
	}
	if n := len(l.Transactions()); n != workers {
		t.Fatalf("expected %d transactions, got %d", workers, n)
	}
}

func TestUpdateErrorWritesNothing(t *testing.T) {
	l := NewInMemory()
	SeedBalance(l, usdt(), "1")
	before := l.Snapshot()

	boom := errors.New("rejected")
	_, err := l.Update(context.Background(), func(s Snapshot) ([]domain.TokenBalance, *domain.Transaction, error) {
		s.Balances[0].Balance = decimal.Zero
		return nil, nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if !l.Snapshot().Equal(before) {
		t.Fatalf("snapshot changed")
	}
}

func TestAmendUpdatesOnlyMutableFields(t *testing.T) {
	l := NewInMemory()
	SeedBalance(l, usdt(), "10")
	ctx := context.Background()
	pending := tx("t1", 1)
	pending.Status = domain.StatusPending
	if err := l.Commit(ctx, l.Balances(), pending); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := l.Amend(ctx, "t1", func(tr *domain.Transaction) error {
		tr.Status = domain.StatusCompleted
		tr.ExternalTxHash = "0xabc"
		return nil
	})
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.ExternalTxHash != "0xabc" {
		t.Fatalf("unexpected amended tx: %+v", got)
	}

	if _, err := l.Amend(ctx, "t1", func(tr *domain.Transaction) error {
		tr.Amount = decimal.NewFromInt(99)
		return nil
	}); err == nil {
		t.Fatalf("expected amount change to be rejected")
	}
	if _, err := l.Amend(ctx, "missing", func(*domain.Transaction) error { return nil }); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAmendCannotRewriteFeeThroughPointer(t *testing.T) {
	l := NewInMemory()
	SeedBalance(l, usdt(), "10")
	ctx := context.Background()
	swap := tx("t1", 1)
	swap.Status = domain.StatusPending
	fee := decimal.RequireFromString("0.01")
	swap.FeeAmount = &fee
	if err := l.Commit(ctx, l.Balances(), swap); err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, err := l.Amend(ctx, "t1", func(tr *domain.Transaction) error {
		*tr.FeeAmount = decimal.NewFromInt(5)
		tr.Status = domain.StatusCompleted
		return nil
	})
	if err == nil {
		t.Fatalf("expected fee change to be rejected")
	}

	stored := l.Transactions()[0]
	if !stored.FeeAmount.Equal(decimal.RequireFromString("0.01")) || stored.Status != domain.StatusPending {
		t.Fatalf("published transaction changed: fee %s status %s", stored.FeeAmount, stored.Status)
	}

	// Mutating a read copy does not reach the published snapshot either.
	*l.Transactions()[0].FeeAmount = decimal.NewFromInt(7)
	if !l.Transactions()[0].FeeAmount.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("read copy aliases the published fee")
	}
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	seeded, err := l.Seed(ctx, domain.DefaultCatalog())
	if err != nil || !seeded {
		t.Fatalf("expected first seed to write, got %v %v", seeded, err)
	}
	seeded, err = l.Seed(ctx, []domain.TokenBalance{usdt()})
	if err != nil || seeded {
		t.Fatalf("expected second seed to be a no-op, got %v %v", seeded, err)
	}
	if n := len(l.Balances()); n != len(domain.DefaultCatalog()) {
		t.Fatalf("expected catalog balances, got %d", n)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	l := NewInMemory()
	SeedBalance(l, usdt(), "10")

	var events []Event
	cancel := l.Subscribe(func(e Event) { events = append(events, e) })

	if err := l.Commit(context.Background(), l.Balances(), tx("t1", 1)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cancel()
	if err := l.Commit(context.Background(), l.Balances(), tx("t2", 1)); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Transaction == nil || events[0].Transaction.ID != "t1" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
	if len(events[0].Snapshot.Transactions) != 1 {
		t.Fatalf("event snapshot should include the committed transaction")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l := NewInMemory()
	SeedBalance(l, usdt(), "10")

	snap := l.Snapshot()
	snap.Balances[0].Balance = decimal.NewFromInt(999)

	got, _ := l.Balance("usdt")
	if !got.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("published snapshot was mutated through a copy")
	}
}
