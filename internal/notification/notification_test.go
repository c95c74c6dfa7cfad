package notification

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/ledger"
	"github.com/congo-pay/tokenledger/internal/logging"
)

type recordingNotifier struct {
	messages []Message
}

func (n *recordingNotifier) Send(_ context.Context, msg Message) error {
	n.messages = append(n.messages, msg)
	return nil
}

func TestForwardDescribesLedgerEvents(t *testing.T) {
	l := ledger.NewInMemory()
	ledger.SeedBalance(l, domain.TokenBalance{ID: "usdt", Symbol: "USDT", UnitPrice: decimal.NewFromInt(1)}, "10")

	n := &recordingNotifier{}
	cancel := Forward(l, n, logging.Discard())
	defer cancel()

	ctx := context.Background()
	tx := &domain.Transaction{
		ID: "t1", Kind: domain.KindReceive, TokenID: "usdt",
		Amount: decimal.NewFromInt(3), TimestampMs: 1, Status: domain.StatusPending,
	}
	if err := l.Commit(ctx, l.Balances(), tx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := l.Amend(ctx, "t1", func(tr *domain.Transaction) error {
		tr.Status = domain.StatusCompleted
		return nil
	}); err != nil {
		t.Fatalf("amend: %v", err)
	}
	if err := l.Commit(ctx, l.Balances(), nil); err != nil {
		t.Fatalf("commit balances: %v", err)
	}

	if len(n.messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(n.messages))
	}
	first := n.messages[0]
	if first.Kind != KindTransactionRecorded || first.Body != "Received 3 USDT" || first.Amount != "3" {
		t.Fatalf("unexpected first message %+v", first)
	}
	if n.messages[1].Kind != KindTransactionConfirmed || n.messages[1].Status != domain.StatusCompleted {
		t.Fatalf("unexpected confirmation message %+v", n.messages[1])
	}
	if n.messages[2].Kind != KindBalancesRefreshed {
		t.Fatalf("unexpected refresh message %+v", n.messages[2])
	}
}

func TestLoggerNotifierNilSafe(t *testing.T) {
	var n *LoggerNotifier
	if err := n.Send(context.Background(), Message{Kind: KindBalancesRefreshed}); err != nil {
		t.Fatalf("nil notifier: %v", err)
	}
}
