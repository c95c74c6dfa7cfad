package notification

import (
	"context"
	"log/slog"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/ledger"
)

const (
	// KindTransactionRecorded is emitted when a new transaction is committed.
	KindTransactionRecorded = "transaction_recorded"
	// KindTransactionConfirmed is emitted when a transaction receives its confirmation.
	KindTransactionConfirmed = "transaction_confirmed"
	// KindBalancesRefreshed is emitted when balances change without a transaction.
	KindBalancesRefreshed = "balances_refreshed"
)

// Message describes a notification payload. It never carries key material.
type Message struct {
	Kind          string
	TransactionID string
	TokenID       string
	Amount        string
	Status        domain.Status
	Body          string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("transaction_id", message.TransactionID),
		slog.String("token_id", message.TokenID),
		slog.String("amount", message.Amount),
		slog.String("status", string(message.Status)),
		slog.String("body", message.Body),
	)
	return nil
}

// Forward subscribes n to every ledger change and returns the cancel func.
// Delivery runs on the committing goroutine, so n must be quick.
func Forward(l *ledger.Ledger, n Notifier, logger *slog.Logger) func() {
	return l.Subscribe(func(e ledger.Event) {
		msg := FromEvent(e)
		if err := n.Send(context.Background(), msg); err != nil {
			logger.Warn("notification delivery failed", slog.String("kind", msg.Kind), slog.Any("error", err))
		}
	})
}

// FromEvent builds the message describing a ledger event.
func FromEvent(e ledger.Event) Message {
	if e.Transaction == nil {
		return Message{Kind: KindBalancesRefreshed, Body: "balances updated"}
	}
	tx := *e.Transaction
	symbol := tx.TokenID
	if tok, err := e.Snapshot.Balance(tx.TokenID); err == nil {
		symbol = tok.Symbol
	}
	kind := KindTransactionRecorded
	if e.Amended {
		kind = KindTransactionConfirmed
	}
	return Message{
		Kind:          kind,
		TransactionID: tx.ID,
		TokenID:       tx.TokenID,
		Amount:        tx.Amount.String(),
		Status:        tx.Status,
		Body:          tx.Describe(symbol),
	}
}
