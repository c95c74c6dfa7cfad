package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind tags a transaction as one of the supported ledger movements.
type Kind string

const (
	KindSend    Kind = "send"
	KindReceive Kind = "receive"
	KindSwap    Kind = "swap"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSend, KindReceive, KindSwap:
		return true
	default:
		return false
	}
}

// UnmarshalText rejects unknown kinds so corrupt records never load silently.
func (k *Kind) UnmarshalText(text []byte) error {
	v := Kind(text)
	if !v.Valid() {
		return fmt.Errorf("unknown transaction kind %q", string(text))
	}
	*k = v
	return nil
}

// Status is the settlement state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// UnmarshalText rejects unknown statuses.
func (s *Status) UnmarshalText(text []byte) error {
	v := Status(text)
	if !v.Valid() {
		return fmt.Errorf("unknown transaction status %q", string(text))
	}
	*s = v
	return nil
}

// Transaction is an append-only ledger record. Only Status and ExternalTxHash
// change after creation, and only once (Confirmed marks that the update happened).
type Transaction struct {
	ID             string           `json:"id"`
	Kind           Kind             `json:"kind"`
	TokenID        string           `json:"tokenId"`
	Amount         decimal.Decimal  `json:"amount"`
	TimestampMs    int64            `json:"timestampMs"`
	Status         Status           `json:"status"`
	Counterparty   string           `json:"counterpartyAddress,omitempty"`
	FeeAmount      *decimal.Decimal `json:"feeAmount,omitempty"`
	Note           string           `json:"note,omitempty"`
	ExternalTxHash string           `json:"externalTxHash,omitempty"`
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
	Confirmed      bool             `json:"confirmed,omitempty"`
}

// Clone returns a copy that shares no pointers with t.
func (t Transaction) Clone() Transaction {
	if t.FeeAmount != nil {
		fee := *t.FeeAmount
		t.FeeAmount = &fee
	}
	return t
}

// Equal reports structural equality, comparing decimals by value.
func (t Transaction) Equal(o Transaction) bool {
	if (t.FeeAmount == nil) != (o.FeeAmount == nil) {
		return false
	}
	if t.FeeAmount != nil && !t.FeeAmount.Equal(*o.FeeAmount) {
		return false
	}
	return t.ID == o.ID &&
		t.Kind == o.Kind &&
		t.TokenID == o.TokenID &&
		t.Amount.Equal(o.Amount) &&
		t.TimestampMs == o.TimestampMs &&
		t.Status == o.Status &&
		t.Counterparty == o.Counterparty &&
		t.Note == o.Note &&
		t.ExternalTxHash == o.ExternalTxHash &&
		t.IdempotencyKey == o.IdempotencyKey &&
		t.Confirmed == o.Confirmed
}

// Describe renders a short human summary of the transaction.
func (t Transaction) Describe(symbol string) string {
	switch t.Kind {
	case KindSend:
		return fmt.Sprintf("Sent %s %s", t.Amount, symbol)
	case KindReceive:
		return fmt.Sprintf("Received %s %s", t.Amount, symbol)
	case KindSwap:
		if t.Note != "" {
			return t.Note
		}
		return fmt.Sprintf("Swapped %s %s", t.Amount, symbol)
	default:
		return "Unknown transaction"
	}
}
