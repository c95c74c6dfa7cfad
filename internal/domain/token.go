package domain

import (
	"github.com/shopspring/decimal"
)

// TokenBalance is the ledger's view of one token held by the wallet.
type TokenBalance struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Symbol    string          `json:"symbol"`
	Decimals  int             `json:"decimals"`
	Balance   decimal.Decimal `json:"balance"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Change24h decimal.Decimal `json:"change24h"`
	ValueUSD  decimal.Decimal `json:"valueUsd"`
}

// Revalue returns a copy with ValueUSD recomputed from Balance and UnitPrice.
func (t TokenBalance) Revalue() TokenBalance {
	t.ValueUSD = t.Balance.Mul(t.UnitPrice)
	return t
}

// WithBalance returns a revalued copy holding the given balance.
func (t TokenBalance) WithBalance(balance decimal.Decimal) TokenBalance {
	t.Balance = balance
	return t.Revalue()
}

// Equal reports structural equality, comparing decimals by value.
func (t TokenBalance) Equal(o TokenBalance) bool {
	return t.ID == o.ID &&
		t.Name == o.Name &&
		t.Symbol == o.Symbol &&
		t.Decimals == o.Decimals &&
		t.Balance.Equal(o.Balance) &&
		t.UnitPrice.Equal(o.UnitPrice) &&
		t.Change24h.Equal(o.Change24h) &&
		t.ValueUSD.Equal(o.ValueUSD)
}

// DefaultCatalog returns the demo token set with zero balances.
func DefaultCatalog() []TokenBalance {
	catalog := []TokenBalance{
		{ID: "0xe1cdd8F52FcBf06cb4582f4816a2634a842D5bBC", Name: "Algorithm X", Symbol: "ALGOX", Decimals: 6, UnitPrice: decimal.RequireFromString("1.00")},
		{ID: "0x779877A7B0D9E8603169DdbD7836e478b4624789", Name: "Chain Link", Symbol: "LINK", Decimals: 18, UnitPrice: decimal.RequireFromString("14.52")},
		{ID: "0x4ffD88e2DB68323585986233CEDf0ff087C72D30", Name: "Bella", Symbol: "BEL", Decimals: 18, UnitPrice: decimal.RequireFromString("0.85")},
		{ID: "0x06DDeeD3D2Eb3dEad723c037b89E4384BFb29Bf8", Name: "AstarX", Symbol: "ASTX", Decimals: 18, UnitPrice: decimal.RequireFromString("0.12")},
	}
	for i := range catalog {
		catalog[i] = catalog[i].Revalue()
	}
	return catalog
}
