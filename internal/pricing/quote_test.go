package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
)

func token(id, price string) domain.TokenBalance {
	return domain.TokenBalance{ID: id, Symbol: id, UnitPrice: decimal.RequireFromString(price)}
}

func TestQuoteSwapScenario(t *testing.T) {
	q, err := QuoteSwap(token("A", "2"), token("B", "4"), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("QuoteSwap: %v", err)
	}
	if !q.AmountOut.Equal(decimal.RequireFromString("4.95")) {
		t.Errorf("AmountOut = %s, want 4.95", q.AmountOut)
	}
	if !q.Fee.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("Fee = %s, want 0.10", q.Fee)
	}
	if !q.Rate.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("Rate = %s, want 0.5", q.Rate)
	}
}

func TestQuoteSwapFormula(t *testing.T) {
	tests := []struct {
		name      string
		fromPrice string
		toPrice   string
		amountIn  string
		wantOut   string
		wantFee   string
	}{
		{"equal prices", "1", "1", "100", "99", "1"},
		{"cheap to expensive", "0.85", "14.52", "250", "14.488636", "2.5"},
		{"repeating ratio rounds", "1", "3", "1", "0.33", "0.01"},
		{"thirds of non multiple", "1", "3", "2", "0.66", "0.02"},
		{"sub cent input", "1", "7", "0.001", "0.000141", "0.00001"},
		{"expensive to cheap", "14.52", "0.12", "3", "359.37", "0.03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := QuoteSwap(token("A", tt.fromPrice), token("B", tt.toPrice), decimal.RequireFromString(tt.amountIn))
			if err != nil {
				t.Fatalf("QuoteSwap: %v", err)
			}
			if !q.AmountOut.Equal(decimal.RequireFromString(tt.wantOut)) {
				t.Errorf("AmountOut = %s, want %s", q.AmountOut, tt.wantOut)
			}
			if !q.Fee.Equal(decimal.RequireFromString(tt.wantFee)) {
				t.Errorf("Fee = %s, want %s", q.Fee, tt.wantFee)
			}
			wantFee := decimal.RequireFromString(tt.amountIn).Mul(decimal.RequireFromString("0.01"))
			if !q.Fee.Equal(wantFee) {
				t.Errorf("Fee = %s, want exactly amountIn*0.01 = %s", q.Fee, wantFee)
			}
		})
	}
}

func TestQuoteSwapErrors(t *testing.T) {
	tests := []struct {
		name     string
		from, to domain.TokenBalance
		amount   string
		want     error
	}{
		{"zero amount", token("A", "1"), token("B", "1"), "0", ErrInvalidAmount},
		{"negative amount", token("A", "1"), token("B", "1"), "-5", ErrInvalidAmount},
		{"zero destination price", token("A", "1"), token("B", "0"), "1", ErrInvalidPrice},
		{"zero source price", token("A", "0"), token("B", "1"), "1", ErrInvalidPrice},
		{"negative price", token("A", "-1"), token("B", "1"), "1", ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := QuoteSwap(tt.from, tt.to, decimal.RequireFromString(tt.amount))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestQuoteSwapDeterministic(t *testing.T) {
	from, to := token("A", "0.85"), token("B", "14.52")
	amount := decimal.RequireFromString("123.456")
	first, err := QuoteSwap(from, to, amount)
	if err != nil {
		t.Fatalf("QuoteSwap: %v", err)
	}
	for i := 0; i < 50; i++ {
		q, err := QuoteSwap(from, to, amount)
		if err != nil {
			t.Fatalf("QuoteSwap iteration %d: %v", i, err)
		}
		if !q.AmountOut.Equal(first.AmountOut) || !q.Fee.Equal(first.Fee) {
			t.Fatalf("quote changed between calls: %+v vs %+v", q, first)
		}
	}
	if !from.UnitPrice.Equal(decimal.RequireFromString("0.85")) {
		t.Fatal("QuoteSwap mutated its input")
	}
}

func TestMinimumReceived(t *testing.T) {
	q := Quote{AmountOut: decimal.RequireFromString("4.95")}

	tests := []struct {
		slippage string
		want     string
	}{
		{"0.5", "4.92525"},
		{"1", "4.9005"},
		{"0", "4.95"},
		{"-3", "4.95"},
		{"150", "0"},
	}
	for _, tt := range tests {
		got := q.MinimumReceived(decimal.RequireFromString(tt.slippage))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("MinimumReceived(%s) = %s, want %s", tt.slippage, got, tt.want)
		}
	}
}
