package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/tokenledger/internal/domain"
)

const amountPrecision = 6

var (
	// ErrInvalidPrice is returned when a token price cannot be used as a divisor or rate.
	ErrInvalidPrice = errors.New("invalid unit price")

	// ErrInvalidAmount is returned for zero or negative swap input.
	ErrInvalidAmount = errors.New("amount must be positive")
)

var (
	// FeeRate is the share of the input amount charged per swap.
	FeeRate = decimal.RequireFromString("0.01")

	// DefaultSlippage is the tolerance, in percent, shown alongside quotes.
	DefaultSlippage = decimal.RequireFromString("0.5")

	hundred = decimal.NewFromInt(100)
)

// Quote is the estimated outcome of swapping AmountIn of one token for another.
type Quote struct {
	FromTokenID string          `json:"fromTokenId"`
	ToTokenID   string          `json:"toTokenId"`
	AmountIn    decimal.Decimal `json:"amountIn"`
	AmountOut   decimal.Decimal `json:"amountOut"`
	Fee         decimal.Decimal `json:"fee"`
	Rate        decimal.Decimal `json:"rate"`
}

// QuoteSwap prices a swap from the unit prices of both tokens.
// amountOut = amountIn * (from.UnitPrice / to.UnitPrice) * (1 - FeeRate), rounded to 6 places.
// Both prices must be positive. A zero or negative source price is rejected with
// ErrInvalidPrice even though the formula only divides by to.UnitPrice, since it
// would credit nothing or a negative amount for a real debit.
func QuoteSwap(from, to domain.TokenBalance, amountIn decimal.Decimal) (Quote, error) {
	if !amountIn.IsPositive() {
		return Quote{}, ErrInvalidAmount
	}
	if !from.UnitPrice.IsPositive() || !to.UnitPrice.IsPositive() {
		return Quote{}, ErrInvalidPrice
	}

	fee := amountIn.Mul(FeeRate)
	// Multiply before dividing so exact ratios stay exact.
	gross := amountIn.Mul(from.UnitPrice).Mul(decimal.NewFromInt(1).Sub(FeeRate))
	out := gross.Div(to.UnitPrice).Round(amountPrecision)

	return Quote{
		FromTokenID: from.ID,
		ToTokenID:   to.ID,
		AmountIn:    amountIn,
		AmountOut:   out,
		Fee:         fee,
		Rate:        from.UnitPrice.Div(to.UnitPrice),
	}, nil
}

// MinimumReceived applies a slippage tolerance (percent) to AmountOut.
// Negative tolerances are treated as zero; the engine never enforces the result.
func (q Quote) MinimumReceived(slippagePct decimal.Decimal) decimal.Decimal {
	if slippagePct.IsNegative() {
		slippagePct = decimal.Zero
	}
	if slippagePct.GreaterThan(hundred) {
		slippagePct = hundred
	}
	return q.AmountOut.Mul(hundred.Sub(slippagePct)).Div(hundred).Round(amountPrecision)
}

// Round6 rounds d to the precision used for swap output.
func Round6(d decimal.Decimal) decimal.Decimal {
	return d.Round(amountPrecision)
}
