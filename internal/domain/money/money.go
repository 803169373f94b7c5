// Package money holds the ledger currency rules: precision, provider unit scaling
// and the equal-split allocation of multi-month payments.
package money

import (
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LedgerPlaces is the number of fractional digits stored for UZS amounts.
const LedgerPlaces int32 = 2

// providerScale is the number of provider units per ledger currency unit.
// Payme sends amounts in tiyin, Click in sum.
var providerScale = map[shared.PaymentSource]int64{
	shared.PaymentSourceClick: 1,
	shared.PaymentSourcePayme: 100,
}

// Scale returns the provider unit factor; sources without an entry use the ledger unit.
func Scale(provider shared.PaymentSource) decimal.Decimal {
	if f, ok := providerScale[provider]; ok {
		return decimal.NewFromInt(f)
	}
	return decimal.NewFromInt(1)
}

// FromProviderUnits converts a provider amount into ledger currency.
func FromProviderUnits(provider shared.PaymentSource, amount decimal.Decimal) (decimal.Decimal, error) {
	converted := amount.Div(Scale(provider))
	if !converted.Equal(converted.Truncate(LedgerPlaces)) {
		return decimal.Zero, shared.CurrencyScaleMismatchError{Provider: provider, Amount: amount.String()}
	}
	return converted.Truncate(LedgerPlaces), nil
}

// ToProviderUnits converts a ledger amount into the provider's units.
func ToProviderUnits(provider shared.PaymentSource, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(Scale(provider))
}

// ValidAmount reports whether amount is positive and fits ledger precision.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(LedgerPlaces))
}

// SplitEqual divides amount into n shares. Every share is floored to ledger precision
// and the remainder goes to the last share, so the shares always sum to amount.
func SplitEqual(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	shares := make([]decimal.Decimal, n)
	share := amount.Div(decimal.NewFromInt(int64(n))).RoundFloor(LedgerPlaces)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		shares[i] = share
		allocated = allocated.Add(share)
	}
	shares[n-1] = amount.Sub(allocated)
	return shares
}
