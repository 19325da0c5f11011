package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount in a specific ISO 4217 currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// currencyExponents lists currencies whose minor-unit exponent differs from
// the default of 2 (ISO 4217).
var currencyExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0,
	"VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// Exponent returns the number of minor-unit digits for the given currency.
func Exponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// New creates a Money value. The currency code is upper-cased.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}
}

// FromString parses a decimal string such as "19.99" into a Money value.
func FromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return New(d, currency), nil
}

// FromMinorUnits converts an integer amount in the currency's smallest
// denomination (e.g. cents) into a Money value.
func FromMinorUnits(units int64, currency string) Money {
	return New(decimal.New(units, -Exponent(currency)), currency)
}

// MinorUnits converts the amount to the currency's smallest denomination.
// It fails if the amount carries more precision than the currency allows,
// rather than rounding money silently.
func (m Money) MinorUnits() (int64, error) {
	shifted := m.Amount.Shift(Exponent(m.Currency))
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-minor-unit precision for %s", m.Amount.String(), m.Currency)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s overflows minor units for %s", m.Amount.String(), m.Currency)
	}
	return shifted.IntPart(), nil
}

// Format renders the amount with exactly the currency's minor-unit digits,
// the form most provider APIs expect ("19.99" for USD, "1172" for JPY).
func (m Money) Format() string {
	return m.Amount.StringFixed(Exponent(m.Currency))
}

// String implements fmt.Stringer.
func (m Money) String() string {
	return m.Format() + " " + m.Currency
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Equal reports whether two Money values have the same currency and amount.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// Add returns the sum of two Money values in the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns the difference of two Money values in the same currency.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// GreaterThan reports whether m exceeds other. Both must share a currency;
// a mismatch reports false.
func (m Money) GreaterThan(other Money) bool {
	return m.Currency == other.Currency && m.Amount.GreaterThan(other.Amount)
}

// Validate checks that the money value can be sent to a provider.
func (m Money) Validate() error {
	if len(m.Currency) != 3 {
		return fmt.Errorf("invalid currency code %q", m.Currency)
	}
	if _, err := m.MinorUnits(); err != nil {
		return err
	}
	return nil
}
