package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits every Amount carries (wad precision).
const AmountScale = 18

// Amount is a non-negative fixed-point quantity with AmountScale fractional digits.
// The zero value is 0.
type Amount struct {
	d decimal.Decimal
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{}

// NewAmount converts a decimal, truncating anything beyond AmountScale digits.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{d: d.Truncate(AmountScale)}
}

// NewAmountFromInt returns a whole-unit amount.
func NewAmountFromInt(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

// AmountFromWei interprets raw as an integer count of 10^-18 units, as found in token logs.
func AmountFromWei(raw *big.Int) Amount {
	if raw == nil {
		return ZeroAmount
	}
	return Amount{d: decimal.NewFromBigInt(raw, -AmountScale)}
}

// ParseAmount parses a decimal string such as "1.5" or "300".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroAmount, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return NewAmount(d), nil
}

// MustParseAmount is ParseAmount for literals; it panics on malformed input.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Decimal exposes the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// Wei returns the amount as an integer count of 10^-18 units.
func (a Amount) Wei() *big.Int {
	return a.d.Shift(AmountScale).BigInt()
}

// Sub returns a - b. The result may be negative; callers decide what that means.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Div returns a / b rounded to AmountScale digits. Dividing by zero returns false.
func (a Amount) Div(b Amount) (Amount, bool) {
	if b.d.IsZero() {
		return ZeroAmount, false
	}
	return Amount{d: a.d.DivRound(b.d, AmountScale)}, true
}

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

func (a Amount) Equal(b Amount) bool       { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool    { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) IsPositive() bool          { return a.d.IsPositive() }
func (a Amount) IsZero() bool              { return a.d.IsZero() }

// Float64 is lossy and only meant for plotting.
func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}

func (a Amount) String() string {
	return a.d.String()
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return a.d.MarshalJSON()
}

// UnmarshalJSON accepts both quoted strings and bare numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = NewAmount(d)
	return nil
}
