// Package coin implements the CRW monetary amount as a signed 64-bit count
// of satoshis with checked arithmetic and exact decimal conversion.
package coin

import (
	"math"
	"math/big"
	"strings"

	"github.com/crown-blockchain/crownd/errors"
)

// SmallestUnitExponent is the number of decimal places one coin is divided
// into.
const SmallestUnitExponent = 8

// Coin is an amount of satoshis. The full int64 range is representable;
// values outside ±MaxMoney are representable but invalid in a transaction
// output.
type Coin int64

const (
	Zero            Coin = 0
	Satoshi         Coin = 1
	NegativeSatoshi Coin = -1

	// OneCoin is 100,000,000 satoshis.
	OneCoin Coin = 1e8

	// Cent is one hundredth of a coin.
	Cent Coin = 1e6

	// Millicoin is one thousandth of a coin.
	Millicoin Coin = 1e5

	// Microcoin is one millionth of a coin.
	Microcoin Coin = 100

	// MaxMoney is the network money cap: 21 million coins.
	MaxMoney Coin = 21e6 * OneCoin
)

var satoshisPerCoin = big.NewInt(int64(OneCoin))

// NewCoin builds an amount from whole coins and cents. Both parts must share
// the same sign and cents must stay below 100 in magnitude.
func NewCoin(coins, cents int64) (Coin, error) {
	if cents > 99 || cents < -99 {
		return 0, errors.NewInvalidArgumentError("cents out of range: %d", cents)
	}

	if (coins > 0 && cents < 0) || (coins < 0 && cents > 0) {
		return 0, errors.NewInvalidArgumentError("coins and cents must have the same sign")
	}

	c, err := Coin(coins).Mul(int64(OneCoin))
	if err != nil {
		return 0, err
	}

	return c.Add(Coin(cents) * Cent)
}

// Add returns c + other, failing with the overflow error on wraparound.
func (c Coin) Add(other Coin) (Coin, error) {
	sum := c + other
	if (other > 0 && sum < c) || (other < 0 && sum > c) {
		return 0, errors.NewOverflowError("%d + %d overflows", c, other)
	}

	return sum, nil
}

// Sub returns c - other, failing with the overflow error on wraparound.
func (c Coin) Sub(other Coin) (Coin, error) {
	diff := c - other
	if (other < 0 && diff < c) || (other > 0 && diff > c) {
		return 0, errors.NewOverflowError("%d - %d overflows", c, other)
	}

	return diff, nil
}

// Mul returns c * factor, failing with the overflow error on wraparound.
func (c Coin) Mul(factor int64) (Coin, error) {
	if c == 0 || factor == 0 {
		return 0, nil
	}

	if int64(c) == math.MinInt64 && factor == -1 {
		return 0, errors.NewOverflowError("%d * %d overflows", c, factor)
	}

	product := int64(c) * factor
	if product/factor != int64(c) {
		return 0, errors.NewOverflowError("%d * %d overflows", c, factor)
	}

	return Coin(product), nil
}

// Div returns c divided by the given divisor, truncated toward zero.
func (c Coin) Div(divisor int64) (Coin, error) {
	if divisor == 0 {
		return 0, errors.NewInvalidArgumentError("division by zero")
	}

	if int64(c) == math.MinInt64 && divisor == -1 {
		return 0, errors.NewOverflowError("%d / %d overflows", c, divisor)
	}

	return c / Coin(divisor), nil
}

// DivideBy returns how many times other fits into c.
func (c Coin) DivideBy(other Coin) (int64, error) {
	if other == 0 {
		return 0, errors.NewInvalidArgumentError("division by zero")
	}

	return int64(c) / int64(other), nil
}

func (c Coin) Negate() Coin { return -c }

func (c Coin) Abs() Coin {
	if c < 0 {
		return -c
	}
	return c
}

func (c Coin) IsPositive() bool { return c > 0 }
func (c Coin) IsNegative() bool { return c < 0 }
func (c Coin) IsZero() bool     { return c == 0 }

// InRange reports whether the amount is a valid transaction output value.
func (c Coin) InRange() bool {
	return c >= 0 && c <= MaxMoney
}

// ParseCoin converts a decimal coin string to satoshis. Scientific notation
// is accepted. Inputs with more than 8 fractional digits, or whose satoshi
// value falls outside the int64 range, are rejected.
func ParseCoin(s string) (Coin, error) {
	return parse(s, true)
}

// ParseCoinInexact is like ParseCoin but truncates excess precision toward
// zero instead of rejecting it.
func ParseCoinInexact(s string) (Coin, error) {
	return parse(s, false)
}

func parse(s string, exact bool) (Coin, error) {
	if s == "" {
		return 0, errors.NewInvalidArgumentError("empty amount")
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, errors.NewInvalidArgumentError("invalid decimal amount: %q", s)
	}

	// shift the decimal point right by the smallest unit exponent
	r.Mul(r, new(big.Rat).SetInt(satoshisPerCoin))

	if !r.IsInt() {
		if exact {
			return 0, errors.NewInvalidArgumentError("amount %q has fractional satoshis", s)
		}

		// truncate toward zero
		q := new(big.Int).Quo(r.Num(), r.Denom())
		r.SetInt(q)
	}

	v := r.Num()
	if !v.IsInt64() {
		return 0, errors.NewOverflowError("amount %q out of range", s)
	}

	return Coin(v.Int64()), nil
}

// FromDecimal converts a whole-coin decimal value to satoshis, rejecting
// excess precision and values outside the int64 satoshi range.
func FromDecimal(d *big.Rat) (Coin, error) {
	r := new(big.Rat).Mul(d, new(big.Rat).SetInt(satoshisPerCoin))
	if !r.IsInt() {
		return 0, errors.NewInvalidArgumentError("amount has fractional satoshis")
	}

	if !r.Num().IsInt64() {
		return 0, errors.NewOverflowError("amount out of range")
	}

	return Coin(r.Num().Int64()), nil
}

// ToDecimal converts the amount to a whole-coin decimal value.
func (c Coin) ToDecimal() *big.Rat {
	return new(big.Rat).SetFrac(big.NewInt(int64(c)), satoshisPerCoin)
}

// String renders the amount as a minimal decimal coin value, e.g. "0.01".
func (c Coin) String() string {
	neg := c < 0

	// avoid negating MinInt64; format the digits from the decimal string of
	// the absolute value computed in big form
	v := new(big.Int).SetInt64(int64(c))
	v.Abs(v)

	digits := v.String()
	if len(digits) <= SmallestUnitExponent {
		digits = strings.Repeat("0", SmallestUnitExponent-len(digits)+1) + digits
	}

	intPart := digits[:len(digits)-SmallestUnitExponent]
	fracPart := strings.TrimRight(digits[len(digits)-SmallestUnitExponent:], "0")

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}

	if neg {
		out = "-" + out
	}

	return out
}
