package value

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Decimal is an exact fixed point number: Unscaled × 10^-Scale.
type Decimal struct {
	unscaled *big.Int
	scale    int32
}

// NewDecimal returns unscaled × 10^-scale. A negative scale is folded into
// the unscaled integer.
func NewDecimal(unscaled *big.Int, scale int32) Decimal {
	u := new(big.Int)
	if unscaled != nil {
		u.Set(unscaled)
	}
	if scale < 0 {
		u.Mul(u, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-scale)), nil))
		scale = 0
	}
	return Decimal{unscaled: u, scale: scale}
}

var errInvalidDecimal = errors.New("invalid decimal")

// maxScale bounds the scale reachable through an exponent. Larger magnitudes
// would expand into a big.Int of millions of digits.
const maxScale = 1000

// ParseDecimal parses the textual form of a number ("-12.340", "1e3") without
// losing digits or trailing zeros.
func ParseDecimal(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	mantissa, exp := s, 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return Decimal{}, fmt.Errorf("%w %q: %v", errInvalidDecimal, s, err)
		}
		mantissa, exp = s[:i], e
	}

	neg := false
	switch {
	case strings.HasPrefix(mantissa, "-"):
		neg, mantissa = true, mantissa[1:]
	case strings.HasPrefix(mantissa, "+"):
		mantissa = mantissa[1:]
	}

	intPart, frac, _ := strings.Cut(mantissa, ".")
	digits := intPart + frac
	if digits == "" {
		return Decimal{}, fmt.Errorf("%w %q", errInvalidDecimal, s)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Decimal{}, fmt.Errorf("%w %q", errInvalidDecimal, s)
		}
	}

	u, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("%w %q", errInvalidDecimal, s)
	}
	if neg {
		u.Neg(u)
	}
	scale := int64(len(frac)) - int64(exp)
	if scale > maxScale || scale < -maxScale {
		return Decimal{}, fmt.Errorf("%w %q: exponent out of range", errInvalidDecimal, s)
	}
	return NewDecimal(u, int32(scale)), nil
}

// Unscaled returns a copy of the unscaled integer.
func (d Decimal) Unscaled() *big.Int {
	if d.unscaled == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d.unscaled)
}

// Scale is the number of digits after the decimal point.
func (d Decimal) Scale() int32 { return d.scale }

func (d Decimal) String() string {
	if d.unscaled == nil {
		return "0"
	}
	digits := new(big.Int).Abs(d.unscaled).String()
	if scale := int(d.scale); scale > 0 {
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		cut := len(digits) - scale
		digits = digits[:cut] + "." + digits[cut:]
	}
	if d.unscaled.Sign() < 0 {
		return "-" + digits
	}
	return digits
}

func (Decimal) Kind() Kind           { return KindDecimal }
func (d Decimal) SQLLiteral() string { return d.String() }
func (d Decimal) Label() string      { return d.String() }
func (d Decimal) Arg() any           { return d.String() }
func (Decimal) sealed()              {}
