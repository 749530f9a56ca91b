// Package amount implements base-unit integer arithmetic where any operand may
// be undefined. Undefined values propagate through every operation instead of
// failing, so fee and amount arithmetic over partially populated upstream
// responses never panics.
package amount

import (
	"fmt"
	"math/big"
	"strings"
)

// Amount is an arbitrary precision integer or the undefined value.
// The zero value is undefined.
type Amount struct {
	v *big.Int
}

func Undefined() Amount { return Amount{} }

func Zero() Amount { return Amount{v: new(big.Int)} }

func FromInt64(n int64) Amount { return Amount{v: big.NewInt(n)} }

// FromBig copies n. A nil n is undefined.
func FromBig(n *big.Int) Amount {
	if n == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(n)}
}

// Parse reads a decimal or 0x-prefixed hex integer. Empty or malformed input
// is undefined.
func Parse(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}
	}
	neg := false
	body := s
	if strings.HasPrefix(body, "-") {
		neg = true
		body = body[1:]
	}
	base := 10
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		base = 16
		body = body[2:]
	}
	// SetString accepts its own sign, so one left after the prefix is a second sign.
	if body == "" || body[0] == '+' || body[0] == '-' {
		return Amount{}
	}
	n, ok := new(big.Int).SetString(body, base)
	if !ok {
		return Amount{}
	}
	if neg {
		n.Neg(n)
	}
	return Amount{v: n}
}

func (a Amount) Defined() bool { return a.v != nil }

// Big returns a copy of the value, or nil when undefined.
func (a Amount) Big() *big.Int {
	if a.v == nil {
		return nil
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) Add(b Amount) Amount {
	if a.v == nil || b.v == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Add(a.v, b.v)}
}

func (a Amount) Sub(b Amount) Amount {
	if a.v == nil || b.v == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Sub(a.v, b.v)}
}

func (a Amount) Mul(b Amount) Amount {
	if a.v == nil || b.v == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Mul(a.v, b.v)}
}

// Div is floor division. Division by zero is undefined.
func (a Amount) Div(b Amount) Amount {
	if a.v == nil || b.v == nil || b.v.Sign() == 0 {
		return Amount{}
	}
	q, r := new(big.Int).QuoRem(a.v, b.v, new(big.Int))
	if r.Sign() != 0 && (r.Sign() < 0) != (b.v.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return Amount{v: q}
}

func (a Amount) Neg() Amount {
	if a.v == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Neg(a.v)}
}

func (a Amount) Abs() Amount {
	if a.v == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Abs(a.v)}
}

// Eq reports value equality. Two undefined amounts are equal.
func (a Amount) Eq(b Amount) bool {
	if a.v == nil || b.v == nil {
		return a.v == nil && b.v == nil
	}
	return a.v.Cmp(b.v) == 0
}

func (a Amount) Lt(b Amount) bool { return a.cmp(b, func(c int) bool { return c < 0 }) }
func (a Amount) Le(b Amount) bool { return a.cmp(b, func(c int) bool { return c <= 0 }) }
func (a Amount) Gt(b Amount) bool { return a.cmp(b, func(c int) bool { return c > 0 }) }
func (a Amount) Ge(b Amount) bool { return a.cmp(b, func(c int) bool { return c >= 0 }) }

func (a Amount) IsZero() bool { return a.v != nil && a.v.Sign() == 0 }

func (a Amount) IsPositive() bool { return a.v != nil && a.v.Sign() > 0 }

func (a Amount) cmp(b Amount, pred func(int) bool) bool {
	if a.v == nil || b.v == nil {
		return false
	}
	return pred(a.v.Cmp(b.v))
}

// String is the decimal form, or "" when undefined.
func (a Amount) String() string {
	if a.v == nil {
		return ""
	}
	return a.v.String()
}

// Hex is the 0x-prefixed form, or "" when undefined. Negative values have no
// hex encoding on the wire.
func (a Amount) Hex() (string, error) {
	if a.v == nil {
		return "", nil
	}
	if a.v.Sign() < 0 {
		return "", fmt.Errorf("cannot hex encode negative amount %s", a.v.String())
	}
	return "0x" + a.v.Text(16), nil
}
