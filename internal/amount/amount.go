// Copyright 2024 The powchain Authors
// This file is part of the powchain library.
//
// The powchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powchain library. If not, see <http://www.gnu.org/licenses/>.

// Package amount implements an arbitrary-precision non-negative rational
// value, the currency unit moved by every transaction. Its canonical decimal
// string form participates in transaction signatures and block hashes, so
// the textual encoding must be deterministic: a reduced fraction, "n/d" when
// the denominator isn't 1, otherwise just "n".
package amount

import (
	"fmt"
	"math/big"
	"strings"
)

// Amount is a non-negative rational number num/den, always kept reduced with
// a positive denominator.
type Amount struct {
	num *big.Int
	den *big.Int
}

// Zero is the additive identity.
func Zero() Amount {
	return Amount{num: big.NewInt(0), den: big.NewInt(1)}
}

// FromInt builds an integral amount.
func FromInt(v int64) Amount {
	if v < 0 {
		panic("amount: negative value")
	}
	return Amount{num: big.NewInt(v), den: big.NewInt(1)}
}

// FromFraction builds num/den, reduced. den must be non-zero and num/den
// non-negative.
func FromFraction(num, den int64) Amount {
	if den == 0 {
		panic("amount: zero denominator")
	}
	a := Amount{num: big.NewInt(num), den: big.NewInt(den)}
	a.normalize()
	if a.num.Sign() < 0 {
		panic("amount: negative value")
	}
	return a
}

func (a *Amount) normalize() {
	if a.den.Sign() < 0 {
		a.num.Neg(a.num)
		a.den.Neg(a.den)
	}
	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(a.num), a.den)
	if g.Sign() != 0 && g.Cmp(big.NewInt(1)) != 0 {
		a.num.Quo(a.num, g)
		a.den.Quo(a.den, g)
	}
}

// Add returns a+b.
func Add(a, b Amount) Amount {
	num := new(big.Int).Add(new(big.Int).Mul(a.num, b.den), new(big.Int).Mul(b.num, a.den))
	den := new(big.Int).Mul(a.den, b.den)
	r := Amount{num: num, den: den}
	r.normalize()
	return r
}

// Sub returns a-b. Panics if the result would be negative: callers must
// verify sufficient balance before subtracting.
func Sub(a, b Amount) Amount {
	num := new(big.Int).Sub(new(big.Int).Mul(a.num, b.den), new(big.Int).Mul(b.num, a.den))
	den := new(big.Int).Mul(a.den, b.den)
	r := Amount{num: num, den: den}
	r.normalize()
	if r.num.Sign() < 0 {
		panic("amount: subtraction produced a negative amount")
	}
	return r
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func Cmp(a, b Amount) int {
	lhs := new(big.Int).Mul(a.num, b.den)
	rhs := new(big.Int).Mul(b.num, a.den)
	return lhs.Cmp(rhs)
}

// IsZero reports whether a is exactly zero.
func (a Amount) IsZero() bool {
	return a.num.Sign() == 0
}

// IsPositive reports whether a is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.num.Sign() > 0
}

// String returns the canonical decimal form: a reduced fraction "n/d", or
// just "n" when the denominator is 1. This exact text is what gets signed
// and hashed, so it must never vary for equal values.
func (a Amount) String() string {
	if a.den == nil {
		return "0"
	}
	if a.den.Cmp(big.NewInt(1)) == 0 {
		return a.num.String()
	}
	return fmt.Sprintf("%s/%s", a.num.String(), a.den.String())
}

// Parse decodes the canonical decimal form produced by String. It accepts
// only the reduced, non-negative form; anything else is a format error so
// that round-tripping via the codec can't silently diverge.
func Parse(s string) (Amount, error) {
	num, den := s, "1"
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		num, den = s[:idx], s[idx+1:]
	}
	n, ok := new(big.Int).SetString(num, 10)
	if !ok {
		return Amount{}, fmt.Errorf("amount: invalid numerator %q", num)
	}
	d, ok := new(big.Int).SetString(den, 10)
	if !ok || d.Sign() <= 0 {
		return Amount{}, fmt.Errorf("amount: invalid denominator %q", den)
	}
	if n.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: negative value %q", s)
	}
	a := Amount{num: n, den: d}
	a.normalize()
	if a.String() != s {
		return Amount{}, fmt.Errorf("amount: %q is not in canonical form (expected %q)", s, a.String())
	}
	return a, nil
}
