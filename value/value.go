// Package value implements note values, signed value sums and the
// homomorphic value commitment scheme.
package value

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
)

// ErrOverflow is returned when a value computation leaves the range of a
// Sum or of the caller's balance type.
var ErrOverflow = fmt.Errorf("value overflow")

// NoteValue is the unsigned amount held by a note.
type NoteValue uint64

// Uint64 returns the raw amount.
func (v NoteValue) Uint64() uint64 {
	return uint64(v)
}

// Sub returns v - other as a Sum. The result always fits in the range of a
// Sum.
func (v NoteValue) Sub(other NoteValue) Sum {
	if v >= other {
		return Sum{mag: uint64(v - other)}
	}
	return Sum{neg: true, mag: uint64(other - v)}
}

// Sum returns v as a positive Sum.
func (v NoteValue) Sum() Sum {
	return Sum{mag: uint64(v)}
}

// Sum is a signed value in the range [-(2^64-1), 2^64-1]. It is stored as
// sign and magnitude; zero is never negative.
type Sum struct {
	neg bool
	mag uint64
}

// SumFromInt64 returns v as a Sum.
func SumFromInt64(v int64) Sum {
	if v < 0 {
		// -MinInt64 does not fit an int64, but it fits the magnitude
		return Sum{neg: true, mag: uint64(-(v + 1)) + 1}
	}
	return Sum{mag: uint64(v)}
}

// IsZero reports whether s is zero.
func (s Sum) IsZero() bool {
	return s.mag == 0
}

// IsNegative reports whether s is strictly below zero.
func (s Sum) IsNegative() bool {
	return s.neg
}

// Magnitude returns the absolute value of s.
func (s Sum) Magnitude() uint64 {
	return s.mag
}

// Neg returns -s.
func (s Sum) Neg() Sum {
	if s.mag == 0 {
		return s
	}
	return Sum{neg: !s.neg, mag: s.mag}
}

// Add returns s + other, or ErrOverflow if the result leaves the range.
func (s Sum) Add(other Sum) (Sum, error) {
	if s.neg == other.neg {
		mag, carry := bits.Add64(s.mag, other.mag, 0)
		if carry != 0 {
			return Sum{}, fmt.Errorf("%w: %s + %s", ErrOverflow, s, other)
		}
		return Sum{neg: s.neg && mag != 0, mag: mag}, nil
	}
	if s.mag >= other.mag {
		mag := s.mag - other.mag
		return Sum{neg: s.neg && mag != 0, mag: mag}, nil
	}
	return Sum{neg: other.neg, mag: other.mag - s.mag}, nil
}

// Sub returns s - other, or ErrOverflow if the result leaves the range.
func (s Sum) Sub(other Sum) (Sum, error) {
	return s.Add(other.Neg())
}

// Total adds all the sums, failing on the first overflow.
func Total(sums ...Sum) (Sum, error) {
	var total Sum
	var err error
	for _, s := range sums {
		if total, err = total.Add(s); err != nil {
			return Sum{}, err
		}
	}
	return total, nil
}

// Int64 converts s to an int64.
func (s Sum) Int64() (int64, error) {
	switch {
	case !s.neg && s.mag <= math.MaxInt64:
		return int64(s.mag), nil
	case s.neg && s.mag <= 1<<63:
		return -int64(s.mag-1) - 1, nil
	default:
		return 0, fmt.Errorf("%w: %s does not fit an int64", ErrOverflow, s)
	}
}

// BigInt returns s as a big.Int.
func (s Sum) BigInt() *big.Int {
	b := new(big.Int).SetUint64(s.mag)
	if s.neg {
		b.Neg(b)
	}
	return b
}

func (s Sum) String() string {
	if s.neg {
		return fmt.Sprintf("-%d", s.mag)
	}
	return fmt.Sprintf("%d", s.mag)
}

// Balance is the set of signed integer types a bundle value balance can be
// expressed in.
type Balance interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// ToBalance converts s into the balance type V. It fails with ErrOverflow
// if V cannot represent s.
func ToBalance[V Balance](s Sum) (V, error) {
	i, err := s.Int64()
	if err != nil {
		return 0, err
	}
	v := V(i)
	if int64(v) != i {
		return 0, fmt.Errorf("%w: %s does not fit %T", ErrOverflow, s, v)
	}
	return v, nil
}

// FromBalance converts a balance back into a Sum.
func FromBalance[V Balance](v V) Sum {
	return SumFromInt64(int64(v))
}
