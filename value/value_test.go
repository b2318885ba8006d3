package value

import (
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestNoteValueSub(t *testing.T) {
	c := qt.New(t)
	c.Assert(NoteValue(100).Sub(40).String(), qt.Equals, "60")
	c.Assert(NoteValue(40).Sub(100).String(), qt.Equals, "-60")
	c.Assert(NoteValue(7).Sub(7).IsZero(), qt.IsTrue)
	c.Assert(NoteValue(7).Sub(7).IsNegative(), qt.IsFalse)

	extreme := NoteValue(0).Sub(math.MaxUint64)
	c.Assert(extreme.IsNegative(), qt.IsTrue)
	c.Assert(extreme.Magnitude(), qt.Equals, uint64(math.MaxUint64))
}

func TestSumAddOverflow(t *testing.T) {
	c := qt.New(t)
	max := NoteValue(math.MaxUint64).Sum()
	_, err := max.Add(NoteValue(1).Sum())
	c.Assert(err, qt.ErrorIs, ErrOverflow)

	_, err = max.Neg().Sub(NoteValue(1).Sum())
	c.Assert(err, qt.ErrorIs, ErrOverflow)

	// opposite signs never overflow
	s, err := max.Add(max.Neg())
	c.Assert(err, qt.IsNil)
	c.Assert(s.IsZero(), qt.IsTrue)
	c.Assert(s, qt.Equals, Sum{})
}

func TestTotal(t *testing.T) {
	c := qt.New(t)
	total, err := Total(NoteValue(100).Sub(40), NoteValue(10).Sub(50), NoteValue(5).Sum())
	c.Assert(err, qt.IsNil)
	c.Assert(total.String(), qt.Equals, "25")

	_, err = Total(NoteValue(math.MaxUint64).Sum(), NoteValue(math.MaxUint64).Sum())
	c.Assert(err, qt.ErrorIs, ErrOverflow)
}

func TestInt64Conversion(t *testing.T) {
	c := qt.New(t)
	for _, v := range []int64{0, 1, -1, 60, -60, math.MaxInt64, math.MinInt64} {
		got, err := SumFromInt64(v).Int64()
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, v)
		c.Assert(SumFromInt64(v).BigInt().Int64(), qt.Equals, v)
	}

	_, err := NoteValue(math.MaxInt64 + 1).Sum().Int64()
	c.Assert(err, qt.ErrorIs, ErrOverflow)

	below, err := SumFromInt64(math.MinInt64).Sub(NoteValue(1).Sum())
	c.Assert(err, qt.IsNil)
	_, err = below.Int64()
	c.Assert(err, qt.ErrorIs, ErrOverflow)
}

type amount int32

func TestToBalance(t *testing.T) {
	c := qt.New(t)
	v, err := ToBalance[int64](NoteValue(100).Sub(40))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, int64(60))

	a, err := ToBalance[amount](NoteValue(0).Sub(math.MaxInt32))
	c.Assert(err, qt.IsNil)
	c.Assert(a, qt.Equals, amount(-math.MaxInt32))

	_, err = ToBalance[amount](NoteValue(math.MaxInt32 + 1).Sum())
	c.Assert(err, qt.ErrorIs, ErrOverflow)

	_, err = ToBalance[int8](NoteValue(128).Sum())
	c.Assert(err, qt.ErrorIs, ErrOverflow)
	i8, err := ToBalance[int8](NoteValue(0).Sub(128))
	c.Assert(err, qt.IsNil)
	c.Assert(i8, qt.Equals, int8(-128))

	c.Assert(FromBalance(amount(-5)).String(), qt.Equals, "-5")
}
