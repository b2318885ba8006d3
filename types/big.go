package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals JSON and CBOR to a decimal
// string. It is used to report signed amounts, such as a bundle value
// balance, without depending on the caller's integer width.
type BigInt big.Int

// NewInt64 returns a new BigInt set to x.
func NewInt64(x int64) *BigInt {
	return (*BigInt)(big.NewInt(x))
}

func (i *BigInt) String() string {
	return (*big.Int)(i).String()
}

// MarshalText returns the decimal string representation of the big number.
func (i BigInt) MarshalText() ([]byte, error) {
	return (*big.Int)(&i).MarshalText()
}

// UnmarshalText parses the text representation into the big number.
func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	return (*big.Int)(i).UnmarshalText(data)
}

// MarshalCBOR encodes the big number as a CBOR text string.
func (i *BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(i.String())
}

// UnmarshalCBOR decodes a CBOR text string into the big number.
func (i *BigInt) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	if _, ok := (*big.Int)(i).SetString(s, 10); !ok {
		return fmt.Errorf("invalid big number %q", s)
	}
	return nil
}

// MathBigInt converts i to a *math/big.Int.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

// Int64 returns the int64 representation of i.
func (i *BigInt) Int64() int64 {
	return (*big.Int)(i).Int64()
}

// Equal returns true if i and j hold the same number.
func (i *BigInt) Equal(j *BigInt) bool {
	return (*big.Int)(i).Cmp((*big.Int)(j)) == 0
}
