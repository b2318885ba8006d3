package crypto

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/arbo"
)

const SerializedFieldSize = 32 // bytes

// BigToFF function returns the finite field representation of the big.Int
// provided. It uses the curve scalar field to represent the provided number.
func BigToFF(baseField, iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(baseField); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return iv
	}
	return z.Mod(iv, baseField)
}

// BytesToFF interprets b as a little-endian integer, as group encodings are
// laid out, and reduces it into the BN254 scalar field. It is how point
// encodings become public inputs of the action circuit and leaves of the
// commitment tree.
func BytesToFF(b []byte) fr.Element {
	var e fr.Element
	e.SetBigInt(BigToFF(fr.Modulus(), arbo.BytesToBigInt(b)))
	return e
}

// FieldBytes returns the 32-byte big-endian encoding of e.
func FieldBytes(e *fr.Element) [SerializedFieldSize]byte {
	return e.Bytes()
}

// FieldFromBytes decodes a 32-byte big-endian field element. Values equal
// or above the modulus are rejected.
func FieldFromBytes(b []byte) (fr.Element, bool) {
	var e fr.Element
	if len(b) != SerializedFieldSize {
		return e, false
	}
	if new(big.Int).SetBytes(b).Cmp(fr.Modulus()) >= 0 {
		return e, false
	}
	e.SetBytes(b)
	return e, true
}

// FieldToBigInt returns e as a big.Int.
func FieldToBigInt(e *fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}
