package value

import (
	"fmt"
	"io"

	"github.com/bwesterb/go-ristretto"
	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/crypto/ecc"
	"github.com/vocdoni/shielded-pool/crypto/reddsa"
)

// Trapdoor is the blinding scalar of a value commitment.
type Trapdoor struct {
	s ristretto.Scalar
}

// RandomTrapdoor samples a fresh trapdoor.
func RandomTrapdoor(rng io.Reader) (Trapdoor, error) {
	s, err := ecc.RandomScalar(rng)
	if err != nil {
		return Trapdoor{}, err
	}
	return Trapdoor{s: *s}, nil
}

// ZeroTrapdoor returns the non-blinding trapdoor, used to recompute
// commitments to public values.
func ZeroTrapdoor() Trapdoor {
	var t Trapdoor
	t.s.SetZero()
	return t
}

// Add returns t + other.
func (t Trapdoor) Add(other Trapdoor) Trapdoor {
	var r Trapdoor
	r.s.Add(&t.s, &other.s)
	return r
}

// Sub returns t - other.
func (t Trapdoor) Sub(other Trapdoor) Trapdoor {
	var r Trapdoor
	r.s.Sub(&t.s, &other.s)
	return r
}

// SumTrapdoors returns the sum of all the trapdoors.
func SumTrapdoors(ts ...Trapdoor) Trapdoor {
	sum := ZeroTrapdoor()
	for _, t := range ts {
		sum = sum.Add(t)
	}
	return sum
}

// IntoBSK consumes a sum of trapdoors into the binding signing key.
func (t Trapdoor) IntoBSK() reddsa.SigningKey[reddsa.Binding] {
	return reddsa.SigningKeyFromScalar[reddsa.Binding](&t.s)
}

// Commitment is a value commitment [v]V_asset + [rcv]R. It is comparable.
type Commitment struct {
	enc [ecc.PointSize]byte
}

func commitmentFromPoint(p *ristretto.Point) Commitment {
	return Commitment{enc: ecc.PointBytes(p)}
}

// Derive commits to the signed value v of asset a under the trapdoor rcv.
func Derive(v Sum, rcv Trapdoor, a asset.Base) Commitment {
	scalar := ecc.ScalarFromUint64(v.mag)
	if v.neg {
		scalar.Neg(scalar)
	}
	var cv, blind ristretto.Point
	cv.ScalarMult(a.Point(), scalar)
	blind.ScalarMult(ecc.ValueCommitRandomnessBase(), &rcv.s)
	cv.Add(&cv, &blind)
	return commitmentFromPoint(&cv)
}

// CommitmentFromBytes decodes a commitment.
func CommitmentFromBytes(b []byte) (Commitment, error) {
	p, err := ecc.PointFromBytes(b)
	if err != nil {
		return Commitment{}, fmt.Errorf("invalid value commitment: %w", err)
	}
	return commitmentFromPoint(p), nil
}

func (c Commitment) point() *ristretto.Point {
	p, err := ecc.PointFromBytes(c.enc[:])
	if err != nil {
		// the zero value encodes the identity, anything else was built
		// from a valid point
		panic(fmt.Sprintf("value: corrupted commitment: %v", err))
	}
	return p
}

// Add returns c + other.
func (c Commitment) Add(other Commitment) Commitment {
	var p ristretto.Point
	p.Add(c.point(), other.point())
	return commitmentFromPoint(&p)
}

// Sub returns c - other.
func (c Commitment) Sub(other Commitment) Commitment {
	var p ristretto.Point
	p.Sub(c.point(), other.point())
	return commitmentFromPoint(&p)
}

// SumCommitments adds all the commitments.
func SumCommitments(cs ...Commitment) Commitment {
	var sum ristretto.Point
	sum.SetZero()
	for _, c := range cs {
		sum.Add(&sum, c.point())
	}
	return commitmentFromPoint(&sum)
}

// Bytes returns the point encoding of the commitment.
func (c Commitment) Bytes() [ecc.PointSize]byte {
	return c.enc
}

// IntoBVK interprets the commitment as a binding verification key. It is
// only meaningful for the balanced sum of a bundle's commitments, whose
// value component cancels out.
func (c Commitment) IntoBVK() reddsa.VerificationKey[reddsa.Binding] {
	return reddsa.VerificationKeyFromPoint[reddsa.Binding](c.point())
}
