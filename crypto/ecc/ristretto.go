// Package ecc contains the group helpers shared by the value commitment,
// signature, key and note packages. Every point and scalar lives in the
// prime-order ristretto255 group.
package ecc

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/bwesterb/go-ristretto"
	"github.com/vocdoni/shielded-pool/config"
)

const (
	// PointSize is the size of a canonical point encoding.
	PointSize = 32
	// ScalarSize is the size of a scalar encoding.
	ScalarSize = 32
)

var (
	valueCommitRandomnessBase = HashToPoint(config.DomainValueCommitR)
	spendAuthBase             = HashToPoint(config.DomainSpendAuthBase)
	nullifierBase             = HashToPoint(config.DomainNullifierBase)
	noteCommitRandomnessBase  = HashToPoint(config.DomainNoteCommitR)
)

// ValueCommitRandomnessBase returns R, the generator that blinds value
// commitments. It is also the basepoint of binding signatures.
func ValueCommitRandomnessBase() *ristretto.Point {
	return new(ristretto.Point).Set(&valueCommitRandomnessBase)
}

// SpendAuthBase returns the basepoint of spend authorization signatures.
func SpendAuthBase() *ristretto.Point {
	return new(ristretto.Point).Set(&spendAuthBase)
}

// NullifierBase returns K, the generator used to derive nullifiers.
func NullifierBase() *ristretto.Point {
	return new(ristretto.Point).Set(&nullifierBase)
}

// NoteCommitRandomnessBase returns the generator that blinds note
// commitments.
func NoteCommitRandomnessBase() *ristretto.Point {
	return new(ristretto.Point).Set(&noteCommitRandomnessBase)
}

// domainMessage builds an unambiguous byte string from a domain separator
// and a list of messages, prefixing each part with its length.
func domainMessage(domain string, msgs ...[]byte) []byte {
	size := 4 + len(domain)
	for _, m := range msgs {
		size += 4 + len(m)
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(domain)))
	buf = append(buf, domain...)
	for _, m := range msgs {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m)))
		buf = append(buf, m...)
	}
	return buf
}

// HashToPoint maps the domain and messages into a ristretto255 point whose
// discrete logarithm is unknown.
func HashToPoint(domain string, msgs ...[]byte) ristretto.Point {
	var p ristretto.Point
	p.Derive(domainMessage(domain, msgs...))
	return p
}

// HashToScalar maps the domain and messages into a scalar.
func HashToScalar(domain string, msgs ...[]byte) *ristretto.Scalar {
	return new(ristretto.Scalar).Derive(domainMessage(domain, msgs...))
}

// RandomScalar samples a uniformly distributed scalar from rng.
func RandomScalar(rng io.Reader) (*ristretto.Scalar, error) {
	var buf [64]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return nil, fmt.Errorf("cannot read randomness: %w", err)
	}
	return new(ristretto.Scalar).Derive(buf[:]), nil
}

// ScalarFromUint64 returns v as a scalar.
func ScalarFromUint64(v uint64) *ristretto.Scalar {
	return new(ristretto.Scalar).SetBigInt(new(big.Int).SetUint64(v))
}

// ScalarFromBigInt returns x reduced modulo the group order.
func ScalarFromBigInt(x *big.Int) *ristretto.Scalar {
	return new(ristretto.Scalar).SetBigInt(x)
}

// IsZeroScalar reports whether s is the zero scalar.
func IsZeroScalar(s *ristretto.Scalar) bool {
	var zero ristretto.Scalar
	zero.SetZero()
	return s.Equals(&zero)
}

// IsIdentity reports whether p is the identity point.
func IsIdentity(p *ristretto.Point) bool {
	var zero ristretto.Point
	zero.SetZero()
	return p.Equals(&zero)
}

// PointBytes returns the canonical encoding of p.
func PointBytes(p *ristretto.Point) [PointSize]byte {
	var buf [PointSize]byte
	p.BytesInto(&buf)
	return buf
}

// PointFromBytes decodes a canonical point encoding.
func PointFromBytes(b []byte) (*ristretto.Point, error) {
	if len(b) != PointSize {
		return nil, fmt.Errorf("invalid point size %d", len(b))
	}
	var buf [PointSize]byte
	copy(buf[:], b)
	p := new(ristretto.Point)
	if !p.SetBytes(&buf) {
		return nil, fmt.Errorf("invalid point encoding %x", b)
	}
	return p, nil
}

// ScalarBytes returns the encoding of s.
func ScalarBytes(s *ristretto.Scalar) [ScalarSize]byte {
	var buf [ScalarSize]byte
	s.BytesInto(&buf)
	return buf
}

// ScalarFromBytes decodes a scalar encoding. Non canonical encodings are
// rejected.
func ScalarFromBytes(b []byte) (*ristretto.Scalar, error) {
	if len(b) != ScalarSize {
		return nil, fmt.Errorf("invalid scalar size %d", len(b))
	}
	var buf [ScalarSize]byte
	copy(buf[:], b)
	s := new(ristretto.Scalar).SetBytes(&buf)
	if ScalarBytes(s) != buf {
		return nil, fmt.Errorf("non canonical scalar encoding %x", b)
	}
	return s, nil
}
