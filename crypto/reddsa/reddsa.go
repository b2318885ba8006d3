// Package reddsa implements re-randomizable Schnorr signatures over
// ristretto255. Two parameter sets exist: SpendAuth keys authorize spends
// and are randomized per action, Binding keys are derived from the sum of
// value commitment trapdoors and prove the bundle balances.
//
// A signature over message M under key sk with verification key vk = [sk]B
// is (R, S) where
//
//	r = H(T || vk || M) for 80 random bytes T
//	R = [r]B
//	S = r + H(R || vk || M)·sk
//
// and verifies when [S]B = R + [H(R || vk || M)]vk.
package reddsa

import (
	"fmt"
	"io"

	"github.com/bwesterb/go-ristretto"
	"github.com/vocdoni/shielded-pool/config"
	"github.com/vocdoni/shielded-pool/crypto/ecc"
)

const (
	// SignatureSize is the size of an encoded signature.
	SignatureSize = 64
	// nonceRandomness is the number of random bytes hashed into the nonce.
	nonceRandomness = 80
)

var (
	ErrInvalidSignature = fmt.Errorf("invalid signature")
	ErrInvalidKey       = fmt.Errorf("invalid key")
)

// SigType is the closed set of parameter sets.
type SigType interface {
	SpendAuth | Binding
	basepoint() *ristretto.Point
}

// SpendAuth is the parameter set of spend authorization signatures.
type SpendAuth struct{}

func (SpendAuth) basepoint() *ristretto.Point { return ecc.SpendAuthBase() }

// Binding is the parameter set of binding signatures.
type Binding struct{}

func (Binding) basepoint() *ristretto.Point { return ecc.ValueCommitRandomnessBase() }

func basepoint[T SigType]() *ristretto.Point {
	var t T
	return t.basepoint()
}

// SigningKey is a secret signing key of the parameter set T.
type SigningKey[T SigType] struct {
	sk ristretto.Scalar
}

// NewSigningKey samples a random non-zero signing key.
func NewSigningKey[T SigType](rng io.Reader) (SigningKey[T], error) {
	for {
		s, err := ecc.RandomScalar(rng)
		if err != nil {
			return SigningKey[T]{}, err
		}
		if !ecc.IsZeroScalar(s) {
			return SigningKey[T]{sk: *s}, nil
		}
	}
}

// SigningKeyFromScalar wraps s as a signing key.
func SigningKeyFromScalar[T SigType](s *ristretto.Scalar) SigningKey[T] {
	var k SigningKey[T]
	k.sk.Set(s)
	return k
}

// SigningKeyFromBytes decodes a canonical, non-zero scalar encoding.
func SigningKeyFromBytes[T SigType](b []byte) (SigningKey[T], error) {
	s, err := ecc.ScalarFromBytes(b)
	if err != nil {
		return SigningKey[T]{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if ecc.IsZeroScalar(s) {
		return SigningKey[T]{}, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	return SigningKeyFromScalar[T](s), nil
}

// Bytes returns the scalar encoding of the key.
func (k SigningKey[T]) Bytes() [ecc.ScalarSize]byte {
	return ecc.ScalarBytes(&k.sk)
}

// Scalar returns a copy of the secret scalar.
func (k SigningKey[T]) Scalar() *ristretto.Scalar {
	return new(ristretto.Scalar).Set(&k.sk)
}

// VerificationKey returns [sk]B.
func (k SigningKey[T]) VerificationKey() VerificationKey[T] {
	p := new(ristretto.Point).ScalarMult(basepoint[T](), &k.sk)
	return VerificationKeyFromPoint[T](p)
}

// Randomize returns the key sk + alpha.
func (k SigningKey[T]) Randomize(alpha *ristretto.Scalar) SigningKey[T] {
	var r SigningKey[T]
	r.sk.Add(&k.sk, alpha)
	return r
}

// Zeroize overwrites the secret scalar.
func (k *SigningKey[T]) Zeroize() {
	k.sk.SetZero()
}

// Sign signs msg with fresh randomness read from rng.
func (k SigningKey[T]) Sign(rng io.Reader, msg []byte) (Signature[T], error) {
	var t [nonceRandomness]byte
	if _, err := io.ReadFull(rng, t[:]); err != nil {
		return Signature[T]{}, fmt.Errorf("cannot read randomness: %w", err)
	}
	vk := k.VerificationKey()
	r := ecc.HashToScalar(config.DomainRedDSA, t[:], vk.enc[:], msg)
	bigR := new(ristretto.Point).ScalarMult(basepoint[T](), r)

	var sig Signature[T]
	bigR.BytesInto(&sig.r)
	c := challenge(sig.r, vk.enc, msg)
	var s ristretto.Scalar
	s.Mul(c, &k.sk)
	s.Add(&s, r)
	s.BytesInto(&sig.s)
	return sig, nil
}

func challenge(r, vk [ecc.PointSize]byte, msg []byte) *ristretto.Scalar {
	return ecc.HashToScalar(config.DomainRedDSA, r[:], vk[:], msg)
}

// VerificationKey is a public verification key of the parameter set T. It
// is comparable.
type VerificationKey[T SigType] struct {
	enc [ecc.PointSize]byte
}

// VerificationKeyFromPoint wraps p as a verification key.
func VerificationKeyFromPoint[T SigType](p *ristretto.Point) VerificationKey[T] {
	return VerificationKey[T]{enc: ecc.PointBytes(p)}
}

// VerificationKeyFromBytes decodes a verification key.
func VerificationKeyFromBytes[T SigType](b []byte) (VerificationKey[T], error) {
	p, err := ecc.PointFromBytes(b)
	if err != nil {
		return VerificationKey[T]{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return VerificationKeyFromPoint[T](p), nil
}

// Bytes returns the point encoding of the key.
func (vk VerificationKey[T]) Bytes() [ecc.PointSize]byte {
	return vk.enc
}

// Point returns the group element of the key.
func (vk VerificationKey[T]) Point() *ristretto.Point {
	p, err := ecc.PointFromBytes(vk.enc[:])
	if err != nil {
		// keys are only built from valid points
		panic(fmt.Sprintf("reddsa: corrupted verification key: %v", err))
	}
	return p
}

// Randomize returns the key vk + [alpha]B.
func (vk VerificationKey[T]) Randomize(alpha *ristretto.Scalar) VerificationKey[T] {
	p := new(ristretto.Point).ScalarMult(basepoint[T](), alpha)
	p.Add(p, vk.Point())
	return VerificationKeyFromPoint[T](p)
}

// Verify checks the signature of msg. It returns ErrInvalidSignature when
// the signature does not verify.
func (vk VerificationKey[T]) Verify(msg []byte, sig Signature[T]) error {
	bigR, err := ecc.PointFromBytes(sig.r[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	s, err := ecc.ScalarFromBytes(sig.s[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	c := challenge(sig.r, vk.enc, msg)

	var lhs, rhs ristretto.Point
	lhs.ScalarMult(basepoint[T](), s)
	rhs.ScalarMult(vk.Point(), c)
	rhs.Add(&rhs, bigR)
	if !lhs.Equals(&rhs) {
		return ErrInvalidSignature
	}
	return nil
}

// Signature is a signature of the parameter set T.
type Signature[T SigType] struct {
	r [ecc.PointSize]byte
	s [ecc.ScalarSize]byte
}

// SignatureFromBytes splits a 64-byte encoding into R and S. Validity is
// only checked by Verify.
func SignatureFromBytes[T SigType](b [SignatureSize]byte) Signature[T] {
	var sig Signature[T]
	copy(sig.r[:], b[:ecc.PointSize])
	copy(sig.s[:], b[ecc.PointSize:])
	return sig
}

// Bytes returns R || S.
func (sig Signature[T]) Bytes() [SignatureSize]byte {
	var b [SignatureSize]byte
	copy(b[:ecc.PointSize], sig.r[:])
	copy(b[ecc.PointSize:], sig.s[:])
	return b
}
