package reddsa

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/shielded-pool/crypto/ecc"
	"github.com/vocdoni/shielded-pool/util"
)

var msg = []byte("sighash of the bundle under test")

func TestSignVerify(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(1)
	sk, err := NewSigningKey[SpendAuth](rng)
	c.Assert(err, qt.IsNil)
	vk := sk.VerificationKey()

	sig, err := sk.Sign(rng, msg)
	c.Assert(err, qt.IsNil)
	c.Assert(vk.Verify(msg, sig), qt.IsNil)

	c.Assert(vk.Verify([]byte("another message"), sig), qt.ErrorIs, ErrInvalidSignature)

	other, err := NewSigningKey[SpendAuth](rng)
	c.Assert(err, qt.IsNil)
	c.Assert(other.VerificationKey().Verify(msg, sig), qt.ErrorIs, ErrInvalidSignature)
}

func TestSignatureEncoding(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(2)
	sk, err := NewSigningKey[Binding](rng)
	c.Assert(err, qt.IsNil)
	sig, err := sk.Sign(rng, msg)
	c.Assert(err, qt.IsNil)

	decoded := SignatureFromBytes[Binding](sig.Bytes())
	c.Assert(decoded, qt.Equals, sig)
	c.Assert(sk.VerificationKey().Verify(msg, decoded), qt.IsNil)

	// tampering S breaks the signature
	raw := sig.Bytes()
	raw[40] ^= 0x01
	c.Assert(sk.VerificationKey().Verify(msg, SignatureFromBytes[Binding](raw)), qt.ErrorIs, ErrInvalidSignature)
}

func TestRandomizationCommutes(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(3)
	sk, err := NewSigningKey[SpendAuth](rng)
	c.Assert(err, qt.IsNil)
	alpha, err := ecc.RandomScalar(rng)
	c.Assert(err, qt.IsNil)

	rsk := sk.Randomize(alpha)
	rk := sk.VerificationKey().Randomize(alpha)
	c.Assert(rsk.VerificationKey(), qt.Equals, rk)

	sig, err := rsk.Sign(rng, msg)
	c.Assert(err, qt.IsNil)
	c.Assert(rk.Verify(msg, sig), qt.IsNil)
	// a randomized signature does not verify under the original key
	c.Assert(sk.VerificationKey().Verify(msg, sig), qt.ErrorIs, ErrInvalidSignature)
}

func TestParameterSetsUseDifferentBases(t *testing.T) {
	c := qt.New(t)
	s, err := ecc.RandomScalar(util.NewSeededReaderFromUint64(4))
	c.Assert(err, qt.IsNil)
	spendAuth := SigningKeyFromScalar[SpendAuth](s)
	binding := SigningKeyFromScalar[Binding](s)
	c.Assert(spendAuth.VerificationKey().Bytes() == binding.VerificationKey().Bytes(), qt.IsFalse)
}

func TestKeyEncoding(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(5)
	sk, err := NewSigningKey[SpendAuth](rng)
	c.Assert(err, qt.IsNil)

	enc := sk.Bytes()
	decoded, err := SigningKeyFromBytes[SpendAuth](enc[:])
	c.Assert(err, qt.IsNil)
	c.Assert(decoded.VerificationKey(), qt.Equals, sk.VerificationKey())

	vkEnc := sk.VerificationKey().Bytes()
	vk, err := VerificationKeyFromBytes[SpendAuth](vkEnc[:])
	c.Assert(err, qt.IsNil)
	c.Assert(vk, qt.Equals, sk.VerificationKey())

	_, err = SigningKeyFromBytes[SpendAuth](make([]byte, 32))
	c.Assert(err, qt.ErrorIs, ErrInvalidKey)

	sk.Zeroize()
	c.Assert(ecc.IsZeroScalar(sk.Scalar()), qt.IsTrue)
}
