package keys

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/shielded-pool/crypto/ecc"
	"github.com/vocdoni/shielded-pool/util"
)

func testKey(c *qt.C, seed uint64) SpendingKey {
	sk, err := NewSpendingKey(util.NewSeededReaderFromUint64(seed))
	c.Assert(err, qt.IsNil)
	return sk
}

func TestDerivationIsDeterministic(t *testing.T) {
	c := qt.New(t)
	sk := testKey(c, 1)
	raw := sk.Bytes()
	again, err := SpendingKeyFromBytes(raw[:])
	c.Assert(err, qt.IsNil)
	c.Assert(NewFullViewingKey(again), qt.Equals, NewFullViewingKey(sk))
	c.Assert(NewFullViewingKey(sk).AddressAt(0, External), qt.Equals, NewFullViewingKey(again).AddressAt(0, External))

	_, err = SpendingKeyFromBytes(raw[:31])
	c.Assert(err, qt.ErrorIs, ErrInvalidSpendingKey)
}

func TestAkMatchesAsk(t *testing.T) {
	c := qt.New(t)
	sk := testKey(c, 2)
	ask := NewSpendAuthorizingKey(sk)
	fvk := NewFullViewingKey(sk)
	c.Assert(ask.ValidatingKey(), qt.Equals, fvk.SpendValidatingKey())

	alpha, err := ecc.RandomScalar(util.NewSeededReaderFromUint64(3))
	c.Assert(err, qt.IsNil)
	c.Assert(ask.Randomize(alpha).VerificationKey(), qt.Equals, fvk.SpendValidatingKey().Randomize(alpha))
}

func TestScopesAreSeparated(t *testing.T) {
	c := qt.New(t)
	fvk := NewFullViewingKey(testKey(c, 4))

	ext := fvk.AddressAt(0, External)
	internal := fvk.AddressAt(0, Internal)
	c.Assert(ext == internal, qt.IsFalse)
	c.Assert(fvk.OutgoingViewingKey(External) == fvk.OutgoingViewingKey(Internal), qt.IsFalse)

	scope, ok := fvk.Scope(ext)
	c.Assert(ok, qt.IsTrue)
	c.Assert(scope, qt.Equals, External)
	scope, ok = fvk.Scope(internal)
	c.Assert(ok, qt.IsTrue)
	c.Assert(scope, qt.Equals, Internal)

	// other diversifier indexes are owned too
	scope, ok = fvk.Scope(fvk.AddressAt(17, Internal))
	c.Assert(ok, qt.IsTrue)
	c.Assert(scope, qt.Equals, Internal)
}

func TestForeignAddressIsNotOwned(t *testing.T) {
	c := qt.New(t)
	fvk := NewFullViewingKey(testKey(c, 5))
	other := NewFullViewingKey(testKey(c, 6))
	_, ok := fvk.Scope(other.AddressAt(0, External))
	c.Assert(ok, qt.IsFalse)
}

func TestDiversifiedAddresses(t *testing.T) {
	c := qt.New(t)
	ivk := NewFullViewingKey(testKey(c, 7)).IncomingViewingKey(External)
	a0, a1 := ivk.AddressAt(0), ivk.AddressAt(1)
	c.Assert(a0.Diversifier() == a1.Diversifier(), qt.IsFalse)
	c.Assert(a0.TransmissionKey().Equals(a1.TransmissionKey()), qt.IsFalse)
	c.Assert(ivk.Owns(a1), qt.IsTrue)
}

func TestEncodings(t *testing.T) {
	c := qt.New(t)
	fvk := NewFullViewingKey(testKey(c, 8))
	raw := fvk.Bytes()
	decoded, err := FullViewingKeyFromBytes(raw[:])
	c.Assert(err, qt.IsNil)
	c.Assert(decoded, qt.Equals, fvk)

	addr := fvk.AddressAt(3, External)
	enc := addr.Bytes()
	decodedAddr, err := AddressFromBytes(enc[:])
	c.Assert(err, qt.IsNil)
	c.Assert(decodedAddr, qt.Equals, addr)

	_, err = AddressFromBytes(make([]byte, AddressSize))
	c.Assert(err, qt.ErrorIs, ErrInvalidAddress)
}

func TestFullViewingKeyRejectsNonCanonicalNk(t *testing.T) {
	c := qt.New(t)
	fvk := NewFullViewingKey(testKey(c, 9))
	raw := fvk.Bytes()

	// nk + r reduces to the same nk
	nk := fvk.NullifierKey()
	alias := new(big.Int).Add(nk.BigInt(new(big.Int)), fr.Modulus())
	alias.FillBytes(raw[32:64])
	_, err := FullViewingKeyFromBytes(raw[:])
	c.Assert(err, qt.ErrorIs, ErrInvalidViewingKey)

	for i := 32; i < 64; i++ {
		raw[i] = 0xff
	}
	_, err = FullViewingKeyFromBytes(raw[:])
	c.Assert(err, qt.ErrorIs, ErrInvalidViewingKey)
}
