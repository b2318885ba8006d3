package note

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/keys"
	"github.com/vocdoni/shielded-pool/util"
	"github.com/vocdoni/shielded-pool/value"
)

func testFvk(c *qt.C, seed uint64) keys.FullViewingKey {
	sk, err := keys.NewSpendingKey(util.NewSeededReaderFromUint64(seed))
	c.Assert(err, qt.IsNil)
	return keys.NewFullViewingKey(sk)
}

func testNote(c *qt.C, fvk keys.FullViewingKey, v value.NoteValue, seed uint64) Note {
	rng := util.NewSeededReaderFromUint64(seed)
	nf, err := RandomNullifier(rng)
	c.Assert(err, qt.IsNil)
	n, err := New(fvk.AddressAt(0, keys.External), v, asset.Native(), RhoFromNullifier(nf), rng)
	c.Assert(err, qt.IsNil)
	return n
}

func TestCommitmentBindsFields(t *testing.T) {
	c := qt.New(t)
	fvk := testFvk(c, 1)
	n := testNote(c, fvk, 100, 2)
	c.Assert(n.Commitment(), qt.Equals, n.Commitment())

	// same parts, same commitment
	same := FromParts(n.Recipient(), n.Value(), n.Asset(), n.Rho(), n.RandomSeed())
	c.Assert(same.Commitment(), qt.Equals, n.Commitment())

	other := FromParts(n.Recipient(), 101, n.Asset(), n.Rho(), n.RandomSeed())
	c.Assert(other.Commitment() == n.Commitment(), qt.IsFalse)

	moved := FromParts(fvk.AddressAt(1, keys.External), n.Value(), n.Asset(), n.Rho(), n.RandomSeed())
	c.Assert(moved.Commitment() == n.Commitment(), qt.IsFalse)

	cmx := n.Commitment().Extract()
	enc := cmx.Bytes()
	decoded, err := ExtractedCommitmentFromBytes(enc[:])
	c.Assert(err, qt.IsNil)
	c.Assert(decoded, qt.Equals, cmx)
}

func TestNullifier(t *testing.T) {
	c := qt.New(t)
	fvk := testFvk(c, 3)
	n := testNote(c, fvk, 7, 4)
	nf := n.Nullifier(fvk)
	c.Assert(n.Nullifier(fvk), qt.Equals, nf)

	// a different key gives a different nullifier for the same note
	c.Assert(n.Nullifier(testFvk(c, 5)) == nf, qt.IsFalse)
	// and so does a different note
	c.Assert(testNote(c, fvk, 7, 6).Nullifier(fvk) == nf, qt.IsFalse)

	enc := nf.Bytes()
	decoded, err := NullifierFromBytes(enc[:])
	c.Assert(err, qt.IsNil)
	c.Assert(decoded, qt.Equals, nf)

	_, err = NullifierFromBytes(make([]byte, 31))
	c.Assert(err, qt.IsNotNil)
}

func TestDummy(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(7)
	sk, fvk, n, err := Dummy(rng, nil, asset.Native())
	c.Assert(err, qt.IsNil)
	c.Assert(n.Value(), qt.Equals, value.NoteValue(0))
	c.Assert(keys.NewFullViewingKey(sk), qt.Equals, fvk)
	c.Assert(fvk.IncomingViewingKey(keys.External).Owns(n.Recipient()), qt.IsTrue)

	rho := RhoFromNullifier(n.Nullifier(fvk))
	_, _, next, err := Dummy(rng, &rho, asset.Native())
	c.Assert(err, qt.IsNil)
	c.Assert(next.Rho(), qt.Equals, rho)
}

func TestEncryptionRoundTrip(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(8)
	sender := testFvk(c, 9)
	recipient := testFvk(c, 10)

	nf, err := RandomNullifier(rng)
	c.Assert(err, qt.IsNil)
	rho := RhoFromNullifier(nf)
	n, err := New(recipient.AddressAt(2, keys.External), 42, asset.Native(), rho, rng)
	c.Assert(err, qt.IsNil)
	rcv, err := value.RandomTrapdoor(rng)
	c.Assert(err, qt.IsNil)
	cv := value.Derive(value.NoteValue(0).Sub(42), rcv, asset.Native())
	cmx := n.Commitment().Extract()
	memo, err := TextMemo("hello")
	c.Assert(err, qt.IsNil)

	ovk := sender.OutgoingViewingKey(keys.External)
	enc, err := Encrypt(&ovk, n, memo, cv, cmx, rng)
	c.Assert(err, qt.IsNil)

	got, gotMemo, err := TryDecrypt(recipient.IncomingViewingKey(keys.External), rho, &enc, cmx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, n)
	c.Assert(gotMemo.Text(), qt.Equals, "hello")

	got, gotMemo, err = TryRecover(ovk, rho, &enc, cv, cmx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, n)
	c.Assert(gotMemo, qt.Equals, memo)

	// wrong keys
	_, _, err = TryDecrypt(sender.IncomingViewingKey(keys.External), rho, &enc, cmx)
	c.Assert(err, qt.ErrorIs, ErrDecryption)
	_, _, err = TryDecrypt(recipient.IncomingViewingKey(keys.Internal), rho, &enc, cmx)
	c.Assert(err, qt.ErrorIs, ErrDecryption)
	_, _, err = TryRecover(recipient.OutgoingViewingKey(keys.External), rho, &enc, cv, cmx)
	c.Assert(err, qt.ErrorIs, ErrDecryption)

	// wrong public data
	_, _, err = TryDecrypt(recipient.IncomingViewingKey(keys.External), rho, &enc, testNote(c, recipient, 1, 11).Commitment().Extract())
	c.Assert(err, qt.ErrorIs, ErrDecryption)
}

func TestEncryptWithoutOvk(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(12)
	sender := testFvk(c, 13)
	recipient := testFvk(c, 14)
	n := testNote(c, recipient, 5, 15)
	cmx := n.Commitment().Extract()

	enc, err := Encrypt(nil, n, EmptyMemo(), value.Commitment{}, cmx, rng)
	c.Assert(err, qt.IsNil)

	got, memo, err := TryDecrypt(recipient.IncomingViewingKey(keys.External), n.Rho(), &enc, cmx)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, n)
	c.Assert(memo.Text(), qt.Equals, "")

	_, _, err = TryRecover(sender.OutgoingViewingKey(keys.External), n.Rho(), &enc, value.Commitment{}, cmx)
	c.Assert(err, qt.ErrorIs, ErrDecryption)
}

func TestTextMemo(t *testing.T) {
	c := qt.New(t)
	_, err := TextMemo(string(make([]byte, 513)))
	c.Assert(err, qt.IsNotNil)
	_, err = TextMemo("\xff")
	c.Assert(err, qt.IsNotNil)
}
