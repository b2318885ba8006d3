package builder

import (
	"fmt"
	"io"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/bundle"
	"github.com/vocdoni/shielded-pool/burn"
	"github.com/vocdoni/shielded-pool/circuit"
	"github.com/vocdoni/shielded-pool/keys"
	"github.com/vocdoni/shielded-pool/note"
	"github.com/vocdoni/shielded-pool/tree"
	"github.com/vocdoni/shielded-pool/util"
	"github.com/vocdoni/shielded-pool/value"
)

type mockProver struct{}

func (mockProver) CreateProof(w []circuit.Witness, inst []circuit.Instance, _ io.Reader) (circuit.Proof, error) {
	if len(w) != len(inst) {
		return nil, circuit.ErrInstanceMismatch
	}
	return circuit.Proof(fmt.Sprintf("proof:%d", len(inst))), nil
}

func (mockProver) Verify(proof circuit.Proof, inst []circuit.Instance) error {
	if string(proof) != fmt.Sprintf("proof:%d", len(inst)) {
		return fmt.Errorf("bad proof")
	}
	return nil
}

type wallet struct {
	sk  keys.SpendingKey
	fvk keys.FullViewingKey
	ask keys.SpendAuthorizingKey
}

func newWallet(c *qt.C, rng io.Reader) wallet {
	sk, err := keys.NewSpendingKey(rng)
	c.Assert(err, qt.IsNil)
	return wallet{sk: sk, fvk: keys.NewFullViewingKey(sk), ask: keys.NewSpendAuthorizingKey(sk)}
}

func (w wallet) address() keys.Address {
	return w.fvk.AddressAt(0, keys.External)
}

func (w wallet) ovk() *keys.OutgoingViewingKey {
	ovk := w.fvk.OutgoingViewingKey(keys.External)
	return &ovk
}

// spendable is a note of a wallet together with its witness.
type spendable struct {
	note note.Note
	path tree.MerklePath
}

// fund appends one note per value to a fresh tree and returns them with
// their paths against the final root.
func fund(c *qt.C, rng io.Reader, w wallet, a asset.Base, values ...value.NoteValue) (tree.Anchor, []spendable) {
	tr := tree.NewCommitmentTree()
	notes := make([]note.Note, len(values))
	positions := make([]uint32, len(values))
	for i, v := range values {
		nf, err := note.RandomNullifier(rng)
		c.Assert(err, qt.IsNil)
		notes[i], err = note.New(w.address(), v, a, note.RhoFromNullifier(nf), rng)
		c.Assert(err, qt.IsNil)
		positions[i], err = tr.Append(notes[i].Commitment().Extract())
		c.Assert(err, qt.IsNil)
	}
	out := make([]spendable, len(values))
	for i := range notes {
		path, err := tr.Witness(positions[i])
		c.Assert(err, qt.IsNil)
		out[i] = spendable{note: notes[i], path: path}
	}
	return tr.Root(), out
}

func testAsset(c *qt.C, rng io.Reader, description string) asset.Base {
	isk, err := asset.NewIssuanceAuthorizingKey(rng)
	c.Assert(err, qt.IsNil)
	a, err := asset.Derive(isk.ValidatingKey(), []byte(description))
	c.Assert(err, qt.IsNil)
	return a
}

func TestAddSpendErrors(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(1)
	alice, bob := newWallet(c, rng), newWallet(c, rng)
	anchor, notes := fund(c, rng, alice, asset.Native(), 100)

	b := New[int64](bundle.FlagsSpendsDisabled, anchor)
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.ErrorIs, ErrSpendsDisabled)

	b = New[int64](bundle.FlagsEnabled, tree.EmptyAnchor())
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.ErrorIs, ErrAnchorMismatch)

	b = New[int64](bundle.FlagsEnabled, anchor)
	c.Assert(b.AddSpend(bob.fvk, notes[0].note, notes[0].path), qt.ErrorIs, ErrFvkMismatch)

	// failed calls stage nothing
	balance, err := b.ValueBalance()
	c.Assert(err, qt.IsNil)
	c.Assert(balance, qt.Equals, int64(0))

	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.IsNil)
	balance, err = b.ValueBalance()
	c.Assert(err, qt.IsNil)
	c.Assert(balance, qt.Equals, int64(100))
}

func TestAddSpendAnchorChecksBeforeOwnership(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(2)
	alice, bob := newWallet(c, rng), newWallet(c, rng)
	_, notes := fund(c, rng, alice, asset.Native(), 100)

	b := New[int64](bundle.FlagsEnabled, tree.EmptyAnchor())
	c.Assert(b.AddSpend(bob.fvk, notes[0].note, notes[0].path), qt.ErrorIs, ErrAnchorMismatch)
}

func TestAddSpendRejectsIdentityAsset(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(15)
	alice := newWallet(c, rng)
	anchor, notes := fund(c, rng, alice, asset.Base{}, 10)

	b := New[int64](bundle.FlagsEnabled, anchor)
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.ErrorIs, asset.ErrInvalidBase)
}

func TestAddSpendZeroValueSkipsAnchor(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(3)
	alice := newWallet(c, rng)
	_, notes := fund(c, rng, alice, asset.Native(), 0)

	b := New[int64](bundle.FlagsEnabled, tree.EmptyAnchor())
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.IsNil)
}

func TestAddOutputErrors(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(4)
	alice := newWallet(c, rng)
	gold := testAsset(c, rng, "gold")

	b := New[int64](bundle.FlagsOutputsDisabled, tree.EmptyAnchor())
	c.Assert(b.AddOutput(nil, alice.address(), 10, asset.Native(), nil), qt.ErrorIs, ErrOutputsDisabled)

	b = New[int64](bundle.FlagsEnabled, tree.EmptyAnchor())
	c.Assert(b.AddOutput(nil, alice.address(), 10, asset.Base{}, nil), qt.ErrorIs, asset.ErrInvalidBase)

	b = New[int64](bundle.FlagsNativeOnly, tree.EmptyAnchor())
	c.Assert(b.AddOutput(nil, alice.address(), 10, gold, nil), qt.ErrorIs, ErrAssetsDisabled)
	c.Assert(b.AddOutput(alice.ovk(), alice.address(), 10, asset.Native(), nil), qt.IsNil)

	balance, err := b.ValueBalance()
	c.Assert(err, qt.IsNil)
	c.Assert(balance, qt.Equals, int64(-10))
}

func TestAddBurnErrors(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(5)
	gold := testAsset(c, rng, "gold")

	b := New[int64](bundle.FlagsEnabled, tree.EmptyAnchor())
	c.Assert(b.AddBurn(asset.Base{}, 10), qt.ErrorIs, asset.ErrInvalidBase)
	c.Assert(b.AddBurn(asset.Native(), 10), qt.ErrorIs, burn.ErrNativeAsset)
	c.Assert(b.AddBurn(gold, 0), qt.ErrorIs, burn.ErrZeroAmount)
	c.Assert(b.AddBurn(gold, 10), qt.IsNil)
	c.Assert(b.AddBurn(gold, 5), qt.ErrorIs, burn.ErrDuplicateAsset)

	b = New[int64](bundle.FlagsNativeOnly, tree.EmptyAnchor())
	c.Assert(b.AddBurn(gold, 10), qt.ErrorIs, ErrAssetsDisabled)
}

func TestValueBalanceOverflow(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(6)
	alice := newWallet(c, rng)
	anchor, notes := fund(c, rng, alice, asset.Native(), 200)

	b := New[int8](bundle.FlagsEnabled, anchor)
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.IsNil)
	_, err := b.ValueBalance()
	c.Assert(err, qt.ErrorIs, value.ErrOverflow)
	_, _, err = b.Build(rng)
	c.Assert(err, qt.ErrorIs, value.ErrOverflow)

	c.Assert(b.AddOutput(nil, alice.address(), 150, asset.Native(), nil), qt.IsNil)
	balance, err := b.ValueBalance()
	c.Assert(err, qt.IsNil)
	c.Assert(balance, qt.Equals, int8(50))
}

func TestBuildPadding(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(7)
	alice := newWallet(c, rng)

	for _, tc := range []struct{ spends, outputs, actions int }{
		{0, 0, 2},
		{1, 0, 2},
		{0, 1, 2},
		{1, 1, 2},
		{3, 1, 3},
		{2, 5, 5},
	} {
		values := make([]value.NoteValue, tc.spends)
		for i := range values {
			values[i] = 100
		}
		anchor, notes := fund(c, rng, alice, asset.Native(), values...)
		b := New[int64](bundle.FlagsEnabled, anchor)
		for _, n := range notes {
			c.Assert(b.AddSpend(alice.fvk, n.note, n.path), qt.IsNil)
		}
		for i := 0; i < tc.outputs; i++ {
			c.Assert(b.AddOutput(nil, alice.address(), 10, asset.Native(), nil), qt.IsNil)
		}
		unproven, meta, err := b.Build(rng)
		c.Assert(err, qt.IsNil)
		c.Assert(unproven.NumActions(), qt.Equals, tc.actions, qt.Commentf("%d spends, %d outputs", tc.spends, tc.outputs))
		c.Assert(unproven.ValueBalance(), qt.Equals, int64(100*tc.spends-10*tc.outputs))

		// every real spend and output lands in its own action
		actions := unproven.Actions()
		seen := map[int]bool{}
		for i, n := range notes {
			idx, ok := meta.SpendActionIndex(i)
			c.Assert(ok, qt.IsTrue)
			c.Assert(seen[idx], qt.IsFalse)
			seen[idx] = true
			c.Assert(actions[idx].Nullifier(), qt.Equals, n.note.Nullifier(alice.fvk))
			c.Assert(actions[idx].Authorization().IsDummy(), qt.IsFalse)
		}
		seen = map[int]bool{}
		for i := 0; i < tc.outputs; i++ {
			idx, ok := meta.OutputActionIndex(i)
			c.Assert(ok, qt.IsTrue)
			c.Assert(idx < tc.actions, qt.IsTrue)
			c.Assert(seen[idx], qt.IsFalse)
			seen[idx] = true
		}
		_, ok := meta.SpendActionIndex(tc.spends)
		c.Assert(ok, qt.IsFalse)
		_, ok = meta.OutputActionIndex(-1)
		c.Assert(ok, qt.IsFalse)
	}
}

func TestBuildShufflesUniformly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping statistical test in short mode")
	}
	c := qt.New(t)
	alice := newWallet(c, util.NewSeededReaderFromUint64(8))
	anchor, notes := fund(c, util.NewSeededReaderFromUint64(9), alice, asset.Native(), 100)

	const (
		n      = 4 // one spend padded to four outputs
		trials = 3000
	)
	rng := util.NewSeededReaderFromUint64(100)
	var (
		spendAt, outputAt [n]int
		// joint[s][o] counts the spend landing at s and the first output at o
		joint  [n][n]int
		paired int
	)
	for range trials {
		b := New[int64](bundle.FlagsEnabled, anchor)
		c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.IsNil)
		for range n {
			c.Assert(b.AddOutput(nil, alice.address(), 25, asset.Native(), nil), qt.IsNil)
		}
		unproven, meta, err := b.Build(rng)
		c.Assert(err, qt.IsNil)
		c.Assert(unproven.NumActions(), qt.Equals, n)
		s, ok := meta.SpendActionIndex(0)
		c.Assert(ok, qt.IsTrue)
		o, ok := meta.OutputActionIndex(0)
		c.Assert(ok, qt.IsTrue)
		spendAt[s]++
		outputAt[o]++
		joint[s][o]++
		if s == o {
			paired++
		}
	}

	within := func(got, expected, bound int, what string) {
		diff := got - expected
		if diff < 0 {
			diff = -diff
		}
		c.Assert(diff < bound, qt.IsTrue, qt.Commentf("%s seen %d times, expected %d", what, got, expected))
	}
	// bounds are over 6 standard deviations
	for i := range n {
		within(spendAt[i], trials/n, 150, fmt.Sprintf("spend at %d", i))
		within(outputAt[i], trials/n, 150, fmt.Sprintf("output at %d", i))
		for j := range n {
			within(joint[i][j], trials/(n*n), 90, fmt.Sprintf("spend at %d with output at %d", i, j))
		}
	}
	// the spend shares its action with a given output with probability 1/n
	within(paired, trials/n, 150, "spend paired with the first output")
}

func TestBuildDeterministic(t *testing.T) {
	c := qt.New(t)
	alice := newWallet(c, util.NewSeededReaderFromUint64(10))
	anchor, notes := fund(c, util.NewSeededReaderFromUint64(11), alice, asset.Native(), 100)

	build := func() [32]byte {
		b := New[int64](bundle.FlagsEnabled, anchor)
		c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.IsNil)
		c.Assert(b.AddOutput(nil, alice.address(), 60, asset.Native(), nil), qt.IsNil)
		unproven, _, err := b.Build(util.NewSeededReaderFromUint64(12))
		c.Assert(err, qt.IsNil)
		return unproven.Commitment()
	}
	c.Assert(build(), qt.Equals, build())
}

func TestBuildOutputDecryption(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(13)
	alice, bob := newWallet(c, rng), newWallet(c, rng)
	anchor, notes := fund(c, rng, alice, asset.Native(), 100)

	memo, err := note.TextMemo("rent")
	c.Assert(err, qt.IsNil)
	b := New[int64](bundle.FlagsEnabled, anchor)
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.IsNil)
	c.Assert(b.AddOutput(alice.ovk(), bob.address(), 40, asset.Native(), &memo), qt.IsNil)
	unproven, meta, err := b.Build(rng)
	c.Assert(err, qt.IsNil)

	idx, ok := meta.OutputActionIndex(0)
	c.Assert(ok, qt.IsTrue)
	action := unproven.Actions()[idx]
	rho := note.RhoFromNullifier(action.Nullifier())
	enc := action.EncryptedNote()

	received, gotMemo, err := note.TryDecrypt(bob.fvk.IncomingViewingKey(keys.External), rho, &enc, action.Cmx())
	c.Assert(err, qt.IsNil)
	c.Assert(received.Value(), qt.Equals, value.NoteValue(40))
	c.Assert(received.Recipient(), qt.Equals, bob.address())
	c.Assert(gotMemo.Text(), qt.Equals, "rent")

	recovered, _, err := note.TryRecover(*alice.ovk(), rho, &enc, action.CvNet(), action.Cmx())
	c.Assert(err, qt.IsNil)
	c.Assert(recovered, qt.Equals, received)

	_, _, err = note.TryDecrypt(alice.fvk.IncomingViewingKey(keys.External), rho, &enc, action.Cmx())
	c.Assert(err, qt.ErrorIs, note.ErrDecryption)
}

func TestBuildAssets(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(14)
	alice, bob := newWallet(c, rng), newWallet(c, rng)
	gold := testAsset(c, rng, "gold")
	anchor, notes := fund(c, rng, alice, gold, 50)

	b := New[int64](bundle.FlagsNativeOnly, anchor)
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.ErrorIs, ErrAssetsDisabled)

	b = New[int64](bundle.FlagsEnabled, anchor)
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.IsNil)
	c.Assert(b.AddOutput(nil, bob.address(), 30, gold, nil), qt.IsNil)
	c.Assert(b.AddBurn(gold, 20), qt.IsNil)
	unproven, meta, err := b.Build(rng)
	c.Assert(err, qt.IsNil)

	// one gold action plus one native padding action
	c.Assert(unproven.NumActions(), qt.Equals, 2)
	c.Assert(unproven.ValueBalance(), qt.Equals, int64(0))
	burns := unproven.Burns()
	c.Assert(burns, qt.HasLen, 1)
	c.Assert(burns[0], qt.Equals, burn.Item{Asset: gold, Amount: 20})
	spendIdx, _ := meta.SpendActionIndex(0)
	outputIdx, _ := meta.OutputActionIndex(0)
	c.Assert(spendIdx, qt.Equals, outputIdx)

	proven, err := unproven.CreateProof(mockProver{}, rng)
	c.Assert(err, qt.IsNil)
	var sighash bundle.Sighash
	copy(sighash[:], "asset transfer")
	authorized, err := proven.ApplySignatures(rng, sighash, []keys.SpendAuthorizingKey{alice.ask})
	c.Assert(err, qt.IsNil)
	c.Assert(authorized.VerifySignatures(sighash), qt.IsNil)
	c.Assert(authorized.VerifyProof(mockProver{}), qt.IsNil)
}

func TestBuildUnbalancedAsset(t *testing.T) {
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(15)
	alice := newWallet(c, rng)
	gold := testAsset(c, rng, "gold")
	silver := testAsset(c, rng, "silver")
	anchor, notes := fund(c, rng, alice, gold, 50)

	b := New[int64](bundle.FlagsEnabled, anchor)
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.IsNil)
	c.Assert(b.AddOutput(nil, alice.address(), 30, gold, nil), qt.IsNil)
	c.Assert(b.AddBurn(gold, 10), qt.IsNil)
	_, _, err := b.Build(rng)
	c.Assert(err, qt.ErrorIs, ErrUnbalancedAsset)

	b = New[int64](bundle.FlagsEnabled, anchor)
	c.Assert(b.AddBurn(silver, 5), qt.IsNil)
	_, _, err = b.Build(rng)
	c.Assert(err, qt.ErrorIs, ErrUnbalancedAsset)
}

func TestBuildProveAndAuthorize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping groth16 setup in short mode")
	}
	c := qt.New(t)
	rng := util.NewSeededReaderFromUint64(16)
	alice, bob := newWallet(c, rng), newWallet(c, rng)
	anchor, notes := fund(c, rng, alice, asset.Native(), 100)

	pk, vk, err := circuit.Setup()
	c.Assert(err, qt.IsNil)

	b := New[int64](bundle.FlagsEnabled, anchor)
	c.Assert(b.AddSpend(alice.fvk, notes[0].note, notes[0].path), qt.IsNil)
	c.Assert(b.AddOutput(alice.ovk(), bob.address(), 40, asset.Native(), nil), qt.IsNil)
	unproven, _, err := b.Build(rng)
	c.Assert(err, qt.IsNil)
	c.Assert(unproven.ValueBalance(), qt.Equals, int64(60))

	proven, err := unproven.CreateProof(pk, rng)
	c.Assert(err, qt.IsNil)
	var sighash bundle.Sighash
	copy(sighash[:], "end to end")
	partial, err := proven.Prepare(rng, sighash)
	c.Assert(err, qt.IsNil)
	c.Assert(partial.Pending(), qt.Equals, 1)
	_, err = partial.Finalize()
	c.Assert(err, qt.ErrorIs, bundle.ErrMissingSignatures)

	partial, err = partial.Sign(rng, alice.ask)
	c.Assert(err, qt.IsNil)
	authorized, err := partial.Finalize()
	c.Assert(err, qt.IsNil)
	c.Assert(authorized.VerifySignatures(sighash), qt.IsNil)
	c.Assert(authorized.VerifyProof(vk), qt.IsNil)

	var other bundle.Sighash
	copy(other[:], "another transaction")
	c.Assert(authorized.VerifySignatures(other), qt.ErrorIs, bundle.ErrInvalidSpendAuthSignature)
}
