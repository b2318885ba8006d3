package builder

import (
	"fmt"
	"io"

	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/bundle"
	"github.com/vocdoni/shielded-pool/circuit"
	"github.com/vocdoni/shielded-pool/crypto/ecc"
	"github.com/vocdoni/shielded-pool/keys"
	"github.com/vocdoni/shielded-pool/note"
	"github.com/vocdoni/shielded-pool/tree"
	"github.com/vocdoni/shielded-pool/value"
)

// SpendInfo is a note staged to be spent, together with what is needed to
// prove and authorize the spend.
type SpendInfo struct {
	// set only for dummy spends
	dummyAsk *keys.SpendAuthorizingKey
	fvk      keys.FullViewingKey
	scope    keys.Scope
	note     note.Note
	path     tree.MerklePath
}

// NewSpendInfo stages n for spending. It returns false if fvk does not own
// the address of the note.
func NewSpendInfo(fvk keys.FullViewingKey, n note.Note, path tree.MerklePath) (SpendInfo, bool) {
	scope, ok := fvk.Scope(n.Recipient())
	if !ok {
		return SpendInfo{}, false
	}
	return SpendInfo{fvk: fvk, scope: scope, note: n, path: path}, true
}

// dummySpend stages a zero valued note of asset a owned by a throwaway key
// with a random Merkle path.
func dummySpend(rng io.Reader, a asset.Base) (SpendInfo, error) {
	sk, fvk, n, err := note.Dummy(rng, nil, a)
	if err != nil {
		return SpendInfo{}, err
	}
	path, err := tree.DummyPath(rng)
	if err != nil {
		return SpendInfo{}, err
	}
	ask := keys.NewSpendAuthorizingKey(sk)
	return SpendInfo{
		dummyAsk: &ask,
		fvk:      fvk,
		scope:    keys.External,
		note:     n,
		path:     path,
	}, nil
}

// Note returns the staged note.
func (s *SpendInfo) Note() note.Note { return s.note }

// Scope returns the scope of the address the note was sent to.
func (s *SpendInfo) Scope() keys.Scope { return s.scope }

// IsDummy reports whether the spend is padding.
func (s *SpendInfo) IsDummy() bool { return s.dummyAsk != nil }

func (s *SpendInfo) hasMatchingAnchor(anchor tree.Anchor) bool {
	// dummy notes are never checked against the anchor
	if s.note.Value() == 0 {
		return true
	}
	return s.path.Root(s.note.Commitment().Extract()) == anchor
}

// OutputInfo is a note staged to be created.
type OutputInfo struct {
	ovk       *keys.OutgoingViewingKey
	recipient keys.Address
	value     value.NoteValue
	asset     asset.Base
	memo      note.Memo
}

// NewOutputInfo stages a note of v units of asset a for recipient. ovk and
// memo are optional.
func NewOutputInfo(ovk *keys.OutgoingViewingKey, recipient keys.Address, v value.NoteValue, a asset.Base,
	memo *note.Memo,
) OutputInfo {
	out := OutputInfo{
		recipient: recipient,
		value:     v,
		asset:     a,
		memo:      note.EmptyMemo(),
	}
	if ovk != nil {
		k := *ovk
		out.ovk = &k
	}
	if memo != nil {
		out.memo = *memo
	}
	return out
}

// dummyOutput stages a zero valued note of asset a to a throwaway address.
func dummyOutput(rng io.Reader, a asset.Base) (OutputInfo, error) {
	sk, err := keys.NewSpendingKey(rng)
	if err != nil {
		return OutputInfo{}, err
	}
	recipient := keys.NewFullViewingKey(sk).AddressAt(0, keys.External)
	return NewOutputInfo(nil, recipient, 0, a, nil), nil
}

// Value returns the staged amount.
func (o *OutputInfo) Value() value.NoteValue { return o.value }

// Asset returns the staged asset.
func (o *OutputInfo) Asset() asset.Base { return o.asset }

// ActionInfo pairs a spend with an output of the same asset and the
// trapdoor of their value commitment.
type ActionInfo struct {
	spend  SpendInfo
	output OutputInfo
	rcv    value.Trapdoor
}

func newActionInfo(spend SpendInfo, output OutputInfo, rng io.Reader) (ActionInfo, error) {
	if spend.note.Asset() != output.asset {
		return ActionInfo{}, fmt.Errorf("spend of %s paired with output of %s", spend.note.Asset(), output.asset)
	}
	rcv, err := value.RandomTrapdoor(rng)
	if err != nil {
		return ActionInfo{}, err
	}
	return ActionInfo{spend: spend, output: output, rcv: rcv}, nil
}

// valueSum returns the value spent minus the value created.
func (a *ActionInfo) valueSum() value.Sum {
	return a.spend.note.Value().Sub(a.output.value)
}

// build derives the action and its circuit witness.
func (a *ActionInfo) build(rng io.Reader) (bundle.Action[bundle.SigningMetadata], circuit.Witness, error) {
	assetBase := a.spend.note.Asset()
	cvNet := value.Derive(a.valueSum(), a.rcv, assetBase)

	nfOld := a.spend.note.Nullifier(a.spend.fvk)
	ak := a.spend.fvk.SpendValidatingKey()
	alpha, err := ecc.RandomScalar(rng)
	if err != nil {
		return bundle.Action[bundle.SigningMetadata]{}, circuit.Witness{}, err
	}
	rk := ak.Randomize(alpha)

	created, err := note.New(a.output.recipient, a.output.value, assetBase, note.RhoFromNullifier(nfOld), rng)
	if err != nil {
		return bundle.Action[bundle.SigningMetadata]{}, circuit.Witness{}, err
	}
	cmx := created.Commitment().Extract()
	encrypted, err := note.Encrypt(a.output.ovk, created, a.output.memo, cvNet, cmx, rng)
	if err != nil {
		return bundle.Action[bundle.SigningMetadata]{}, circuit.Witness{}, err
	}

	action := bundle.NewAction(nfOld, rk, cmx, encrypted, cvNet,
		bundle.NewSigningMetadata(a.spend.dummyAsk, bundle.NewSigningParts(ak, alpha)))
	witness := circuit.Witness{
		CmxOld:   a.spend.note.Commitment().Extract(),
		Path:     a.spend.path,
		ValueOld: a.spend.note.Value(),
		ValueNew: a.output.value,
		IsNative: assetBase.IsNative(),
	}
	return action, witness, nil
}
