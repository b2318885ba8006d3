// Package builder assembles bundles. Spends and outputs are staged one by
// one, then Build pads them with dummies, shuffles them, pairs them into
// actions and derives the binding signing key. The resulting bundle still
// needs to be proven and authorized, see package bundle.
package builder

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/bundle"
	"github.com/vocdoni/shielded-pool/burn"
	"github.com/vocdoni/shielded-pool/circuit"
	"github.com/vocdoni/shielded-pool/config"
	"github.com/vocdoni/shielded-pool/keys"
	"github.com/vocdoni/shielded-pool/log"
	"github.com/vocdoni/shielded-pool/note"
	"github.com/vocdoni/shielded-pool/tree"
	"github.com/vocdoni/shielded-pool/util"
	"github.com/vocdoni/shielded-pool/value"
)

var (
	ErrSpendsDisabled  = fmt.Errorf("spends are not enabled for this bundle")
	ErrOutputsDisabled = fmt.Errorf("outputs are not enabled for this bundle")
	ErrAnchorMismatch  = fmt.Errorf("merkle path does not match the bundle anchor")
	ErrFvkMismatch     = fmt.Errorf("full viewing key does not own the note")
	ErrAssetsDisabled  = fmt.Errorf("non native assets are not enabled for this bundle")
	ErrUnbalancedAsset = fmt.Errorf("non native asset value is not balanced by its burn")
)

// Builder collects the spends, outputs and burns of a bundle. V is the
// signed integer type the value balance is reported in. A Builder is not
// safe for concurrent use.
type Builder[V value.Balance] struct {
	flags   bundle.Flags
	anchor  tree.Anchor
	spends  []SpendInfo
	outputs []OutputInfo
	burns   map[asset.Base]value.NoteValue
}

// New returns an empty builder for a bundle with the given flags whose
// spends are all proven against anchor.
func New[V value.Balance](flags bundle.Flags, anchor tree.Anchor) *Builder[V] {
	return &Builder[V]{
		flags:  flags,
		anchor: anchor,
		burns:  make(map[asset.Base]value.NoteValue),
	}
}

// AddSpend stages n to be spent. path is the Merkle path of its commitment
// and fvk must own its address.
func (b *Builder[V]) AddSpend(fvk keys.FullViewingKey, n note.Note, path tree.MerklePath) error {
	if !b.flags.SpendsEnabled {
		return ErrSpendsDisabled
	}
	if !n.Asset().IsValid() {
		return fmt.Errorf("%w: spend of the identity", asset.ErrInvalidBase)
	}
	if !n.Asset().IsNative() && !b.flags.ZSAEnabled {
		return fmt.Errorf("%w: spend of %s", ErrAssetsDisabled, n.Asset())
	}
	if probe := (SpendInfo{note: n, path: path}); !probe.hasMatchingAnchor(b.anchor) {
		return fmt.Errorf("%w: expected %s", ErrAnchorMismatch, b.anchor)
	}
	spend, ok := NewSpendInfo(fvk, n, path)
	if !ok {
		return ErrFvkMismatch
	}
	b.spends = append(b.spends, spend)
	return nil
}

// AddOutput stages a note of v units of asset a for recipient. The note can
// later be recovered with ovk if it is not nil. A nil memo sends an empty
// memo.
func (b *Builder[V]) AddOutput(ovk *keys.OutgoingViewingKey, recipient keys.Address, v value.NoteValue,
	a asset.Base, memo *note.Memo,
) error {
	if !b.flags.OutputsEnabled {
		return ErrOutputsDisabled
	}
	if !a.IsValid() {
		return fmt.Errorf("%w: output of the identity", asset.ErrInvalidBase)
	}
	if !a.IsNative() && !b.flags.ZSAEnabled {
		return fmt.Errorf("%w: output of %s", ErrAssetsDisabled, a)
	}
	b.outputs = append(b.outputs, NewOutputInfo(ovk, recipient, v, a, memo))
	return nil
}

// AddBurn stages v units of asset a to be removed from the pool. The
// spends of a must exceed its outputs by exactly v.
func (b *Builder[V]) AddBurn(a asset.Base, v value.NoteValue) error {
	if err := burn.ValidateItem(a, v); err != nil {
		return err
	}
	if !b.flags.ZSAEnabled {
		return fmt.Errorf("%w: burn of %s", ErrAssetsDisabled, a)
	}
	if _, ok := b.burns[a]; ok {
		return fmt.Errorf("%w: %s", burn.ErrDuplicateAsset, a)
	}
	b.burns[a] = v
	return nil
}

// netValue returns the staged spends minus the staged outputs of asset a.
func (b *Builder[V]) netValue(a asset.Base) (value.Sum, error) {
	var sums []value.Sum
	for i := range b.spends {
		if b.spends[i].note.Asset() == a {
			sums = append(sums, b.spends[i].note.Value().Sum())
		}
	}
	for i := range b.outputs {
		if b.outputs[i].asset == a {
			sums = append(sums, b.outputs[i].value.Sum().Neg())
		}
	}
	return value.Total(sums...)
}

// ValueBalance returns the net native value of the staged spends and
// outputs. Padding does not change it.
func (b *Builder[V]) ValueBalance() (V, error) {
	net, err := b.netValue(asset.Native())
	if err != nil {
		return 0, err
	}
	return value.ToBalance[V](net)
}

// checkAssetBalances verifies that every non native asset is either
// balanced or exactly burned.
func (b *Builder[V]) checkAssetBalances(assets []asset.Base) error {
	for _, a := range assets {
		if a.IsNative() {
			continue
		}
		net, err := b.netValue(a)
		if err != nil {
			return err
		}
		burned := b.burns[a].Sum()
		if net != burned {
			return fmt.Errorf("%w: %s nets %s, burns %s", ErrUnbalancedAsset, a, net, burned)
		}
	}
	return nil
}

// assets returns the native asset followed by every other asset staged in
// a spend, output or burn, ordered by encoding.
func (b *Builder[V]) assets() []asset.Base {
	seen := map[asset.Base]struct{}{asset.Native(): {}}
	var others []asset.Base
	add := func(a asset.Base) {
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			others = append(others, a)
		}
	}
	for i := range b.spends {
		add(b.spends[i].note.Asset())
	}
	for i := range b.outputs {
		add(b.outputs[i].asset)
	}
	for a := range b.burns {
		add(a)
	}
	slices.SortFunc(others, func(x, y asset.Base) int {
		xb, yb := x.Bytes(), y.Bytes()
		return bytes.Compare(xb[:], yb[:])
	})
	return append([]asset.Base{asset.Native()}, others...)
}

// BundleMetadata maps the staged spends and outputs to the actions they
// ended up in.
type BundleMetadata struct {
	spendIndices  []int
	outputIndices []int
}

// SpendActionIndex returns the action index of the n-th staged spend.
func (m *BundleMetadata) SpendActionIndex(n int) (int, bool) {
	if n < 0 || n >= len(m.spendIndices) {
		return 0, false
	}
	return m.spendIndices[n], true
}

// OutputActionIndex returns the action index of the n-th staged output.
func (m *BundleMetadata) OutputActionIndex(n int) (int, bool) {
	if n < 0 || n >= len(m.outputIndices) {
		return 0, false
	}
	return m.outputIndices[n], true
}

// staged is a spend or output with its staging index, -1 for dummies.
type staged[T any] struct {
	info  T
	index int
}

type pendingAction struct {
	info        ActionInfo
	spendIndex  int
	outputIndex int
}

// pairAsset pads the spends and outputs of asset a to the same length,
// shuffles both sides independently and pairs them.
func (b *Builder[V]) pairAsset(rng io.Reader, a asset.Base, minActions int) ([]pendingAction, error) {
	var (
		spends  []staged[SpendInfo]
		outputs []staged[OutputInfo]
	)
	for i := range b.spends {
		if b.spends[i].note.Asset() == a {
			spends = append(spends, staged[SpendInfo]{b.spends[i], i})
		}
	}
	for i := range b.outputs {
		if b.outputs[i].asset == a {
			outputs = append(outputs, staged[OutputInfo]{b.outputs[i], i})
		}
	}
	n := max(len(spends), len(outputs), minActions)
	for len(spends) < n {
		s, err := dummySpend(rng, a)
		if err != nil {
			return nil, err
		}
		spends = append(spends, staged[SpendInfo]{s, -1})
	}
	for len(outputs) < n {
		o, err := dummyOutput(rng, a)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, staged[OutputInfo]{o, -1})
	}
	if err := util.Shuffle(rng, n, func(i, j int) { spends[i], spends[j] = spends[j], spends[i] }); err != nil {
		return nil, err
	}
	if err := util.Shuffle(rng, n, func(i, j int) { outputs[i], outputs[j] = outputs[j], outputs[i] }); err != nil {
		return nil, err
	}
	pending := make([]pendingAction, n)
	for i := range pending {
		info, err := newActionInfo(spends[i].info, outputs[i].info, rng)
		if err != nil {
			return nil, err
		}
		pending[i] = pendingAction{info: info, spendIndex: spends[i].index, outputIndex: outputs[i].index}
	}
	return pending, nil
}

// Build pads, shuffles and pairs the staged spends and outputs into the
// actions of an unproven bundle. The native asset is padded to at least
// config.MinActions actions. The builder must not be reused afterwards.
func (b *Builder[V]) Build(rng io.Reader) (*bundle.Unproven[V], *BundleMetadata, error) {
	start := time.Now()
	valueBalance, err := b.ValueBalance()
	if err != nil {
		return nil, nil, err
	}
	assets := b.assets()
	if err := b.checkAssetBalances(assets); err != nil {
		return nil, nil, err
	}

	var pending []pendingAction
	for _, a := range assets {
		minActions := 0
		if a.IsNative() {
			// other assets never need padding to reach the minimum
			minActions = max(config.MinActions-b.countNonNativeActions(), 0)
		}
		paired, err := b.pairAsset(rng, a, minActions)
		if err != nil {
			return nil, nil, err
		}
		pending = append(pending, paired...)
	}
	if err := util.Shuffle(rng, len(pending), func(i, j int) {
		pending[i], pending[j] = pending[j], pending[i]
	}); err != nil {
		return nil, nil, err
	}

	meta := &BundleMetadata{
		spendIndices:  make([]int, len(b.spends)),
		outputIndices: make([]int, len(b.outputs)),
	}
	actions := make([]bundle.Action[bundle.SigningMetadata], len(pending))
	witnesses := make([]circuit.Witness, len(pending))
	rcvs := make([]value.Trapdoor, len(pending))
	for i := range pending {
		p := &pending[i]
		if p.spendIndex >= 0 {
			meta.spendIndices[p.spendIndex] = i
		}
		if p.outputIndex >= 0 {
			meta.outputIndices[p.outputIndex] = i
		}
		if actions[i], witnesses[i], err = p.info.build(rng); err != nil {
			return nil, nil, fmt.Errorf("cannot build action %d: %w", i, err)
		}
		rcvs[i] = p.info.rcv
	}

	bsk := value.SumTrapdoors(rcvs...).IntoBSK()
	unproven := bundle.NewUnproven(actions, b.flags, valueBalance, b.burns, b.anchor, witnesses, bsk)
	if unproven.BindingValidatingKey() != bsk.VerificationKey() {
		// the commitment arithmetic is broken, nothing built on it can be trusted
		panic("builder: binding validating key does not match the binding signing key")
	}
	anchor := b.anchor.Bytes()
	log.Debugw("bundle built",
		"anchor", util.PrettyHex(anchor[:]),
		"actions", len(actions),
		"spends", len(b.spends),
		"outputs", len(b.outputs),
		"burns", len(b.burns),
		"took", time.Since(start).String())
	return unproven, meta, nil
}

// countNonNativeActions returns the number of actions the non native
// assets take, max(spends, outputs) for each asset.
func (b *Builder[V]) countNonNativeActions() int {
	spends := map[asset.Base]int{}
	outputs := map[asset.Base]int{}
	for i := range b.spends {
		if a := b.spends[i].note.Asset(); !a.IsNative() {
			spends[a]++
		}
	}
	for i := range b.outputs {
		if a := b.outputs[i].asset; !a.IsNative() {
			outputs[a]++
		}
	}
	total := 0
	for _, a := range b.assets() {
		if !a.IsNative() {
			total += max(spends[a], outputs[a])
		}
	}
	return total
}
