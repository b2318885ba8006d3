// Package bundle holds built bundles and the state machine that carries
// them from the builder output to a fully authorized bundle:
//
//	Unproven --CreateProof--> Proven --Prepare--> PartiallySigned --Finalize--> Authorized
//
// Every transition returns a new value and leaves the cryptographic fields
// of the actions untouched. A state must not be used again once it has been
// transitioned.
package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/burn"
	"github.com/vocdoni/shielded-pool/circuit"
	"github.com/vocdoni/shielded-pool/config"
	"github.com/vocdoni/shielded-pool/crypto/reddsa"
	"github.com/vocdoni/shielded-pool/tree"
	"github.com/vocdoni/shielded-pool/value"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrProof                     = fmt.Errorf("proof error")
	ErrMissingSignatures         = fmt.Errorf("missing spend authorization signatures")
	ErrInvalidExternalSignature  = fmt.Errorf("signature is not valid for any action")
	ErrDuplicateSignature        = fmt.Errorf("signature is valid for more than one action")
	ErrInvalidBindingSignature   = fmt.Errorf("invalid binding signature")
	ErrInvalidSpendAuthSignature = fmt.Errorf("invalid spend authorization signature")
)

// Sighash is the message signed by every spend authorization signature and
// by the binding signature.
type Sighash [config.SighashSize]byte

// Prover creates the aggregate proof of the actions of a bundle.
type Prover interface {
	CreateProof(witnesses []circuit.Witness, instances []circuit.Instance, rng io.Reader) (circuit.Proof, error)
}

// Verifier verifies an aggregate proof.
type Verifier interface {
	Verify(proof circuit.Proof, instances []circuit.Instance) error
}

// Bundle is the part of a bundle shared by every authorization state. V is
// the caller's signed integer type for the value balance.
type Bundle[A any, V value.Balance] struct {
	actions      []Action[A]
	flags        Flags
	valueBalance V
	burns        []burn.Item
	anchor       tree.Anchor
}

// sortedBurns returns the burn map ordered by asset encoding.
func sortedBurns(burns map[asset.Base]value.NoteValue) []burn.Item {
	items := make([]burn.Item, 0, len(burns))
	for a, v := range burns {
		items = append(items, burn.Item{Asset: a, Amount: v})
	}
	slices.SortFunc(items, func(x, y burn.Item) int {
		xb, yb := x.Asset.Bytes(), y.Asset.Bytes()
		return bytes.Compare(xb[:], yb[:])
	})
	return items
}

// Actions returns a copy of the actions.
func (b *Bundle[A, V]) Actions() []Action[A] {
	return slices.Clone(b.actions)
}

// NumActions returns the number of actions.
func (b *Bundle[A, V]) NumActions() int {
	return len(b.actions)
}

// Flags returns the bundle flags.
func (b *Bundle[A, V]) Flags() Flags {
	return b.flags
}

// ValueBalance returns the net native value leaving the shielded pool.
func (b *Bundle[A, V]) ValueBalance() V {
	return b.valueBalance
}

// Anchor returns the commitment tree root every spend is proven against.
func (b *Bundle[A, V]) Anchor() tree.Anchor {
	return b.anchor
}

// Burns returns the burned assets, ordered by asset encoding.
func (b *Bundle[A, V]) Burns() []burn.Item {
	return slices.Clone(b.burns)
}

// Instances returns the public inputs of the circuit for every action.
func (b *Bundle[A, V]) Instances() []circuit.Instance {
	instances := make([]circuit.Instance, len(b.actions))
	for i := range b.actions {
		instances[i] = b.actions[i].instance(b.anchor, b.flags)
	}
	return instances
}

// BindingValidatingKey recomputes the key the binding signature verifies
// against from the public data of the bundle:
//
//	bvk = sum(cv_net) - commit(valueBalance, native) - sum(commit(burn, asset))
func (b *Bundle[A, V]) BindingValidatingKey() reddsa.VerificationKey[reddsa.Binding] {
	cv := value.Commitment{}
	for i := range b.actions {
		cv = cv.Add(b.actions[i].cvNet)
	}
	cv = cv.Sub(value.Derive(value.FromBalance(b.valueBalance), value.ZeroTrapdoor(), asset.Native()))
	for _, item := range b.burns {
		cv = cv.Sub(value.Derive(item.Amount.Sum(), value.ZeroTrapdoor(), item.Asset))
	}
	return cv.IntoBVK()
}

// Commitment returns a BLAKE2b-256 digest of the effecting data of the
// bundle: every field except proofs and signatures. It does not change as
// the bundle is authorized.
func (b *Bundle[A, V]) Commitment() [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(config.DomainBundleCommitment))
	for i := range b.actions {
		a := &b.actions[i]
		nf, rk, cmx, cv := a.nf.Bytes(), a.rk.Bytes(), a.cmx.Bytes(), a.cvNet.Bytes()
		h.Write(nf[:])
		h.Write(rk[:])
		h.Write(cmx[:])
		h.Write(a.encrypted.EphemeralKey[:])
		h.Write(a.encrypted.EncCiphertext[:])
		h.Write(a.encrypted.OutCiphertext[:])
		h.Write(cv[:])
	}
	h.Write([]byte{b.flags.Byte()})
	h.Write(binary.LittleEndian.AppendUint64(nil, uint64(int64(b.valueBalance))))
	anchor := b.anchor.Bytes()
	h.Write(anchor[:])
	for _, item := range b.burns {
		ab := item.Asset.Bytes()
		h.Write(ab[:])
		h.Write(binary.LittleEndian.AppendUint64(nil, item.Amount.Uint64()))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// mapAuth returns a copy of b with the payload of every action replaced by
// the result of f.
func mapAuth[A, B any, V value.Balance](b *Bundle[A, V], f func(i int, a *Action[A]) (B, error)) (Bundle[B, V], error) {
	actions := make([]Action[B], len(b.actions))
	for i := range b.actions {
		auth, err := f(i, &b.actions[i])
		if err != nil {
			return Bundle[B, V]{}, err
		}
		actions[i] = withAuth(&b.actions[i], auth)
	}
	return Bundle[B, V]{
		actions:      actions,
		flags:        b.flags,
		valueBalance: b.valueBalance,
		burns:        b.burns,
		anchor:       b.anchor,
	}, nil
}
