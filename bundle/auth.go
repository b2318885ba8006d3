package bundle

import (
	"fmt"
	"io"
	"time"

	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/circuit"
	"github.com/vocdoni/shielded-pool/config"
	"github.com/vocdoni/shielded-pool/crypto/reddsa"
	"github.com/vocdoni/shielded-pool/keys"
	"github.com/vocdoni/shielded-pool/log"
	"github.com/vocdoni/shielded-pool/tree"
	"github.com/vocdoni/shielded-pool/value"
	"golang.org/x/crypto/blake2b"
)

// Unproven is a bundle right after it has been built. It holds the circuit
// witness of every action and the binding signing key.
type Unproven[V value.Balance] struct {
	Bundle[SigningMetadata, V]
	witnesses []circuit.Witness
	bsk       reddsa.SigningKey[reddsa.Binding]
}

// NewUnproven assembles a built bundle. witnesses must be in action order.
func NewUnproven[V value.Balance](
	actions []Action[SigningMetadata],
	flags Flags,
	valueBalance V,
	burns map[asset.Base]value.NoteValue,
	anchor tree.Anchor,
	witnesses []circuit.Witness,
	bsk reddsa.SigningKey[reddsa.Binding],
) *Unproven[V] {
	return &Unproven[V]{
		Bundle: Bundle[SigningMetadata, V]{
			actions:      actions,
			flags:        flags,
			valueBalance: valueBalance,
			burns:        sortedBurns(burns),
			anchor:       anchor,
		},
		witnesses: witnesses,
		bsk:       bsk,
	}
}

// CreateProof proves all the actions of the bundle as a single batch.
// Prover errors are wrapped with ErrProof.
func (b *Unproven[V]) CreateProof(pk Prover, rng io.Reader) (*Proven[V], error) {
	start := time.Now()
	proof, err := pk.CreateProof(b.witnesses, b.Instances(), rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProof, err)
	}
	log.Debugw("bundle proof created",
		"actions", len(b.actions),
		"size", len(proof),
		"took", time.Since(start).String())
	return &Proven[V]{
		Bundle: b.Bundle,
		proof:  proof,
		bsk:    b.bsk,
	}, nil
}

// Proven is a bundle carrying its proof and waiting for the sighash.
type Proven[V value.Balance] struct {
	Bundle[SigningMetadata, V]
	proof circuit.Proof
	bsk   reddsa.SigningKey[reddsa.Binding]
}

// Proof returns the aggregate proof.
func (b *Proven[V]) Proof() circuit.Proof {
	return b.proof
}

// Prepare binds the sighash into the bundle. Dummy spends are signed right
// away and the binding signature is computed. The receiver is left
// untouched, so Prepare may be called again, e.g. with another sighash.
func (b *Proven[V]) Prepare(rng io.Reader, sighash Sighash) (*PartiallySigned[V], error) {
	dummies := 0
	core, err := mapAuth(&b.Bundle, func(_ int, a *Action[SigningMetadata]) (MaybeSigned, error) {
		meta := a.auth
		ms := MaybeSigned{parts: meta.parts}
		if meta.dummyAsk == nil {
			return ms, nil
		}
		// the dummy key is shared with the receiver, sign with a copy
		ask := *meta.dummyAsk
		rsk := ask.Randomize(&meta.parts.alpha)
		sig, err := rsk.Sign(rng, sighash[:])
		rsk.Zeroize()
		ask.Zeroize()
		if err != nil {
			return MaybeSigned{}, err
		}
		ms.sig = &sig
		dummies++
		return ms, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot sign dummy spends: %w", err)
	}
	bindingSig, err := b.bsk.Sign(rng, sighash[:])
	if err != nil {
		return nil, fmt.Errorf("cannot create binding signature: %w", err)
	}
	log.Debugw("bundle prepared", "actions", len(b.actions), "dummies", dummies)
	return &PartiallySigned[V]{
		Bundle:     core,
		proof:      b.proof,
		sighash:    sighash,
		bindingSig: bindingSig,
	}, nil
}

// ApplySignatures prepares the bundle, signs it with every key in asks and
// finalizes it.
func (b *Proven[V]) ApplySignatures(rng io.Reader, sighash Sighash, asks []keys.SpendAuthorizingKey,
) (*Authorized[V], error) {
	ps, err := b.Prepare(rng, sighash)
	if err != nil {
		return nil, err
	}
	for _, ask := range asks {
		if ps, err = ps.Sign(rng, ask); err != nil {
			return nil, err
		}
	}
	return ps.Finalize()
}

// PartiallySigned is a bundle with a bound sighash, a binding signature and
// some actions still waiting for their spend authorization signature.
type PartiallySigned[V value.Balance] struct {
	Bundle[MaybeSigned, V]
	proof      circuit.Proof
	sighash    Sighash
	bindingSig reddsa.Signature[reddsa.Binding]
}

// Sighash returns the bound sighash.
func (b *PartiallySigned[V]) Sighash() Sighash {
	return b.sighash
}

// Proof returns the aggregate proof.
func (b *PartiallySigned[V]) Proof() circuit.Proof {
	return b.proof
}

// BindingSignature returns the binding signature.
func (b *PartiallySigned[V]) BindingSignature() reddsa.Signature[reddsa.Binding] {
	return b.bindingSig
}

// Pending returns the number of actions still waiting for a signature.
func (b *PartiallySigned[V]) Pending() int {
	pending := 0
	for i := range b.actions {
		if b.actions[i].auth.sig == nil {
			pending++
		}
	}
	return pending
}

func (b *PartiallySigned[V]) with(core Bundle[MaybeSigned, V]) *PartiallySigned[V] {
	return &PartiallySigned[V]{
		Bundle:     core,
		proof:      b.proof,
		sighash:    b.sighash,
		bindingSig: b.bindingSig,
	}
}

// Sign signs every pending action that spends a note of ask. Signed
// actions and actions of other keys are left as they are.
func (b *PartiallySigned[V]) Sign(rng io.Reader, ask keys.SpendAuthorizingKey) (*PartiallySigned[V], error) {
	ak := ask.ValidatingKey()
	signed := 0
	core, err := mapAuth(&b.Bundle, func(_ int, a *Action[MaybeSigned]) (MaybeSigned, error) {
		ms := a.auth
		if ms.sig != nil || ms.parts.ak != ak {
			return ms, nil
		}
		rsk := ask.Randomize(&ms.parts.alpha)
		sig, err := rsk.Sign(rng, b.sighash[:])
		rsk.Zeroize()
		if err != nil {
			return MaybeSigned{}, err
		}
		ms.sig = &sig
		signed++
		return ms, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot sign spends: %w", err)
	}
	log.Debugw("spends signed", "signatures", signed)
	return b.with(core), nil
}

// AppendSignatures attaches signatures produced outside of the bundle.
// Each signature is matched by verification against every pending action
// and must be valid for exactly one of them.
func (b *PartiallySigned[V]) AppendSignatures(sigs ...reddsa.Signature[reddsa.SpendAuth]) (*PartiallySigned[V], error) {
	core, _ := mapAuth(&b.Bundle, func(_ int, a *Action[MaybeSigned]) (MaybeSigned, error) {
		return a.auth, nil
	})
	next := b.with(core)
	for i, sig := range sigs {
		if err := next.appendSignature(sig); err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
	}
	return next, nil
}

func (b *PartiallySigned[V]) appendSignature(sig reddsa.Signature[reddsa.SpendAuth]) error {
	match := -1
	for i := range b.actions {
		ms := &b.actions[i].auth
		if ms.sig != nil {
			continue
		}
		if err := ms.parts.Rk().Verify(b.sighash[:], sig); err != nil {
			continue
		}
		if match >= 0 {
			log.Warnw("external signature matches several actions, randomness is broken",
				"first", match, "second", i)
			return ErrDuplicateSignature
		}
		match = i
	}
	if match < 0 {
		return ErrInvalidExternalSignature
	}
	s := sig
	b.actions[match].auth.sig = &s
	log.Debugw("external signature appended", "action", match)
	return nil
}

// Finalize returns the authorized bundle. Every action must be signed.
func (b *PartiallySigned[V]) Finalize() (*Authorized[V], error) {
	if pending := b.Pending(); pending > 0 {
		return nil, fmt.Errorf("%w: %d of %d actions", ErrMissingSignatures, pending, len(b.actions))
	}
	core, err := mapAuth(&b.Bundle, func(i int, a *Action[MaybeSigned]) (reddsa.Signature[reddsa.SpendAuth], error) {
		sig, ok := a.auth.Signature()
		if !ok {
			return sig, fmt.Errorf("%w: action %d", ErrMissingSignatures, i)
		}
		return sig, nil
	})
	if err != nil {
		return nil, err
	}
	log.Debugw("bundle finalized", "actions", len(b.actions))
	return &Authorized[V]{
		Bundle:     core,
		proof:      b.proof,
		bindingSig: b.bindingSig,
	}, nil
}

// Authorized is a bundle ready to be published: every action carries its
// spend authorization signature and the bundle carries its proof and
// binding signature.
type Authorized[V value.Balance] struct {
	Bundle[reddsa.Signature[reddsa.SpendAuth], V]
	proof      circuit.Proof
	bindingSig reddsa.Signature[reddsa.Binding]
}

// Proof returns the aggregate proof.
func (b *Authorized[V]) Proof() circuit.Proof {
	return b.proof
}

// BindingSignature returns the binding signature.
func (b *Authorized[V]) BindingSignature() reddsa.Signature[reddsa.Binding] {
	return b.bindingSig
}

// VerifyProof checks the aggregate proof against the public inputs of the
// actions.
func (b *Authorized[V]) VerifyProof(vk Verifier) error {
	if err := vk.Verify(b.proof, b.Instances()); err != nil {
		return fmt.Errorf("%w: %w", ErrProof, err)
	}
	return nil
}

// VerifySignatures checks every spend authorization signature and the
// binding signature over sighash.
func (b *Authorized[V]) VerifySignatures(sighash Sighash) error {
	for i := range b.actions {
		a := &b.actions[i]
		if err := a.rk.Verify(sighash[:], a.auth); err != nil {
			return fmt.Errorf("%w: action %d: %w", ErrInvalidSpendAuthSignature, i, err)
		}
	}
	if err := b.BindingValidatingKey().Verify(sighash[:], b.bindingSig); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBindingSignature, err)
	}
	return nil
}

// AuthorizingCommitment returns a BLAKE2b-256 digest of the authorizing
// data: the proof, every spend authorization signature and the binding
// signature.
func (b *Authorized[V]) AuthorizingCommitment() [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(config.DomainBundleAuthorizing))
	h.Write(b.proof)
	for i := range b.actions {
		sig := b.actions[i].auth.Bytes()
		h.Write(sig[:])
	}
	binding := b.bindingSig.Bytes()
	h.Write(binding[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
