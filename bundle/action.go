package bundle

import (
	"github.com/bwesterb/go-ristretto"
	"github.com/vocdoni/shielded-pool/circuit"
	"github.com/vocdoni/shielded-pool/crypto/reddsa"
	"github.com/vocdoni/shielded-pool/keys"
	"github.com/vocdoni/shielded-pool/note"
	"github.com/vocdoni/shielded-pool/tree"
	"github.com/vocdoni/shielded-pool/value"
)

// Action is one spend paired with one output, as published. The
// cryptographic fields are fixed at creation; only the authorization
// payload of type A changes while the bundle is being authorized.
type Action[A any] struct {
	nf        note.Nullifier
	rk        reddsa.VerificationKey[reddsa.SpendAuth]
	cmx       note.ExtractedCommitment
	encrypted note.EncryptedNote
	cvNet     value.Commitment
	auth      A
}

// NewAction assembles an action.
func NewAction[A any](
	nf note.Nullifier,
	rk reddsa.VerificationKey[reddsa.SpendAuth],
	cmx note.ExtractedCommitment,
	encrypted note.EncryptedNote,
	cvNet value.Commitment,
	auth A,
) Action[A] {
	return Action[A]{
		nf:        nf,
		rk:        rk,
		cmx:       cmx,
		encrypted: encrypted,
		cvNet:     cvNet,
		auth:      auth,
	}
}

// Nullifier returns the nullifier of the spent note.
func (a *Action[A]) Nullifier() note.Nullifier { return a.nf }

// Rk returns the randomized spend validating key.
func (a *Action[A]) Rk() reddsa.VerificationKey[reddsa.SpendAuth] { return a.rk }

// Cmx returns the extracted commitment of the created note.
func (a *Action[A]) Cmx() note.ExtractedCommitment { return a.cmx }

// EncryptedNote returns the ciphertexts of the created note.
func (a *Action[A]) EncryptedNote() note.EncryptedNote { return a.encrypted }

// CvNet returns the commitment to the value spent minus the value created.
func (a *Action[A]) CvNet() value.Commitment { return a.cvNet }

// Authorization returns the authorization payload.
func (a *Action[A]) Authorization() A { return a.auth }

// instance returns the public inputs of the action circuit.
func (a *Action[A]) instance(anchor tree.Anchor, flags Flags) circuit.Instance {
	return circuit.Instance{
		Anchor:        anchor,
		CvNet:         a.cvNet,
		Nf:            a.nf,
		Rk:            a.rk,
		Cmx:           a.cmx,
		EnableSpends:  flags.SpendsEnabled,
		EnableOutputs: flags.OutputsEnabled,
		EnableZSA:     flags.ZSAEnabled,
	}
}

// withAuth returns a copy of the action carrying a new payload.
func withAuth[A, B any](a *Action[A], auth B) Action[B] {
	return Action[B]{
		nf:        a.nf,
		rk:        a.rk,
		cmx:       a.cmx,
		encrypted: a.encrypted,
		cvNet:     a.cvNet,
		auth:      auth,
	}
}

// SigningParts are what a signer needs to authorize an action: the spend
// validating key it must own and the randomizer of the action.
type SigningParts struct {
	ak    keys.SpendValidatingKey
	alpha ristretto.Scalar
}

// NewSigningParts returns the signing parts for ak randomized by alpha.
func NewSigningParts(ak keys.SpendValidatingKey, alpha *ristretto.Scalar) SigningParts {
	p := SigningParts{ak: ak}
	p.alpha.Set(alpha)
	return p
}

// Ak returns the spend validating key.
func (p SigningParts) Ak() keys.SpendValidatingKey { return p.ak }

// Alpha returns a copy of the randomizer.
func (p SigningParts) Alpha() *ristretto.Scalar { return new(ristretto.Scalar).Set(&p.alpha) }

// Rk returns ak randomized by alpha, the key the action signature verifies
// against.
func (p SigningParts) Rk() reddsa.VerificationKey[reddsa.SpendAuth] {
	return p.ak.Randomize(&p.alpha)
}

// SigningMetadata is the authorization payload of an action that has not
// been signed yet. Dummy spends carry their throwaway authorizing key so
// they can be signed as soon as the sighash is known.
type SigningMetadata struct {
	dummyAsk *keys.SpendAuthorizingKey
	parts    SigningParts
}

// NewSigningMetadata returns the payload of a spend. dummyAsk is nil for
// real spends.
func NewSigningMetadata(dummyAsk *keys.SpendAuthorizingKey, parts SigningParts) SigningMetadata {
	return SigningMetadata{dummyAsk: dummyAsk, parts: parts}
}

// Parts returns the signing parts.
func (m SigningMetadata) Parts() SigningParts { return m.parts }

// IsDummy reports whether the action spends a dummy note.
func (m SigningMetadata) IsDummy() bool { return m.dummyAsk != nil }

// MaybeSigned is the authorization payload of a partially signed action:
// either a signature or the parts still waiting for one.
type MaybeSigned struct {
	sig   *reddsa.Signature[reddsa.SpendAuth]
	parts SigningParts
}

// Signature returns the signature, if the action is already signed.
func (m MaybeSigned) Signature() (reddsa.Signature[reddsa.SpendAuth], bool) {
	if m.sig == nil {
		return reddsa.Signature[reddsa.SpendAuth]{}, false
	}
	return *m.sig, true
}

// Parts returns the signing parts.
func (m MaybeSigned) Parts() SigningParts { return m.parts }
