// Package note implements shielded notes and the public identifiers derived
// from them: the note commitment, which is appended to the commitment tree
// when the note is created, and the nullifier, which is published when the
// note is spent.
package note

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bwesterb/go-ristretto"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/config"
	"github.com/vocdoni/shielded-pool/crypto"
	"github.com/vocdoni/shielded-pool/crypto/ecc"
	"github.com/vocdoni/shielded-pool/crypto/hash/poseidon"
	"github.com/vocdoni/shielded-pool/keys"
	"github.com/vocdoni/shielded-pool/value"
)

// rseed expansion domains
const (
	tagEsk = 0x04
	tagRcm = 0x05
	tagPsi = 0x09
)

// Nullifier is the public tag that marks a note as spent. It is a BN254
// field element so that it can be fed to the action circuit unchanged.
type Nullifier struct {
	e fr.Element
}

// RandomNullifier samples a nullifier that does not correspond to any note.
// It seeds the rho of dummy notes.
func RandomNullifier(rng io.Reader) (Nullifier, error) {
	var buf [64]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return Nullifier{}, fmt.Errorf("cannot read randomness: %w", err)
	}
	var nf Nullifier
	nf.e.SetBytes(buf[:])
	return nf, nil
}

// NullifierFromBytes decodes a canonical big-endian field element.
func NullifierFromBytes(b []byte) (Nullifier, error) {
	e, ok := crypto.FieldFromBytes(b)
	if !ok {
		return Nullifier{}, fmt.Errorf("invalid nullifier %x", b)
	}
	return Nullifier{e: e}, nil
}

// Bytes returns the big-endian encoding of the nullifier.
func (nf Nullifier) Bytes() [crypto.SerializedFieldSize]byte {
	return crypto.FieldBytes(&nf.e)
}

// Field returns the nullifier as a field element.
func (nf Nullifier) Field() fr.Element {
	return nf.e
}

// Rho is the nullifier of the note spent in the same action, carried by the
// note created in that action. It makes every note commitment unique.
type Rho struct {
	e fr.Element
}

// RhoFromNullifier returns the rho of a note created next to a spend of nf.
func RhoFromNullifier(nf Nullifier) Rho {
	return Rho(nf)
}

// Bytes returns the big-endian encoding of rho.
func (r Rho) Bytes() [crypto.SerializedFieldSize]byte {
	return crypto.FieldBytes(&r.e)
}

// RandomSeed is the per note secret the note randomness is expanded from.
type RandomSeed [32]byte

// NewRandomSeed samples a fresh random seed.
func NewRandomSeed(rng io.Reader) (RandomSeed, error) {
	var rseed RandomSeed
	if _, err := io.ReadFull(rng, rseed[:]); err != nil {
		return rseed, fmt.Errorf("cannot read randomness: %w", err)
	}
	return rseed, nil
}

func (rseed RandomSeed) expand(tag byte, rho Rho) *ristretto.Scalar {
	rhoBytes := rho.Bytes()
	return ecc.HashToScalar(config.DomainExpandSeed, rseed[:], []byte{tag}, rhoBytes[:])
}

func (rseed RandomSeed) esk(rho Rho) *ristretto.Scalar { return rseed.expand(tagEsk, rho) }
func (rseed RandomSeed) rcm(rho Rho) *ristretto.Scalar { return rseed.expand(tagRcm, rho) }
func (rseed RandomSeed) psi(rho Rho) *ristretto.Scalar { return rseed.expand(tagPsi, rho) }

// Note is a private record of value, asset and ownership.
type Note struct {
	recipient keys.Address
	value     value.NoteValue
	asset     asset.Base
	rho       Rho
	rseed     RandomSeed
}

// New creates a note for the recipient with a fresh random seed.
func New(recipient keys.Address, v value.NoteValue, a asset.Base, rho Rho, rng io.Reader) (Note, error) {
	rseed, err := NewRandomSeed(rng)
	if err != nil {
		return Note{}, err
	}
	return FromParts(recipient, v, a, rho, rseed), nil
}

// FromParts assembles a note from its components, as done by a recipient
// after decryption.
func FromParts(recipient keys.Address, v value.NoteValue, a asset.Base, rho Rho, rseed RandomSeed) Note {
	return Note{
		recipient: recipient,
		value:     v,
		asset:     a,
		rho:       rho,
		rseed:     rseed,
	}
}

// Dummy returns a zero valued note of asset a owned by a throwaway key. If
// rho is nil a random one is used. The spending key is returned so the
// caller can sign for the note.
func Dummy(rng io.Reader, rho *Rho, a asset.Base) (keys.SpendingKey, keys.FullViewingKey, Note, error) {
	sk, err := keys.NewSpendingKey(rng)
	if err != nil {
		return keys.SpendingKey{}, keys.FullViewingKey{}, Note{}, err
	}
	fvk := keys.NewFullViewingKey(sk)
	recipient := fvk.AddressAt(0, keys.External)

	var r Rho
	if rho != nil {
		r = *rho
	} else {
		nf, err := RandomNullifier(rng)
		if err != nil {
			return keys.SpendingKey{}, keys.FullViewingKey{}, Note{}, err
		}
		r = RhoFromNullifier(nf)
	}
	n, err := New(recipient, 0, a, r, rng)
	if err != nil {
		return keys.SpendingKey{}, keys.FullViewingKey{}, Note{}, err
	}
	return sk, fvk, n, nil
}

// Recipient returns the address the note belongs to.
func (n Note) Recipient() keys.Address { return n.recipient }

// Value returns the amount of the note.
func (n Note) Value() value.NoteValue { return n.value }

// Asset returns the asset base of the note.
func (n Note) Asset() asset.Base { return n.asset }

// Rho returns the rho of the note.
func (n Note) Rho() Rho { return n.rho }

// RandomSeed returns the random seed of the note.
func (n Note) RandomSeed() RandomSeed { return n.rseed }

// Commitment returns the note commitment
//
//	cm = H(g_d, pk_d, v, rho, psi, asset) + [rcm]R_cm
func (n Note) Commitment() Commitment {
	gd := ecc.PointBytes(n.recipient.Diversifier().Generator())
	pkd := ecc.PointBytes(n.recipient.TransmissionKey())
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], n.value.Uint64())
	rho := n.rho.Bytes()
	psi := ecc.ScalarBytes(n.rseed.psi(n.rho))
	a := n.asset.Bytes()

	cm := ecc.HashToPoint(config.DomainNoteCommit, gd[:], pkd[:], v[:], rho[:], psi[:], a[:])
	blind := new(ristretto.Point).ScalarMult(ecc.NoteCommitRandomnessBase(), n.rseed.rcm(n.rho))
	cm.Add(&cm, blind)
	return Commitment{enc: ecc.PointBytes(&cm)}
}

// Nullifier derives the nullifier of the note, which only the holder of
// the full viewing key can compute:
//
//	nf = Extract([PRF_nk(rho) + psi]K + cm)
//
// where PRF_nk is Poseidon over the BN254 scalar field.
func (n Note) Nullifier(fvk keys.FullViewingKey) Nullifier {
	prf := poseidon.PRF(fvk.NullifierKey(), n.rho.e)
	scalar := ecc.ScalarFromBigInt(crypto.FieldToBigInt(&prf))
	scalar.Add(scalar, n.rseed.psi(n.rho))

	p := new(ristretto.Point).ScalarMult(ecc.NullifierBase(), scalar)
	cm := n.Commitment().point()
	p.Add(p, cm)
	enc := ecc.PointBytes(p)
	return Nullifier{e: crypto.BytesToFF(enc[:])}
}

// Commitment is a note commitment.
type Commitment struct {
	enc [ecc.PointSize]byte
}

func (c Commitment) point() *ristretto.Point {
	p, err := ecc.PointFromBytes(c.enc[:])
	if err != nil {
		panic(fmt.Sprintf("note: corrupted commitment: %v", err))
	}
	return p
}

// Bytes returns the point encoding of the commitment.
func (c Commitment) Bytes() [ecc.PointSize]byte {
	return c.enc
}

// Extract returns the extracted commitment, the tree leaf of the note.
func (c Commitment) Extract() ExtractedCommitment {
	return ExtractedCommitment{e: crypto.BytesToFF(c.enc[:])}
}

// ExtractedCommitment is the BN254 field element a note commitment maps to.
// It is published in the action that creates the note and appended to the
// commitment tree.
type ExtractedCommitment struct {
	e fr.Element
}

// ExtractedCommitmentFromBytes decodes a canonical big-endian field element.
func ExtractedCommitmentFromBytes(b []byte) (ExtractedCommitment, error) {
	e, ok := crypto.FieldFromBytes(b)
	if !ok {
		return ExtractedCommitment{}, fmt.Errorf("invalid extracted commitment %x", b)
	}
	return ExtractedCommitment{e: e}, nil
}

// Bytes returns the big-endian encoding.
func (cmx ExtractedCommitment) Bytes() [crypto.SerializedFieldSize]byte {
	return crypto.FieldBytes(&cmx.e)
}

// Field returns the extracted commitment as a field element.
func (cmx ExtractedCommitment) Field() fr.Element {
	return cmx.e
}
