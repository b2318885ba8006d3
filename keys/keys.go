// Package keys derives the key components used to own, spend and view
// notes: a spending key expands into a spend authorizing key, a nullifier
// deriving key and the randomness of the incoming viewing key. The full
// viewing key bundles the public parts and derives addresses for both the
// external and the internal scope.
package keys

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bwesterb/go-ristretto"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/shielded-pool/config"
	"github.com/vocdoni/shielded-pool/crypto"
	"github.com/vocdoni/shielded-pool/crypto/ecc"
	"github.com/vocdoni/shielded-pool/crypto/reddsa"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidSpendingKey = fmt.Errorf("invalid spending key")
	ErrInvalidViewingKey  = fmt.Errorf("invalid full viewing key")
	ErrInvalidAddress     = fmt.Errorf("invalid address")
)

// prf domains
const (
	tagAsk          = 0x06
	tagNk           = 0x07
	tagRivk         = 0x08
	tagDkOvk        = 0x82
	tagRivkInternal = 0x83
	tagDiversifier  = 0x84
)

// Scope distinguishes addresses handed out to others (External) from
// addresses used for change (Internal).
type Scope uint8

const (
	External Scope = iota
	Internal
)

func (s Scope) String() string {
	if s == Internal {
		return "internal"
	}
	return "external"
}

func prfExpand(key []byte, tag byte, extra ...[]byte) [64]byte {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(config.DomainExpandSeed))
	h.Write(key)
	h.Write([]byte{tag})
	for _, e := range extra {
		h.Write(e)
	}
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SpendingKey is the root secret of a shielded account.
type SpendingKey struct {
	b [config.SpendingKeySize]byte
}

// NewSpendingKey samples a valid spending key.
func NewSpendingKey(rng io.Reader) (SpendingKey, error) {
	var b [config.SpendingKeySize]byte
	for {
		if _, err := io.ReadFull(rng, b[:]); err != nil {
			return SpendingKey{}, fmt.Errorf("cannot read randomness: %w", err)
		}
		if sk, err := SpendingKeyFromBytes(b[:]); err == nil {
			return sk, nil
		}
	}
}

// SpendingKeyFromBytes validates and wraps a raw spending key. Keys whose
// spend authorizing key would be zero are rejected.
func SpendingKeyFromBytes(b []byte) (SpendingKey, error) {
	var sk SpendingKey
	if len(b) != config.SpendingKeySize {
		return sk, fmt.Errorf("%w: size %d", ErrInvalidSpendingKey, len(b))
	}
	copy(sk.b[:], b)
	if ecc.IsZeroScalar(sk.askScalar()) {
		return SpendingKey{}, fmt.Errorf("%w: zero ask", ErrInvalidSpendingKey)
	}
	return sk, nil
}

// Bytes returns the raw key.
func (sk SpendingKey) Bytes() [config.SpendingKeySize]byte {
	return sk.b
}

func (sk SpendingKey) askScalar() *ristretto.Scalar {
	out := prfExpand(sk.b[:], tagAsk)
	return new(ristretto.Scalar).Derive(out[:])
}

// SpendAuthorizingKey is the key that authorizes spends, after per action
// randomization.
type SpendAuthorizingKey struct {
	key reddsa.SigningKey[reddsa.SpendAuth]
}

// NewSpendAuthorizingKey derives ask from the spending key.
func NewSpendAuthorizingKey(sk SpendingKey) SpendAuthorizingKey {
	return SpendAuthorizingKey{key: reddsa.SigningKeyFromScalar[reddsa.SpendAuth](sk.askScalar())}
}

// Randomize returns the per action signing key ask + alpha.
func (ask SpendAuthorizingKey) Randomize(alpha *ristretto.Scalar) reddsa.SigningKey[reddsa.SpendAuth] {
	return ask.key.Randomize(alpha)
}

// ValidatingKey returns ak, the public counterpart of ask.
func (ask SpendAuthorizingKey) ValidatingKey() SpendValidatingKey {
	return ask.key.VerificationKey()
}

// Zeroize overwrites the secret scalar.
func (ask *SpendAuthorizingKey) Zeroize() {
	ask.key.Zeroize()
}

// SpendValidatingKey is ak, the public key spends are authorized against.
type SpendValidatingKey = reddsa.VerificationKey[reddsa.SpendAuth]

// FullViewingKey holds the public spend validating key together with the
// secrets needed to detect and nullify the account's notes.
type FullViewingKey struct {
	ak   SpendValidatingKey
	nk   fr.Element
	rivk [ecc.ScalarSize]byte
}

// NewFullViewingKey derives the full viewing key of sk.
func NewFullViewingKey(sk SpendingKey) FullViewingKey {
	nkOut := prfExpand(sk.b[:], tagNk)
	rivkOut := prfExpand(sk.b[:], tagRivk)
	fvk := FullViewingKey{
		ak:   NewSpendAuthorizingKey(sk).ValidatingKey(),
		rivk: ecc.ScalarBytes(new(ristretto.Scalar).Derive(rivkOut[:])),
	}
	fvk.nk.SetBytes(nkOut[:])
	return fvk
}

// FullViewingKeyFromBytes decodes ak || nk || rivk.
func FullViewingKeyFromBytes(b []byte) (FullViewingKey, error) {
	var fvk FullViewingKey
	if len(b) != 96 {
		return fvk, fmt.Errorf("%w: size %d", ErrInvalidViewingKey, len(b))
	}
	ak, err := reddsa.VerificationKeyFromBytes[reddsa.SpendAuth](b[:32])
	if err != nil {
		return fvk, fmt.Errorf("%w: %w", ErrInvalidViewingKey, err)
	}
	nk, ok := crypto.FieldFromBytes(b[32:64])
	if !ok {
		return fvk, fmt.Errorf("%w: non canonical nk", ErrInvalidViewingKey)
	}
	if _, err := ecc.ScalarFromBytes(b[64:]); err != nil {
		return fvk, fmt.Errorf("%w: %w", ErrInvalidViewingKey, err)
	}
	fvk.ak = ak
	fvk.nk = nk
	copy(fvk.rivk[:], b[64:])
	return fvk, nil
}

// Bytes returns ak || nk || rivk.
func (fvk FullViewingKey) Bytes() [96]byte {
	var b [96]byte
	ak := fvk.ak.Bytes()
	nk := fvk.nk.Bytes()
	copy(b[:32], ak[:])
	copy(b[32:64], nk[:])
	copy(b[64:], fvk.rivk[:])
	return b
}

// SpendValidatingKey returns ak.
func (fvk FullViewingKey) SpendValidatingKey() SpendValidatingKey {
	return fvk.ak
}

// NullifierKey returns nk, the BN254 field element keying the nullifier
// PRF.
func (fvk FullViewingKey) NullifierKey() fr.Element {
	return fvk.nk
}

func (fvk FullViewingKey) rivkFor(scope Scope) []byte {
	if scope == External {
		return fvk.rivk[:]
	}
	ak, nk := fvk.ak.Bytes(), fvk.nk.Bytes()
	out := prfExpand(fvk.rivk[:], tagRivkInternal, ak[:], nk[:])
	rivk := ecc.ScalarBytes(new(ristretto.Scalar).Derive(out[:]))
	return rivk[:]
}

// dkOvk derives the diversifier key and the outgoing viewing key of scope.
func (fvk FullViewingKey) dkOvk(scope Scope) (dk, ovk [32]byte) {
	ak, nk := fvk.ak.Bytes(), fvk.nk.Bytes()
	out := prfExpand(fvk.rivkFor(scope), tagDkOvk, ak[:], nk[:])
	copy(dk[:], out[:32])
	copy(ovk[:], out[32:])
	return dk, ovk
}

// IncomingViewingKey returns the incoming viewing key of scope.
func (fvk FullViewingKey) IncomingViewingKey(scope Scope) IncomingViewingKey {
	ak, nk := fvk.ak.Bytes(), fvk.nk.Bytes()
	dk, _ := fvk.dkOvk(scope)
	ivk := IncomingViewingKey{dk: dk}
	ivk.ivk.Set(ecc.HashToScalar(config.DomainIvk, ak[:], nk[:], fvk.rivkFor(scope)))
	return ivk
}

// OutgoingViewingKey returns the outgoing viewing key of scope.
func (fvk FullViewingKey) OutgoingViewingKey(scope Scope) OutgoingViewingKey {
	_, ovk := fvk.dkOvk(scope)
	return OutgoingViewingKey(ovk)
}

// AddressAt returns the address at the diversifier index j of scope.
func (fvk FullViewingKey) AddressAt(j uint64, scope Scope) Address {
	return fvk.IncomingViewingKey(scope).AddressAt(j)
}

// Scope returns the scope of fvk that owns addr. The second return value
// is false when the address does not belong to this key.
func (fvk FullViewingKey) Scope(addr Address) (Scope, bool) {
	for _, scope := range []Scope{External, Internal} {
		if fvk.IncomingViewingKey(scope).Owns(addr) {
			return scope, true
		}
	}
	return External, false
}

// OutgoingViewingKey lets its holder recover the notes it sent.
type OutgoingViewingKey [32]byte

// IncomingViewingKey detects and decrypts the notes received at the
// addresses it derives.
type IncomingViewingKey struct {
	dk  [32]byte
	ivk ristretto.Scalar
}

// Diversifier returns the diversifier at index j.
func (ivk IncomingViewingKey) Diversifier(j uint64) Diversifier {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], j)
	out := prfExpand(ivk.dk[:], tagDiversifier, idx[:])
	var d Diversifier
	copy(d[:], out[:config.DiversifierSize])
	return d
}

// AddressAt returns the address with the diversifier at index j.
func (ivk IncomingViewingKey) AddressAt(j uint64) Address {
	return ivk.Address(ivk.Diversifier(j))
}

// Address returns the address with diversifier d.
func (ivk IncomingViewingKey) Address(d Diversifier) Address {
	pkd := new(ristretto.Point).ScalarMult(d.Generator(), &ivk.ivk)
	return Address{d: d, pkd: ecc.PointBytes(pkd)}
}

// Owns reports whether addr was derived from this key.
func (ivk IncomingViewingKey) Owns(addr Address) bool {
	return ivk.Address(addr.d) == addr
}

// SharedSecret computes [ivk]epk, the note encryption shared secret seen
// from the recipient side.
func (ivk IncomingViewingKey) SharedSecret(epk *ristretto.Point) *ristretto.Point {
	return new(ristretto.Point).ScalarMult(epk, &ivk.ivk)
}

// Diversifier selects one of the many addresses of an incoming viewing key.
type Diversifier [config.DiversifierSize]byte

// Generator returns g_d, the diversified base of the address.
func (d Diversifier) Generator() *ristretto.Point {
	g := ecc.HashToPoint(config.DomainDiversifyHash, d[:])
	return &g
}

// AddressSize is the size of an encoded address.
const AddressSize = config.DiversifierSize + ecc.PointSize

// Address is a shielded payment address (d, pk_d). It is comparable.
type Address struct {
	d   Diversifier
	pkd [ecc.PointSize]byte
}

// AddressFromBytes decodes d || pk_d.
func AddressFromBytes(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressSize {
		return addr, fmt.Errorf("%w: size %d", ErrInvalidAddress, len(b))
	}
	pkd, err := ecc.PointFromBytes(b[config.DiversifierSize:])
	if err != nil {
		return addr, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if ecc.IsIdentity(pkd) {
		return addr, fmt.Errorf("%w: identity pk_d", ErrInvalidAddress)
	}
	copy(addr.d[:], b[:config.DiversifierSize])
	copy(addr.pkd[:], b[config.DiversifierSize:])
	return addr, nil
}

// Bytes returns d || pk_d.
func (a Address) Bytes() [AddressSize]byte {
	var b [AddressSize]byte
	copy(b[:config.DiversifierSize], a.d[:])
	copy(b[config.DiversifierSize:], a.pkd[:])
	return b
}

// Diversifier returns d.
func (a Address) Diversifier() Diversifier {
	return a.d
}

// TransmissionKey returns pk_d.
func (a Address) TransmissionKey() *ristretto.Point {
	p, err := ecc.PointFromBytes(a.pkd[:])
	if err != nil {
		panic(fmt.Sprintf("keys: corrupted address: %v", err))
	}
	return p
}
