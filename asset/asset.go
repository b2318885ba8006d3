// Package asset implements asset identifiers. An asset is identified by a
// group element, its base, which the value commitment scheme uses as the
// generator that carries the committed amount. The native asset has a fixed
// base; any other asset base is derived from the issuer key and a
// description.
package asset

import (
	"crypto/subtle"
	"fmt"
	"unicode/utf8"

	"github.com/bwesterb/go-ristretto"
	"github.com/vocdoni/shielded-pool/config"
	"github.com/vocdoni/shielded-pool/crypto/ecc"
	"github.com/vocdoni/shielded-pool/util"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidDescription = fmt.Errorf("invalid asset description")
	ErrInvalidBase        = fmt.Errorf("invalid asset base")
)

var native = newBase(ecc.HashToPoint(config.DomainValueCommitV))

// Base is an asset base. It is comparable, so it can be used as a map key,
// and it always holds a valid, non-identity group element.
type Base struct {
	enc [ecc.PointSize]byte
}

func newBase(p ristretto.Point) Base {
	return Base{enc: ecc.PointBytes(&p)}
}

// Native returns the base of the native asset.
func Native() Base {
	return native
}

// Derive returns the asset base identified by the issuer validating key ik
// and the description. The description must be valid UTF-8, non-empty and
// at most config.MaxAssetDescriptionSize bytes long.
func Derive(ik IssuanceValidatingKey, description []byte) (Base, error) {
	if len(description) == 0 || len(description) > config.MaxAssetDescriptionSize {
		return Base{}, fmt.Errorf("%w: size %d", ErrInvalidDescription, len(description))
	}
	if !utf8.Valid(description) {
		return Base{}, fmt.Errorf("%w: not utf-8", ErrInvalidDescription)
	}
	digest := blake2b.Sum512(append(ik.Bytes(), description...))
	return newBase(ecc.HashToPoint(config.DomainAssetBase, digest[:])), nil
}

// FromBytes decodes an asset base from its canonical encoding.
func FromBytes(b []byte) (Base, error) {
	p, err := ecc.PointFromBytes(b)
	if err != nil {
		return Base{}, fmt.Errorf("%w: %w", ErrInvalidBase, err)
	}
	if ecc.IsIdentity(p) {
		return Base{}, fmt.Errorf("%w: identity", ErrInvalidBase)
	}
	return newBase(*p), nil
}

// Equal compares both bases in constant time.
func (b Base) Equal(other Base) bool {
	return subtle.ConstantTimeCompare(b.enc[:], other.enc[:]) == 1
}

// IsNative reports, in constant time, whether b is the native asset.
func (b Base) IsNative() bool {
	return b.Equal(native)
}

// IsValid reports whether b holds a group element other than the identity.
// Only the zero value of Base is invalid.
func (b Base) IsValid() bool {
	var zero [ecc.PointSize]byte
	return subtle.ConstantTimeCompare(b.enc[:], zero[:]) == 0
}

// Bytes returns the canonical encoding of the base.
func (b Base) Bytes() [ecc.PointSize]byte {
	return b.enc
}

// Point returns the group element of the base.
func (b Base) Point() *ristretto.Point {
	p := new(ristretto.Point)
	enc := b.enc
	if !p.SetBytes(&enc) {
		// Base values are only built from valid points
		panic("asset: corrupted base encoding")
	}
	return p
}

func (b Base) String() string {
	if b.IsNative() {
		return "native"
	}
	return util.PrettyHex(b.enc[:])
}
