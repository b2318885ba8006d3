package asset

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

var ErrInvalidIssuerKey = fmt.Errorf("invalid issuer key")

// IssuanceAuthorizingKey is the secp256k1 key an issuer controls assets with.
type IssuanceAuthorizingKey struct {
	sk *btcec.PrivateKey
}

// NewIssuanceAuthorizingKey samples a fresh issuance authorizing key.
func NewIssuanceAuthorizingKey(rng io.Reader) (*IssuanceAuthorizingKey, error) {
	var buf [32]byte
	for {
		if _, err := io.ReadFull(rng, buf[:]); err != nil {
			return nil, fmt.Errorf("cannot read randomness: %w", err)
		}
		if isk, err := IssuanceAuthorizingKeyFromBytes(buf[:]); err == nil {
			return isk, nil
		}
	}
}

// IssuanceAuthorizingKeyFromBytes decodes a 32-byte secret key. The zero key
// and keys not below the curve order are rejected.
func IssuanceAuthorizingKeyFromBytes(b []byte) (*IssuanceAuthorizingKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidIssuerKey, len(b))
	}
	var s btcec.ModNScalar
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return nil, fmt.Errorf("%w: out of range", ErrInvalidIssuerKey)
	}
	return &IssuanceAuthorizingKey{sk: btcec.PrivKeyFromScalar(&s)}, nil
}

// ValidatingKey returns the public counterpart of the key.
func (k *IssuanceAuthorizingKey) ValidatingKey() IssuanceValidatingKey {
	var ik IssuanceValidatingKey
	copy(ik[:], schnorr.SerializePubKey(k.sk.PubKey()))
	return ik
}

// Sign produces a BIP-340 signature of the 32-byte message digest.
func (k *IssuanceAuthorizingKey) Sign(digest [32]byte) ([]byte, error) {
	sig, err := schnorr.Sign(k.sk, digest[:])
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// IssuanceValidatingKey is a BIP-340 x-only public key.
type IssuanceValidatingKey [32]byte

// IssuanceValidatingKeyFromBytes decodes and validates an x-only key.
func IssuanceValidatingKeyFromBytes(b []byte) (IssuanceValidatingKey, error) {
	var ik IssuanceValidatingKey
	if _, err := schnorr.ParsePubKey(b); err != nil {
		return ik, fmt.Errorf("%w: %w", ErrInvalidIssuerKey, err)
	}
	copy(ik[:], b)
	return ik, nil
}

// Bytes returns a copy of the key encoding.
func (ik IssuanceValidatingKey) Bytes() []byte {
	return append([]byte(nil), ik[:]...)
}

// Verify checks a BIP-340 signature of the digest under ik.
func (ik IssuanceValidatingKey) Verify(digest [32]byte, signature []byte) bool {
	pub, err := schnorr.ParsePubKey(ik[:])
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(digest[:], pub)
}
