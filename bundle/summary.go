package bundle

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/shielded-pool/types"
	"github.com/vocdoni/shielded-pool/value"
)

// Summary is the public view of an authorized bundle, meant to be logged
// or shipped to a block explorer. It carries no secret material.
type Summary struct {
	Actions               int              `json:"actions"               cbor:"0,keyasint,omitempty"`
	Flags                 uint8            `json:"flags"                 cbor:"1,keyasint,omitempty"`
	ValueBalance          *types.BigInt    `json:"valueBalance"          cbor:"2,keyasint,omitempty"`
	Anchor                types.HexBytes   `json:"anchor"                cbor:"3,keyasint,omitempty"`
	Nullifiers            []types.HexBytes `json:"nullifiers"            cbor:"4,keyasint,omitempty"`
	Commitments           []types.HexBytes `json:"commitments"           cbor:"5,keyasint,omitempty"`
	Burns                 []BurnSummary    `json:"burns,omitempty"       cbor:"6,keyasint,omitempty"`
	Commitment            types.HexBytes   `json:"commitment"            cbor:"7,keyasint,omitempty"`
	AuthorizingCommitment types.HexBytes   `json:"authorizingCommitment" cbor:"8,keyasint,omitempty"`
	ProofSize             int              `json:"proofSize"             cbor:"9,keyasint,omitempty"`
}

// BurnSummary is a burned asset and amount.
type BurnSummary struct {
	Asset  types.HexBytes `json:"asset"  cbor:"0,keyasint,omitempty"`
	Amount uint64         `json:"amount" cbor:"1,keyasint,omitempty"`
}

// Summary returns the public view of the bundle.
func (b *Authorized[V]) Summary() *Summary {
	s := &Summary{
		Actions:      len(b.actions),
		Flags:        b.flags.Byte(),
		ValueBalance: (*types.BigInt)(value.FromBalance(b.valueBalance).BigInt()),
		ProofSize:    len(b.proof),
	}
	anchor := b.anchor.Bytes()
	s.Anchor = anchor[:]
	for i := range b.actions {
		nf, cmx := b.actions[i].nf.Bytes(), b.actions[i].cmx.Bytes()
		s.Nullifiers = append(s.Nullifiers, nf[:])
		s.Commitments = append(s.Commitments, cmx[:])
	}
	for _, item := range b.burns {
		a := item.Asset.Bytes()
		s.Burns = append(s.Burns, BurnSummary{Asset: a[:], Amount: item.Amount.Uint64()})
	}
	commitment := b.Commitment()
	s.Commitment = commitment[:]
	auth := b.AuthorizingCommitment()
	s.AuthorizingCommitment = auth[:]
	return s
}

// Marshal encodes the summary as CBOR.
func (s *Summary) Marshal() ([]byte, error) {
	return cbor.Marshal(s)
}

// Unmarshal decodes a CBOR encoded summary.
func (s *Summary) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, s)
}
