package circuit

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/shielded-pool/crypto"
	"github.com/vocdoni/shielded-pool/crypto/reddsa"
	"github.com/vocdoni/shielded-pool/note"
	"github.com/vocdoni/shielded-pool/tree"
	"github.com/vocdoni/shielded-pool/value"
)

// Instance holds the public inputs of one action.
type Instance struct {
	Anchor        tree.Anchor
	CvNet         value.Commitment
	Nf            note.Nullifier
	Rk            reddsa.VerificationKey[reddsa.SpendAuth]
	Cmx           note.ExtractedCommitment
	EnableSpends  bool
	EnableOutputs bool
	EnableZSA     bool
}

// Witness holds the private inputs of one action.
type Witness struct {
	CmxOld   note.ExtractedCommitment
	Path     tree.MerklePath
	ValueOld value.NoteValue
	ValueNew value.NoteValue
	IsNative bool
}

func boolVar(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fieldVar(enc []byte) *big.Int {
	e := crypto.BytesToFF(enc)
	return crypto.FieldToBigInt(&e)
}

// publicAssignment fills the public part of the circuit.
func (inst *Instance) publicAssignment() *ActionCircuit {
	anchor := inst.Anchor.Field()
	nf := inst.Nf.Field()
	cmx := inst.Cmx.Field()
	cv := inst.CvNet.Bytes()
	rk := inst.Rk.Bytes()
	return &ActionCircuit{
		Anchor:        crypto.FieldToBigInt(&anchor),
		CvNet:         fieldVar(cv[:]),
		Nf:            crypto.FieldToBigInt(&nf),
		Rk:            fieldVar(rk[:]),
		Cmx:           crypto.FieldToBigInt(&cmx),
		EnableSpends:  boolVar(inst.EnableSpends),
		EnableOutputs: boolVar(inst.EnableOutputs),
		EnableZSA:     boolVar(inst.EnableZSA),
	}
}

// Assignment returns the full assignment of the circuit for the given
// private and public inputs.
func Assignment(w *Witness, inst *Instance) *ActionCircuit {
	a := inst.publicAssignment()
	cmxOld := w.CmxOld.Field()
	a.CmxOld = crypto.FieldToBigInt(&cmxOld)
	a.Position = new(big.Int).SetUint64(uint64(w.Path.Position()))
	siblings := w.Path.Siblings()
	for i := range siblings {
		a.Path[i] = crypto.FieldToBigInt(&siblings[i])
	}
	a.ValueOld = new(big.Int).SetUint64(w.ValueOld.Uint64())
	a.ValueNew = new(big.Int).SetUint64(w.ValueNew.Uint64())
	a.IsNative = boolVar(w.IsNative)
	return a
}

// publicWitness returns the assignment used to verify a proof. Private
// inputs are set to zero so the witness can be built, and are dropped by
// frontend.PublicOnly.
func (inst *Instance) publicWitness() *ActionCircuit {
	a := inst.publicAssignment()
	a.CmxOld, a.Position, a.ValueOld, a.ValueNew, a.IsNative = 0, 0, 0, 0, 0
	for i := range a.Path {
		a.Path[i] = 0
	}
	return a
}

var _ frontend.Circuit = (*ActionCircuit)(nil)
