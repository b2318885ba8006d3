// Package circuit defines the action relation proven for every action of a
// bundle, and the groth16 keys that prove and verify it over BN254.
//
// For each action the circuit checks that:
//   - the spent note commitment belongs to the tree rooted at Anchor, unless
//     the spent value is zero
//   - spent and created values are 64 bit integers
//   - a disabled spend side spends nothing, and a disabled output side
//     creates nothing
//   - non native assets are only moved when asset transfers are enabled
//   - every public value is a valid, non zero element
package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/gnark-crypto-primitives/utils"
	"github.com/vocdoni/shielded-pool/tree"
)

// HashFn is the hash used for the nodes of the commitment tree. It matches
// tree.HashNode.
var HashFn utils.Hasher = utils.MiMCHasher

// valueBits is the bit size of a note value.
const valueBits = 64

// ActionCircuit is the per action relation.
type ActionCircuit struct {
	Anchor        frontend.Variable `gnark:",public"`
	CvNet         frontend.Variable `gnark:",public"`
	Nf            frontend.Variable `gnark:",public"`
	Rk            frontend.Variable `gnark:",public"`
	Cmx           frontend.Variable `gnark:",public"`
	EnableSpends  frontend.Variable `gnark:",public"`
	EnableOutputs frontend.Variable `gnark:",public"`
	EnableZSA     frontend.Variable `gnark:",public"`

	CmxOld   frontend.Variable
	Position frontend.Variable
	Path     [tree.Depth]frontend.Variable
	ValueOld frontend.Variable
	ValueNew frontend.Variable
	IsNative frontend.Variable
}

// Define declares the circuit's constraints.
func (c *ActionCircuit) Define(api frontend.API) error {
	api.AssertIsBoolean(c.EnableSpends)
	api.AssertIsBoolean(c.EnableOutputs)
	api.AssertIsBoolean(c.EnableZSA)
	api.AssertIsBoolean(c.IsNative)

	root, err := c.merkleRoot(api)
	if err != nil {
		return err
	}
	// zero valued spends skip the membership check
	api.AssertIsEqual(api.Mul(c.ValueOld, api.Sub(root, c.Anchor)), 0)

	api.ToBinary(c.ValueOld, valueBits)
	api.ToBinary(c.ValueNew, valueBits)

	api.AssertIsEqual(api.Mul(api.Sub(1, c.EnableSpends), c.ValueOld), 0)
	api.AssertIsEqual(api.Mul(api.Sub(1, c.EnableOutputs), c.ValueNew), 0)
	api.AssertIsEqual(api.Mul(api.Sub(1, c.EnableZSA), api.Sub(1, c.IsNative)), 0)

	api.AssertIsDifferent(c.CvNet, 0)
	api.AssertIsDifferent(c.Nf, 0)
	api.AssertIsDifferent(c.Rk, 0)
	api.AssertIsDifferent(c.Cmx, 0)
	return nil
}

// merkleRoot hashes CmxOld up the tree along Path, taking the side of every
// node from the bits of Position.
func (c *ActionCircuit) merkleRoot(api frontend.API) (frontend.Variable, error) {
	bits := api.ToBinary(c.Position, tree.Depth)
	node := c.CmxOld
	for i := 0; i < tree.Depth; i++ {
		left := api.Select(bits[i], c.Path[i], node)
		right := api.Select(bits[i], node, c.Path[i])
		var err error
		if node, err = HashFn(api, left, right); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Placeholder returns an empty circuit to compile the constraint system.
func Placeholder() *ActionCircuit {
	return &ActionCircuit{}
}
