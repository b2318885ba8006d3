package circuit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/vocdoni/shielded-pool/log"
)

var (
	ErrInstanceMismatch = fmt.Errorf("witnesses and instances do not match")
	ErrMalformedProof   = fmt.Errorf("malformed proof")
)

// Curve is the curve the action proofs are built on.
var Curve = ecc.BN254

// Proof is the aggregate proof of a bundle: the groth16 proof of every
// action in order, each one prefixed with its length as a little-endian
// uint32.
type Proof []byte

// split returns the encoded per action proofs.
func (p Proof) split() ([][]byte, error) {
	var parts [][]byte
	rest := []byte(p)
	for len(rest) > 0 {
		if len(rest) < 4 {
			return nil, fmt.Errorf("%w: truncated length", ErrMalformedProof)
		}
		size := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		if uint64(len(rest)) < uint64(size) {
			return nil, fmt.Errorf("%w: truncated proof", ErrMalformedProof)
		}
		parts = append(parts, rest[:size])
		rest = rest[size:]
	}
	return parts, nil
}

// ProvingKey proves the action relation.
type ProvingKey struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
}

// VerifyingKey verifies action proofs.
type VerifyingKey struct {
	vk groth16.VerifyingKey
}

// Compile compiles the action constraint system.
func Compile() (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(Curve.ScalarField(), r1cs.NewBuilder, Placeholder())
	if err != nil {
		return nil, fmt.Errorf("cannot compile action circuit: %w", err)
	}
	return ccs, nil
}

// Setup compiles the circuit and runs a groth16 setup for it. The setup is
// not a ceremony: it is meant for tests and local deployments.
func Setup() (*ProvingKey, *VerifyingKey, error) {
	ccs, err := Compile()
	if err != nil {
		return nil, nil, err
	}
	return setup(ccs)
}

func setup(ccs constraint.ConstraintSystem) (*ProvingKey, *VerifyingKey, error) {
	log.Debugw("action circuit compiled", "constraints", ccs.GetNbConstraints())
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("groth16 setup: %w", err)
	}
	return &ProvingKey{ccs: ccs, pk: pk}, &VerifyingKey{vk: vk}, nil
}

// CreateProof proves every action and returns the aggregate proof. The
// groth16 prover draws its own blinding randomness, rng is accepted to
// match the bundle prover interface.
func (k *ProvingKey) CreateProof(witnesses []Witness, instances []Instance, rng io.Reader) (Proof, error) {
	if len(witnesses) != len(instances) {
		return nil, fmt.Errorf("%w: %d witnesses, %d instances", ErrInstanceMismatch, len(witnesses), len(instances))
	}
	var out bytes.Buffer
	for i := range witnesses {
		assignment := Assignment(&witnesses[i], &instances[i])
		fullWitness, err := frontend.NewWitness(assignment, Curve.ScalarField())
		if err != nil {
			return nil, fmt.Errorf("action %d witness: %w", i, err)
		}
		proof, err := groth16.Prove(k.ccs, k.pk, fullWitness)
		if err != nil {
			return nil, fmt.Errorf("action %d prove: %w", i, err)
		}
		var buf bytes.Buffer
		if _, err := proof.WriteTo(&buf); err != nil {
			return nil, fmt.Errorf("action %d encode: %w", i, err)
		}
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(buf.Len()))
		out.Write(size[:])
		out.Write(buf.Bytes())
	}
	return Proof(out.Bytes()), nil
}

// Verify checks proof against the public inputs of every action.
func (k *VerifyingKey) Verify(proof Proof, instances []Instance) error {
	parts, err := proof.split()
	if err != nil {
		return err
	}
	if len(parts) != len(instances) {
		return fmt.Errorf("%w: %d proofs, %d instances", ErrInstanceMismatch, len(parts), len(instances))
	}
	for i, part := range parts {
		p := groth16.NewProof(Curve)
		if _, err := p.ReadFrom(bytes.NewReader(part)); err != nil {
			return fmt.Errorf("%w: action %d: %w", ErrMalformedProof, i, err)
		}
		publicWitness, err := frontend.NewWitness(instances[i].publicWitness(), Curve.ScalarField(),
			frontend.PublicOnly())
		if err != nil {
			return fmt.Errorf("action %d public witness: %w", i, err)
		}
		if err := groth16.Verify(p, k.vk, publicWitness); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// WriteTo writes the verifying key.
func (k *VerifyingKey) WriteTo(w io.Writer) (int64, error) {
	return k.vk.WriteTo(w)
}

// ReadVerifyingKey reads a verifying key written by WriteTo.
func ReadVerifyingKey(r io.Reader) (*VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(Curve)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("cannot read verifying key: %w", err)
	}
	return &VerifyingKey{vk: vk}, nil
}
