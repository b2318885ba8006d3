// Package poseidon hashes BN254 field elements with the iden3 Poseidon
// permutation, chunking inputs that exceed a single permutation width.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

const (
	// chunkSize is the largest input the iden3 permutation takes at once.
	chunkSize = 16
	// MaxInputs is the largest number of elements Hash accepts.
	MaxInputs = chunkSize * chunkSize
)

var ErrInputs = fmt.Errorf("invalid number of poseidon inputs")

// Hash returns the Poseidon hash of inputs. Up to 16 inputs are hashed
// directly; longer inputs are split in chunks of 16 whose hashes are hashed
// again.
func Hash(inputs ...fr.Element) (fr.Element, error) {
	var out fr.Element
	if len(inputs) == 0 || len(inputs) > MaxInputs {
		return out, fmt.Errorf("%w: %d", ErrInputs, len(inputs))
	}
	hashes := []*big.Int{}
	for start := 0; start < len(inputs); start += chunkSize {
		end := min(start+chunkSize, len(inputs))
		chunk := make([]*big.Int, 0, end-start)
		for i := start; i < end; i++ {
			chunk = append(chunk, inputs[i].BigInt(new(big.Int)))
		}
		h, err := poseidon.Hash(chunk)
		if err != nil {
			return out, err
		}
		hashes = append(hashes, h)
	}
	h := hashes[0]
	if len(hashes) > 1 {
		var err error
		if h, err = poseidon.Hash(hashes); err != nil {
			return out, err
		}
	}
	out.SetBigInt(h)
	return out, nil
}

// PRF is the keyed pseudo random function Poseidon(key, input).
func PRF(key, input fr.Element) fr.Element {
	out, err := Hash(key, input)
	if err != nil {
		// two reduced elements are always a valid input
		panic(fmt.Sprintf("poseidon: %v", err))
	}
	return out
}
