package util

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
)

// RandomIndex returns a uniformly distributed integer in [0, n) read from
// rng. It uses rejection sampling so the result is unbiased for any n.
func RandomIndex(rng io.Reader, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid bound %d", n)
	}
	bound := uint64(n)
	// largest multiple of bound that fits in a uint64
	limit := ^uint64(0) - (^uint64(0)%bound+1)%bound
	var buf [8]byte
	for {
		if _, err := io.ReadFull(rng, buf[:]); err != nil {
			return 0, fmt.Errorf("cannot read randomness: %w", err)
		}
		v := binary.LittleEndian.Uint64(buf[:])
		if v <= limit {
			return int(v % bound), nil
		}
	}
}

// Shuffle pseudo-randomizes the order of n elements using the Fisher-Yates
// algorithm and the randomness read from rng. swap swaps the elements with
// indexes i and j.
func Shuffle(rng io.Reader, n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		j, err := RandomIndex(rng, i+1)
		if err != nil {
			return err
		}
		swap(i, j)
	}
	return nil
}

// SeededReader is a deterministic io.Reader which returns the ChaCha20
// keystream of the seed. It is meant for tests and reproducible demos, never
// for production randomness.
type SeededReader struct {
	cipher *chacha20.Cipher
}

// NewSeededReader returns a SeededReader keyed by seed.
func NewSeededReader(seed [32]byte) *SeededReader {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		// key and nonce sizes are fixed, this cannot happen
		panic(err)
	}
	return &SeededReader{cipher: c}
}

// NewSeededReaderFromUint64 is a shortcut to build a SeededReader from a
// small integer seed.
func NewSeededReaderFromUint64(seed uint64) *SeededReader {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:], seed)
	return NewSeededReader(s)
}

func (r *SeededReader) Read(p []byte) (int, error) {
	clear(p)
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}
