// Package tree implements the note commitment tree: a fixed depth,
// append-only binary Merkle tree over BN254 field elements hashed with
// MiMC. Its root is the anchor every spend proves membership against.
package tree

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/vocdoni/shielded-pool/config"
	"github.com/vocdoni/shielded-pool/crypto"
	"github.com/vocdoni/shielded-pool/note"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrTreeFull        = fmt.Errorf("commitment tree is full")
	ErrUnknownPosition = fmt.Errorf("unknown leaf position")
)

// Depth is the number of levels between a leaf and the root.
const Depth = config.MerkleDepth

var (
	emptyLeaf  fr.Element
	emptyRoots [Depth + 1]fr.Element
)

func init() {
	digest := blake2b.Sum256([]byte(config.DomainEmptyLeaf))
	emptyLeaf = crypto.BytesToFF(digest[:])
	emptyRoots[0] = emptyLeaf
	for i := 1; i <= Depth; i++ {
		emptyRoots[i] = HashNode(emptyRoots[i-1], emptyRoots[i-1])
	}
}

// HashNode returns the MiMC hash of two sibling nodes.
func HashNode(left, right fr.Element) fr.Element {
	h := mimc.NewMiMC()
	l, r := left.Bytes(), right.Bytes()
	if _, err := h.Write(l[:]); err != nil {
		panic(err)
	}
	if _, err := h.Write(r[:]); err != nil {
		panic(err)
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// Anchor is the root of the commitment tree at some point in time.
type Anchor struct {
	e fr.Element
}

// EmptyAnchor returns the root of a tree with no leaves.
func EmptyAnchor() Anchor {
	return Anchor{e: emptyRoots[Depth]}
}

// AnchorFromBytes decodes a canonical big-endian field element.
func AnchorFromBytes(b []byte) (Anchor, error) {
	e, ok := crypto.FieldFromBytes(b)
	if !ok {
		return Anchor{}, fmt.Errorf("invalid anchor %x", b)
	}
	return Anchor{e: e}, nil
}

// Bytes returns the big-endian encoding of the anchor.
func (a Anchor) Bytes() [crypto.SerializedFieldSize]byte {
	return crypto.FieldBytes(&a.e)
}

// Field returns the anchor as a field element.
func (a Anchor) Field() fr.Element {
	return a.e
}

func (a Anchor) String() string {
	b := a.Bytes()
	return fmt.Sprintf("%x", b[:])
}

// MerklePath is the authentication path of a leaf.
type MerklePath struct {
	position uint32
	siblings [Depth]fr.Element
}

// NewMerklePath builds a path from the leaf position and its siblings,
// ordered from the leaf level up.
func NewMerklePath(position uint32, siblings [Depth]fr.Element) MerklePath {
	return MerklePath{position: position, siblings: siblings}
}

// DummyPath returns a path with a random position and random siblings. It
// is attached to dummy spends, whose root is never checked.
func DummyPath(rng io.Reader) (MerklePath, error) {
	var buf [4 + Depth*64]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return MerklePath{}, fmt.Errorf("cannot read randomness: %w", err)
	}
	var p MerklePath
	p.position = uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	for i := range p.siblings {
		off := 4 + i*64
		p.siblings[i].SetBytes(buf[off : off+64])
	}
	return p, nil
}

// Position returns the leaf position.
func (p MerklePath) Position() uint32 {
	return p.position
}

// Siblings returns the sibling nodes from the leaf level up.
func (p MerklePath) Siblings() [Depth]fr.Element {
	return p.siblings
}

// Root computes the root reached from leaf along the path.
func (p MerklePath) Root(leaf note.ExtractedCommitment) Anchor {
	node := leaf.Field()
	for i := 0; i < Depth; i++ {
		if (p.position>>i)&1 == 0 {
			node = HashNode(node, p.siblings[i])
		} else {
			node = HashNode(p.siblings[i], node)
		}
	}
	return Anchor{e: node}
}

// CommitmentTree is an in-memory append-only commitment tree. It is not
// safe for concurrent use.
type CommitmentTree struct {
	leaves []fr.Element
}

// NewCommitmentTree returns an empty tree.
func NewCommitmentTree() *CommitmentTree {
	return &CommitmentTree{}
}

// Size returns the number of leaves appended so far.
func (t *CommitmentTree) Size() int {
	return len(t.leaves)
}

// Append adds cmx as the next leaf and returns its position.
func (t *CommitmentTree) Append(cmx note.ExtractedCommitment) (uint32, error) {
	if uint64(len(t.leaves)) >= 1<<Depth {
		return 0, ErrTreeFull
	}
	t.leaves = append(t.leaves, cmx.Field())
	return uint32(len(t.leaves) - 1), nil
}

// levels returns every populated level, from the leaves to the root.
func (t *CommitmentTree) levels() [][]fr.Element {
	levels := make([][]fr.Element, Depth+1)
	levels[0] = t.leaves
	for d := 0; d < Depth; d++ {
		cur := levels[d]
		next := make([]fr.Element, (len(cur)+1)/2)
		for i := range next {
			right := emptyRoots[d]
			if 2*i+1 < len(cur) {
				right = cur[2*i+1]
			}
			next[i] = HashNode(cur[2*i], right)
		}
		levels[d+1] = next
	}
	return levels
}

// Root returns the current anchor.
func (t *CommitmentTree) Root() Anchor {
	if len(t.leaves) == 0 {
		return EmptyAnchor()
	}
	return Anchor{e: t.levels()[Depth][0]}
}

// Witness returns the authentication path of the leaf at position against
// the current root.
func (t *CommitmentTree) Witness(position uint32) (MerklePath, error) {
	if uint64(position) >= uint64(len(t.leaves)) {
		return MerklePath{}, fmt.Errorf("%w: %d", ErrUnknownPosition, position)
	}
	levels := t.levels()
	p := MerklePath{position: position}
	idx := uint64(position)
	for d := 0; d < Depth; d++ {
		sibling := idx ^ 1
		if sibling < uint64(len(levels[d])) {
			p.siblings[d] = levels[d][sibling]
		} else {
			p.siblings[d] = emptyRoots[d]
		}
		idx >>= 1
	}
	return p, nil
}
