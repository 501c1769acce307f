package core

import (
	"fmt"
)

const (
	merkleLeafDomain = "vybium.merkle.leaf"
	merkleNodeDomain = "vybium.merkle.node"
)

// MerkleTree commits to an ordered list of digests.
type MerkleTree struct {
	root   Digest
	leaves []Digest
	levels [][]Digest
}

// NewMerkleTree builds a tree over the given leaves.
func NewMerkleTree(data []Digest) (*MerkleTree, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot create Merkle tree with empty data")
	}

	leaves := make([]Digest, len(data))
	for i, item := range data {
		leaves[i] = hashLeaf(item)
	}

	levels := [][]Digest{leaves}
	currentLevel := leaves

	for len(currentLevel) > 1 {
		nextLevel := make([]Digest, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			if i+1 < len(currentLevel) {
				nextLevel = append(nextLevel, hashNode(currentLevel[i], currentLevel[i+1]))
			} else {
				// Odd number of nodes, hash the last node with itself
				nextLevel = append(nextLevel, hashNode(currentLevel[i], currentLevel[i]))
			}
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &MerkleTree{
		root:   currentLevel[0],
		leaves: leaves,
		levels: levels,
	}, nil
}

// Root returns the Merkle root
func (mt *MerkleTree) Root() Digest {
	return mt.root
}

// Len returns the number of leaves.
func (mt *MerkleTree) Len() int {
	return len(mt.leaves)
}

// Proof generates a Merkle proof for the given index
func (mt *MerkleTree) Proof(index int) ([]ProofNode, error) {
	if index < 0 || index >= len(mt.leaves) {
		return nil, fmt.Errorf("index %d out of range [0, %d)", index, len(mt.leaves))
	}

	proof := make([]ProofNode, 0, len(mt.levels)-1)
	currentIndex := index

	for level := 0; level < len(mt.levels)-1; level++ {
		currentLevel := mt.levels[level]

		var siblingIndex int
		var isRight bool
		if currentIndex%2 == 0 {
			siblingIndex = currentIndex + 1
			isRight = true
		} else {
			siblingIndex = currentIndex - 1
			isRight = false
		}

		// The last node of an odd level is paired with itself.
		if siblingIndex >= len(currentLevel) {
			siblingIndex = currentIndex
		}

		proof = append(proof, ProofNode{
			Hash:    currentLevel[siblingIndex],
			IsRight: isRight,
		})

		currentIndex /= 2
	}

	return proof, nil
}

// VerifyProof verifies a Merkle proof
func VerifyProof(root Digest, leaf Digest, proof []ProofNode) bool {
	return ComputeRoot(leaf, proof).Equal(root)
}

// ComputeRoot folds a proof over leaf and returns the resulting root.
func ComputeRoot(leaf Digest, proof []ProofNode) Digest {
	current := hashLeaf(leaf)
	for _, node := range proof {
		if node.IsRight {
			current = hashNode(current, node.Hash)
		} else {
			current = hashNode(node.Hash, current)
		}
	}
	return current
}

// ProofNode represents a node in a Merkle proof
type ProofNode struct {
	Hash    Digest
	IsRight bool // true if this node is the right child, false if left
}

// MerkleRoot computes the Merkle root of the given data (convenience function)
func MerkleRoot(data []Digest) (Digest, error) {
	tree, err := NewMerkleTree(data)
	if err != nil {
		return Digest{}, err
	}
	return tree.Root(), nil
}

func hashLeaf(d Digest) Digest {
	return HashDigests(merkleLeafDomain, d)
}

func hashNode(left, right Digest) Digest {
	return HashDigests(merkleNodeDomain, left, right)
}
