package ledger

import (
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

// MaxStatePathDepth bounds the number of siblings in a state path.
const MaxStatePathDepth = 64

// StatePath proves that a record commitment is a leaf of the global state
// tree with the given root.
type StatePath struct {
	GlobalStateRoot core.Digest
	Commitment      core.Digest
	Siblings        []core.ProofNode
}

// Verify reports whether the siblings fold the commitment into the root.
func (p *StatePath) Verify() bool {
	if p == nil || len(p.Siblings) > MaxStatePathDepth {
		return false
	}
	return core.VerifyProof(p.GlobalStateRoot, p.Commitment, p.Siblings)
}

// StateTree is an in-memory global state tree over record commitments. Nodes
// and tests use it to produce roots and paths.
type StateTree struct {
	tree  *core.MerkleTree
	index map[core.Digest]int
}

// NewStateTree builds a state tree over commitments.
func NewStateTree(commitments []core.Digest) (*StateTree, error) {
	tree, err := core.NewMerkleTree(commitments)
	if err != nil {
		return nil, errs.Wrap(errs.UnresolvedState, "build state tree", err)
	}
	index := make(map[core.Digest]int, len(commitments))
	for i, c := range commitments {
		if _, ok := index[c]; !ok {
			index[c] = i
		}
	}
	return &StateTree{tree: tree, index: index}, nil
}

// Root returns the global state root.
func (t *StateTree) Root() core.Digest {
	return t.tree.Root()
}

// Path returns the inclusion path of commitment.
func (t *StateTree) Path(commitment core.Digest) (*StatePath, error) {
	i, ok := t.index[commitment]
	if !ok {
		return nil, errs.Newf(errs.UnresolvedState, "commitment %s is not in the state tree", commitment)
	}
	siblings, err := t.tree.Proof(i)
	if err != nil {
		return nil, errs.Wrap(errs.UnresolvedState, "state path", err)
	}
	return &StatePath{
		GlobalStateRoot: t.tree.Root(),
		Commitment:      commitment,
		Siblings:        siblings,
	}, nil
}
