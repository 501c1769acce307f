package stark

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/merkle"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
)

var twoInverse = field.New(2).Inverse()

// pairedLeaf hashes the opened values at a point and at its negation.
func pairedLeaf(at, neg []field.Element) hash.Digest {
	in := make([]field.Element, 0, len(at)+len(neg))
	in = append(in, at...)
	in = append(in, neg...)
	return hash.HashVarlen(in)
}

// pairedTree commits to evaluations on a domain. Leaf j covers points j and
// j+len/2, which are x and -x.
type pairedTree struct {
	cols [][]field.Element
	tree *merkle.MerkleTree
}

func newPairedTree(cols ...[]field.Element) (*pairedTree, error) {
	half := len(cols[0]) / 2
	leaves := make([]hash.Digest, half)
	at := make([]field.Element, len(cols))
	neg := make([]field.Element, len(cols))
	for j := range leaves {
		for c, col := range cols {
			at[c] = col[j]
			neg[c] = col[j+half]
		}
		leaves[j] = pairedLeaf(at, neg)
	}
	tree, err := merkle.New(leaves)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &pairedTree{cols: cols, tree: tree}, nil
}

func (t *pairedTree) root() core.Digest {
	return core.Digest(t.tree.Root())
}

// open returns the values at leaf j and its authentication path.
func (t *pairedTree) open(j int) ([2][]field.Element, []core.Digest, error) {
	half := len(t.cols[0]) / 2
	var vals [2][]field.Element
	vals[0] = make([]field.Element, len(t.cols))
	vals[1] = make([]field.Element, len(t.cols))
	for c, col := range t.cols {
		vals[0][c] = col[j]
		vals[1][c] = col[j+half]
	}
	path, err := t.tree.AuthenticationPath(uint64(j))
	if err != nil {
		return vals, nil, err
	}
	out := make([]core.Digest, len(path))
	for i, d := range path {
		out[i] = core.Digest(d)
	}
	return vals, out, nil
}

// checkOpening verifies a paired leaf against root in a tree of the given
// number of leaves.
func checkOpening(root core.Digest, leaves, j int, at, neg []field.Element, path []core.Digest) error {
	if len(path) != log2(leaves) {
		return fmt.Errorf("authentication path has %d nodes, want %d", len(path), log2(leaves))
	}
	hpath := make([]hash.Digest, len(path))
	for i, d := range path {
		hpath[i] = hash.Digest(d)
	}
	if !merkle.VerifyInclusionProof(hash.Digest(root), uint64(j), pairedLeaf(at, neg), hpath) {
		return fmt.Errorf("leaf %d does not open to the committed root", j)
	}
	return nil
}

// fold combines f(x) and f(-x) into the value at x^2 of the folded layer
// f'(y) = f_even(y) + alpha * f_odd(y).
func fold(at, neg, x, alpha field.Element) field.Element {
	even := at.Add(neg).Mul(twoInverse)
	odd := at.Sub(neg).Mul(twoInverse).Mul(x.Inverse())
	return even.Add(alpha.Mul(odd))
}

// foldLayer folds a whole layer evaluated on d.
func foldLayer(values []field.Element, d *ArithmeticDomain, alpha field.Element) ([]field.Element, error) {
	half := len(values) / 2
	xs := make([]field.Element, half)
	x := d.Offset
	for j := range xs {
		xs[j] = x
		x = x.Mul(d.Generator)
	}
	inv, err := batchInverse(xs)
	if err != nil {
		return nil, err
	}
	out := make([]field.Element, half)
	for j := range out {
		a, b := values[j], values[j+half]
		even := a.Add(b).Mul(twoInverse)
		odd := a.Sub(b).Mul(twoInverse).Mul(inv[j])
		out[j] = even.Add(alpha.Mul(odd))
	}
	return out, nil
}
