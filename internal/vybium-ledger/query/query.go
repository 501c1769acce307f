// Package query resolves the external ledger state a proof depends on: the
// global state root and inclusion paths for consumed records.
package query

import (
	"context"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
)

var (
	// ErrStateRootUnset is returned when no state root was supplied.
	ErrStateRootUnset = errs.New(errs.UnresolvedState, "state root is not set")
	// ErrStatePathUnset is returned when no state path was supplied.
	ErrStatePathUnset = errs.New(errs.UnresolvedState, "state path is not set")
)

// Query is the state-query capability. Each method has a plain and a
// context-taking form with identical semantics.
type Query interface {
	CurrentStateRoot() (core.Digest, error)
	CurrentStateRootContext(ctx context.Context) (core.Digest, error)
	StatePathForCommitment(commitment core.Digest) (*ledger.StatePath, error)
	StatePathForCommitmentContext(ctx context.Context, commitment core.Digest) (*ledger.StatePath, error)
}

// StaticQuery returns externally supplied facts verbatim. It does no I/O and
// is never mutated after construction.
type StaticQuery struct {
	root *core.Digest
	path *ledger.StatePath
}

var _ Query = (*StaticQuery)(nil)

// NewStaticQuery wraps an optional state root and an optional state path.
func NewStaticQuery(root *core.Digest, path *ledger.StatePath) *StaticQuery {
	q := &StaticQuery{}
	if root != nil {
		r := *root
		q.root = &r
	}
	if path != nil {
		p := *path
		p.Siblings = append([]core.ProofNode(nil), path.Siblings...)
		q.path = &p
	}
	return q
}

// CurrentStateRoot returns the supplied root.
func (q *StaticQuery) CurrentStateRoot() (core.Digest, error) {
	if q.root == nil {
		return core.Digest{}, ErrStateRootUnset
	}
	return *q.root, nil
}

// CurrentStateRootContext is CurrentStateRoot; ctx is ignored.
func (q *StaticQuery) CurrentStateRootContext(_ context.Context) (core.Digest, error) {
	return q.CurrentStateRoot()
}

// StatePathForCommitment returns the supplied path whatever commitment is
// asked for. The prover checks that the path actually matches.
func (q *StaticQuery) StatePathForCommitment(_ core.Digest) (*ledger.StatePath, error) {
	if q.path == nil {
		return nil, ErrStatePathUnset
	}
	p := *q.path
	p.Siblings = append([]core.ProofNode(nil), q.path.Siblings...)
	return &p, nil
}

// StatePathForCommitmentContext is StatePathForCommitment; ctx is ignored.
func (q *StaticQuery) StatePathForCommitmentContext(_ context.Context, commitment core.Digest) (*ledger.StatePath, error) {
	return q.StatePathForCommitment(commitment)
}
