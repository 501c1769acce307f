package ledger

import (
	"bytes"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

// Authorization is an ordered, non-empty sequence of transitions signed by a
// single key and not yet proven. The first transition is the pending call.
type Authorization struct {
	transitions []*Transition
	executionID core.Digest
}

// NewAuthorization wraps transitions in an authorization.
func NewAuthorization(transitions ...*Transition) (*Authorization, error) {
	if len(transitions) == 0 {
		return nil, errs.New(errs.MalformedAuthorization, "authorization has no transitions")
	}
	ids := make([]core.Digest, len(transitions))
	for i, t := range transitions {
		if t == nil {
			return nil, errs.Newf(errs.MalformedAuthorization, "transition %d is nil", i)
		}
		if t.Signer() != transitions[0].Signer() {
			return nil, errs.Newf(errs.MalformedAuthorization, "transition %d has a different signer", i)
		}
		ids[i] = t.ID()
	}
	executionID, err := ExecutionIDOf(ids)
	if err != nil {
		return nil, err
	}
	return &Authorization{
		transitions: append([]*Transition(nil), transitions...),
		executionID: executionID,
	}, nil
}

// Peek returns the first pending transition without consuming it.
func (a *Authorization) Peek() (*Transition, error) {
	if a == nil || len(a.transitions) == 0 {
		return nil, errs.New(errs.MalformedAuthorization, "authorization is empty")
	}
	return a.transitions[0], nil
}

// Len returns the number of transitions.
func (a *Authorization) Len() int {
	return len(a.transitions)
}

// Transitions returns the transitions in order.
func (a *Authorization) Transitions() []*Transition {
	return append([]*Transition(nil), a.transitions...)
}

// Signer returns the address that signed every transition.
func (a *Authorization) Signer() account.Address {
	return a.transitions[0].Signer()
}

// ExecutionID returns the Merkle root over the transition ids. The fee for
// this authorization must name it.
func (a *Authorization) ExecutionID() core.Digest {
	return a.executionID
}

// Equal reports whether two authorizations encode identically.
func (a *Authorization) Equal(other *Authorization) bool {
	if a == nil || other == nil {
		return a == other
	}
	x, err := codec.Marshal(a)
	if err != nil {
		return false
	}
	y, err := codec.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(x, y)
}

// ExecutionIDOf computes the execution id over ordered transition ids.
func ExecutionIDOf(transitionIDs []core.Digest) (core.Digest, error) {
	root, err := core.MerkleRoot(transitionIDs)
	if err != nil {
		return core.Digest{}, errs.Wrap(errs.MalformedAuthorization, "execution id", err)
	}
	return root, nil
}
