package process

import (
	"context"
	"fmt"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/query"
)

// Trace is the replayed execution of an authorization: one loaded native
// function per transition plus the records it consumes.
type Trace struct {
	steps    []*step
	root     core.Digest
	prepared bool
}

type step struct {
	transition  *ledger.Transition
	key         *ProvingKey
	impl        function
	commitments []core.Digest
}

// Len returns the number of transitions in the trace.
func (tr *Trace) Len() int { return len(tr.steps) }

// Commitments returns the record commitments the trace consumes, in input
// order.
func (tr *Trace) Commitments() []core.Digest {
	var out []core.Digest
	for _, s := range tr.steps {
		out = append(out, s.commitments...)
	}
	return out
}

// StateRoot returns the root bound by Prepare.
func (tr *Trace) StateRoot() (core.Digest, bool) {
	return tr.root, tr.prepared
}

// Trace replays auth. Every request must verify, match its function's
// signature and produce exactly the outputs the native function computes.
func (p *Process) Trace(auth *ledger.Authorization) (*Trace, error) {
	if _, err := auth.Peek(); err != nil {
		return nil, err
	}
	tr := &Trace{}
	for i, t := range auth.Transitions() {
		s, err := p.replay(t)
		if err != nil {
			return nil, fmt.Errorf("transition %d: %w", i, err)
		}
		tr.steps = append(tr.steps, s)
	}
	return tr, nil
}

func (p *Process) replay(t *ledger.Transition) (*step, error) {
	loc := t.Locator()
	key, err := p.ProvingKey(loc)
	if err != nil {
		return nil, err
	}
	fn, err := p.program.Function(loc.Function)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedAuthorization, loc.String(), err)
	}
	req := t.Request()
	if err := req.Verify(); err != nil {
		return nil, err
	}
	if err := sameSignature(loc, fn, req.InputTypes, t.OutputTypes(), t.OutputRegisters()); err != nil {
		return nil, err
	}

	impl, err := newFunction(fn)
	if err != nil {
		return nil, err
	}
	if err := impl.load(t.Signer(), req.Inputs, t.Response().Outputs); err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	want, err := ledger.NewResponse(req, impl.expected(), fn.Outputs, fn.OutputRegisters)
	if err != nil {
		return nil, errs.Wrap(errs.ProofFailure, loc.String()+": native execution", err)
	}
	got := t.Response().OutputIDs
	for i := range want.OutputIDs {
		if !want.OutputIDs[i].Equal(got[i]) {
			return nil, errs.Newf(errs.ProofFailure, "%s: output %s does not match the native execution", loc, fn.OutputRegisters[i])
		}
	}

	var commitments []core.Digest
	for _, id := range req.InputIDs {
		if id.Kind == ledger.InputRecord {
			commitments = append(commitments, id.ID)
		}
	}
	return &step{transition: t, key: key, impl: impl, commitments: commitments}, nil
}

func sameSignature(loc program.Locator, fn *program.Function, inputs, outputs []program.ValueType, registers []program.Register) error {
	if len(inputs) != len(fn.Inputs) || len(outputs) != len(fn.Outputs) || len(registers) != len(fn.OutputRegisters) {
		return errs.Newf(errs.MalformedAuthorization, "%s: signature arity differs", loc)
	}
	for i, t := range fn.Inputs {
		if inputs[i].String() != t.String() {
			return errs.Newf(errs.MalformedAuthorization, "%s: input %d is %s, want %s", loc, i, inputs[i], t)
		}
	}
	for i, t := range fn.Outputs {
		if outputs[i].String() != t.String() {
			return errs.Newf(errs.MalformedAuthorization, "%s: output %d is %s, want %s", loc, i, outputs[i], t)
		}
		if registers[i] != fn.OutputRegisters[i] {
			return errs.Newf(errs.MalformedAuthorization, "%s: output %d is in %s, want %s", loc, i, registers[i], fn.OutputRegisters[i])
		}
	}
	return nil
}

// Prepare resolves the trace's state dependencies through q. The state root
// is always required. Each consumed record needs an inclusion path for its
// commitment that verifies against that root.
func (tr *Trace) Prepare(ctx context.Context, q query.Query) error {
	tr.root = core.Digest{}
	tr.prepared = false
	if q == nil {
		return errs.New(errs.UnresolvedState, "no state query")
	}
	root, err := q.CurrentStateRootContext(ctx)
	if err != nil {
		return fmt.Errorf("resolve state root: %w", err)
	}
	for _, c := range tr.Commitments() {
		path, err := q.StatePathForCommitmentContext(ctx, c)
		if err != nil {
			return fmt.Errorf("resolve state path for %s: %w", c, err)
		}
		switch {
		case !path.Commitment.Equal(c):
			return errs.Newf(errs.UnresolvedState, "state path is for %s, not %s", path.Commitment, c)
		case !path.GlobalStateRoot.Equal(root):
			return errs.Newf(errs.UnresolvedState, "state path for %s is against a different root", c)
		case !path.Verify():
			return errs.Newf(errs.UnresolvedState, "state path for %s does not verify", c)
		}
	}
	tr.root = root
	tr.prepared = true
	return nil
}
