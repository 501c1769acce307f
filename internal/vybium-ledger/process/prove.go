package process

import (
	"context"
	"fmt"
	"io"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/stark"
)

const domainRandomness = "vybium.proof.randomness"

// ProveExecution proves a prepared trace of a function authorization.
func (p *Process) ProveExecution(ctx context.Context, tr *Trace) (*ledger.Execution, error) {
	pts, proof, err := p.prove(ctx, tr)
	if err != nil {
		return nil, err
	}
	return &ledger.Execution{
		Transitions:     pts,
		GlobalStateRoot: tr.root,
		Proof:           proof,
	}, nil
}

// ProveFee proves a prepared trace of a fee authorization. The trace must
// hold exactly one fee_public transition.
func (p *Process) ProveFee(ctx context.Context, tr *Trace) (*ledger.Fee, error) {
	if len(tr.steps) != 1 || tr.steps[0].transition.Locator() != feeLocator {
		return nil, errs.Newf(errs.MalformedAuthorization, "fee trace must be a single %s call", feeLocator)
	}
	pts, proof, err := p.prove(ctx, tr)
	if err != nil {
		return nil, err
	}
	return &ledger.Fee{
		Transition:      pts[0],
		GlobalStateRoot: tr.root,
		Proof:           proof,
	}, nil
}

// prove runs every transition's program over its public values and secrets
// and proves the resulting trace.
func (p *Process) prove(ctx context.Context, tr *Trace) ([]*ledger.PublicTransition, *ledger.Proof, error) {
	if !tr.prepared {
		return nil, nil, errs.New(errs.UnresolvedState, "trace is not prepared")
	}

	pts := make([]*ledger.PublicTransition, len(tr.steps))
	proof := &ledger.Proof{Transitions: make([]*stark.Proof, len(tr.steps))}
	for i, s := range tr.steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("prove: %w", err)
		}
		loc := s.transition.Locator()
		pt := s.transition.Public(s.key.VerifyingKey)
		in, err := s.impl.instance(pt)
		if err != nil {
			return nil, nil, err
		}
		req := s.transition.Request()
		w := &witness{tvk: req.TVK, skTag: req.SKTag}
		s.impl.secrets(w)

		prog := s.impl.build(in, w)
		if err := prog.Finish(); err != nil {
			return nil, nil, errs.Wrap(errs.ProofFailure, loc.String(), err)
		}
		if err := prog.Unsatisfied(); err != nil {
			return nil, nil, errs.Wrap(errs.ProofFailure, loc.String(), err)
		}
		if !prog.Digest().Equal(s.key.VerifyingKey) {
			return nil, nil, errs.Newf(errs.ProofFailure, "%s: program differs from its proving key", loc)
		}

		claim := transitionClaim(s.key.VerifyingKey, prog.Public(), pt.ID, tr.root)
		sp, err := stark.Prove(p.params, prog, prog.Trace(), claim, proofRandomness(req.TVK, pt.ID, tr.root))
		if err != nil {
			return nil, nil, errs.Wrap(errs.ProofFailure, loc.String(), err)
		}
		pts[i], proof.Transitions[i] = pt, sp
	}
	return pts, proof, nil
}

// transitionClaim is the statement proven for one transition: the program
// ran over input and the proof belongs to transition id under root.
func transitionClaim(vk core.Digest, input []field.Element, id, root core.Digest) *stark.Claim {
	return &stark.Claim{
		Program:  vk,
		Input:    input,
		Bindings: []core.Digest{id, root},
	}
}

// proofRandomness keys the trace randomizers on the view key, which only the
// signer and the prover hold.
func proofRandomness(tvk, id, root core.Digest) io.Reader {
	h := sha3.NewShake256()
	h.Write([]byte(domainRandomness))
	h.Write(tvk.Bytes())
	h.Write(id.Bytes())
	h.Write(root.Bytes())
	return h
}
