package process

import (
	"fmt"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/stark"
)

// VerifyExecution checks an execution against the loaded verifying keys.
func (p *Process) VerifyExecution(exec *ledger.Execution) error {
	if exec == nil || len(exec.Transitions) == 0 {
		return errs.New(errs.ProofFailure, "execution has no transitions")
	}
	return p.verify(exec.Transitions, exec.GlobalStateRoot, exec.Proof)
}

// VerifyFee checks a fee against the fee_public verifying key.
func (p *Process) VerifyFee(fee *ledger.Fee) error {
	if fee == nil || fee.Transition == nil {
		return errs.New(errs.ProofFailure, "fee has no transition")
	}
	if fee.Transition.Locator() != feeLocator {
		return errs.Newf(errs.ProofFailure, "fee transition is %s, want %s", fee.Transition.Locator(), feeLocator)
	}
	return p.verify([]*ledger.PublicTransition{fee.Transition}, fee.GlobalStateRoot, fee.Proof)
}

// VerifyTransaction checks the execution, the fee and the binding between
// them, and that the transaction id matches its contents. The execution id is
// recomputed from the verified transition ids.
func (p *Process) VerifyTransaction(tx *ledger.Transaction) error {
	if tx == nil {
		return errs.New(errs.ProofFailure, "no transaction")
	}
	if err := p.VerifyExecution(tx.Execution); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	if tx.Fee != nil {
		if err := p.VerifyFee(tx.Fee); err != nil {
			return fmt.Errorf("fee: %w", err)
		}
	}
	want, err := ledger.NewTransaction(tx.Execution, tx.Fee)
	if err != nil {
		return errs.Wrap(errs.ProofFailure, "recompute transaction id", err)
	}
	if !want.ID.Equal(tx.ID) {
		return errs.New(errs.ProofFailure, "transaction id does not match its contents")
	}
	return nil
}

func (p *Process) verify(pts []*ledger.PublicTransition, root core.Digest, proof *ledger.Proof) error {
	if proof == nil {
		return errs.New(errs.ProofFailure, "missing proof")
	}
	if len(proof.Transitions) != len(pts) {
		return errs.Newf(errs.ProofFailure, "%d proofs for %d transitions", len(proof.Transitions), len(pts))
	}
	for i, pt := range pts {
		if pt == nil || proof.Transitions[i] == nil {
			return errs.Newf(errs.ProofFailure, "transition %d is missing", i)
		}
		if err := p.verifyTransition(pt, root, proof.Transitions[i]); err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}
	}
	return nil
}

// verifyTransition recomputes everything the ledger can derive from pt:
// its id, the ids of its revealed values, the signature over them and the
// VM program over them. The STARK then shows that the prover ran that
// program with secrets that satisfy it.
func (p *Process) verifyTransition(pt *ledger.PublicTransition, root core.Digest, sp *stark.Proof) error {
	loc := pt.Locator()
	key, err := p.ProvingKey(loc)
	if err != nil {
		return errs.Wrap(errs.ProofFailure, loc.String(), err)
	}
	if !pt.VerifyingKey.Equal(key.VerifyingKey) {
		return errs.Newf(errs.ProofFailure, "%s: unknown verifying key", loc)
	}
	id, err := pt.ComputeID(key.fn.Outputs, key.fn.OutputRegisters)
	if err != nil {
		return err
	}
	if !id.Equal(pt.ID) {
		return errs.Newf(errs.ProofFailure, "%s: transition id does not match its contents", loc)
	}
	if err := pt.VerifySignature(); err != nil {
		return err
	}
	if err := pt.CheckPublicIDs(); err != nil {
		return err
	}

	in, err := key.impl.instance(pt)
	if err != nil {
		return errs.Wrap(errs.ProofFailure, loc.String(), err)
	}
	prog := key.impl.build(in, &witness{})
	if err := prog.Finish(); err != nil {
		return errs.Wrap(errs.ProofFailure, loc.String(), err)
	}
	if !prog.Digest().Equal(key.VerifyingKey) {
		return errs.Newf(errs.ProofFailure, "%s: program differs from its verifying key", loc)
	}
	claim := transitionClaim(key.VerifyingKey, prog.Public(), id, root)
	if err := stark.Verify(p.params, prog, claim, sp); err != nil {
		return errs.Wrap(errs.ProofFailure, loc.String(), err)
	}
	return nil
}
