package ledger

import (
	"math/bits"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/stark"
)

const domainTransactionID = "vybium.transaction.id"

// Fee public input positions in credits.vy/fee_public.
const (
	FeeInputBase = iota
	FeeInputPriority
	FeeInputExecutionID
)

// PublicValue is a revealed input or output. Index is its position in the
// transition's inputs or outputs; Register is its register.
type PublicValue struct {
	Index    uint16
	Register program.Register
	Value    program.Value
}

// PublicTransition is the ledger's view of a proven transition. The signer
// and the request signature travel with it so that verifiers can check who
// authorized the call.
type PublicTransition struct {
	ID            core.Digest
	Signer        account.Address
	Signature     []byte
	Program       program.ProgramID
	Function      program.Identifier
	InputIDs      []InputID
	OutputIDs     []OutputID
	PublicInputs  []PublicValue
	PublicOutputs []PublicValue
	TCM           core.Digest
	VerifyingKey  core.Digest
}

// Locator returns the called function.
func (t *PublicTransition) Locator() program.Locator {
	return program.Locator{Program: t.Program, Function: t.Function}
}

// PublicInput returns the revealed input at position index.
func (t *PublicTransition) PublicInput(index int) (program.Value, bool) {
	for _, pv := range t.PublicInputs {
		if int(pv.Index) == index {
			return pv.Value, true
		}
	}
	return program.Value{}, false
}

// ComputeID recomputes the transition id from the public fields and the
// function's declared outputs.
func (t *PublicTransition) ComputeID(outputTypes []program.ValueType, outputRegisters []program.Register) (core.Digest, error) {
	if len(outputTypes) != len(t.OutputIDs) || len(outputRegisters) != len(t.OutputIDs) {
		return core.Digest{}, errs.Newf(errs.ProofFailure, "%s: %d output ids for %d declared outputs", t.Locator(), len(t.OutputIDs), len(outputTypes))
	}
	return TransitionID(t.Signer, t.Locator(), t.TCM, t.InputIDs, t.OutputIDs, outputTypes, outputRegisters), nil
}

// VerifySignature checks the signer's signature over the locator, the input
// ids and the transcript commitment.
func (t *PublicTransition) VerifySignature() error {
	msg, err := SigningMessage(t.Signer, t.Locator(), t.InputIDs, t.TCM)
	if err != nil {
		return errs.Wrap(errs.ProofFailure, "build signing message", err)
	}
	if !t.Signer.Verify(msg, t.Signature) {
		return errs.Newf(errs.ProofFailure, "%s: invalid signature", t.Locator())
	}
	return nil
}

// CheckPublicIDs recomputes the ids of every revealed value and compares them
// with the committed ids.
func (t *PublicTransition) CheckPublicIDs() error {
	loc := t.Locator()
	for _, pv := range t.PublicInputs {
		if int(pv.Index) >= len(t.InputIDs) {
			return errs.Newf(errs.ProofFailure, "%s: public input %d out of range", loc, pv.Index)
		}
		id := t.InputIDs[pv.Index]
		if id.Kind != InputConstant && id.Kind != InputPublic {
			return errs.Newf(errs.ProofFailure, "%s: input %d is not public", loc, pv.Index)
		}
		if !PublicInputID(id.Kind, loc, t.TCM, int(pv.Index), pv.Value).Equal(id.ID) {
			return errs.Newf(errs.ProofFailure, "%s: public input %d does not match its id", loc, pv.Index)
		}
	}
	for _, pv := range t.PublicOutputs {
		if int(pv.Index) >= len(t.OutputIDs) {
			return errs.Newf(errs.ProofFailure, "%s: public output %d out of range", loc, pv.Index)
		}
		id := t.OutputIDs[pv.Index]
		if id.Kind != OutputConstant && id.Kind != OutputPublic && id.Kind != OutputFuture {
			return errs.Newf(errs.ProofFailure, "%s: output %d is not public", loc, pv.Index)
		}
		if !PublicOutputID(id.Kind, loc, t.TCM, pv.Register, pv.Value).Equal(id.ID) {
			return errs.Newf(errs.ProofFailure, "%s: public output %d does not match its id", loc, pv.Index)
		}
	}
	return nil
}

// Proof holds one STARK per proven transition, in transition order.
type Proof struct {
	Transitions []*stark.Proof
}

// Execution is a proven authorization.
type Execution struct {
	Transitions     []*PublicTransition
	GlobalStateRoot core.Digest
	Proof           *Proof
}

// ID returns the execution id, which equals the ExecutionID of the
// authorization it was proven from.
func (e *Execution) ID() (core.Digest, error) {
	if e == nil || len(e.Transitions) == 0 {
		return core.Digest{}, errs.New(errs.MalformedAuthorization, "execution has no transitions")
	}
	ids := make([]core.Digest, len(e.Transitions))
	for i, t := range e.Transitions {
		ids[i] = t.ID
	}
	return ExecutionIDOf(ids)
}

// Fee is a proven fee authorization.
type Fee struct {
	Transition      *PublicTransition
	GlobalStateRoot core.Digest
	Proof           *Proof
}

func (f *Fee) u64Input(index int) (uint64, error) {
	v, ok := f.Transition.PublicInput(index)
	if !ok {
		return 0, errs.Newf(errs.MissingBinding, "fee input %d is not public", index)
	}
	l, err := v.Plaintext()
	if err != nil {
		return 0, err
	}
	return l.U64()
}

// Amount returns base plus priority fee.
func (f *Fee) Amount() (uint64, error) {
	base, err := f.u64Input(FeeInputBase)
	if err != nil {
		return 0, err
	}
	priority, err := f.u64Input(FeeInputPriority)
	if err != nil {
		return 0, err
	}
	sum, carry := bits.Add64(base, priority, 0)
	if carry != 0 {
		return 0, errs.New(errs.ParseError, "fee amount overflows u64")
	}
	return sum, nil
}

// ExecutionID returns the execution id the fee is bound to.
func (f *Fee) ExecutionID() (core.Digest, error) {
	if f == nil || f.Transition == nil {
		return core.Digest{}, errs.New(errs.MissingBinding, "fee has no transition")
	}
	v, ok := f.Transition.PublicInput(FeeInputExecutionID)
	if !ok {
		return core.Digest{}, errs.New(errs.MissingBinding, "fee does not name an execution id")
	}
	l, err := v.Plaintext()
	if err != nil {
		return core.Digest{}, errs.Wrap(errs.MissingBinding, "fee execution id", err)
	}
	d, err := l.Digest()
	if err != nil {
		return core.Digest{}, errs.Wrap(errs.MissingBinding, "fee execution id", err)
	}
	return d, nil
}

// Transaction is a proven execution plus an optional fee, ready for the
// ledger.
type Transaction struct {
	ID        core.Digest
	Execution *Execution
	Fee       *Fee
}

// NewTransaction assembles a transaction. A fee must be bound to exec.
func NewTransaction(exec *Execution, fee *Fee) (*Transaction, error) {
	execID, err := exec.ID()
	if err != nil {
		return nil, err
	}
	feeID := core.Digest{}
	if fee != nil {
		bound, err := fee.ExecutionID()
		if err != nil {
			return nil, err
		}
		if !bound.Equal(execID) {
			return nil, errs.New(errs.MissingBinding, "fee is bound to a different execution")
		}
		feeID = fee.Transition.ID
	}
	return &Transaction{
		ID:        core.HashDigests(domainTransactionID, execID, feeID),
		Execution: exec,
		Fee:       fee,
	}, nil
}
