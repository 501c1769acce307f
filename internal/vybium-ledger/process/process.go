// Package process replays authorizations of the native credits program,
// resolves their state dependencies and proves them.
//
// The workflow for one authorization is
//
//  1. Trace: verify every request and recompute its outputs natively.
//  2. Prepare: resolve the global state root and one inclusion path per
//     consumed record through a query.Query.
//  3. Prove: run each function as a VM program over the transition's public
//     values and its secrets, and prove the execution trace with a STARK
//     bound to the transition id and the state root.
//
// Execute runs all three for a function authorization and its fee and
// assembles the transaction.
package process

import (
	"context"
	"fmt"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/query"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/stark"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// ProvingKey describes the VM program of one function. VerifyingKey is the
// digest of its instruction sequence, Height its trace height and NumPublic
// the number of public values it reads.
type ProvingKey struct {
	Function     program.Identifier
	VerifyingKey core.Digest
	Height       int
	NumPublic    int

	impl function
	fn   *program.Function
}

// Process holds the credits program and the proving keys of its functions.
// A Process is not safe for concurrent use.
type Process struct {
	program *program.Program
	keys    map[program.Identifier]*ProvingKey
	params  stark.Parameters
}

// Option configures a Process.
type Option func(*Process)

// WithHashFunction selects the transcript hash (utils.HashSHA3 by default).
func WithHashFunction(hashFunc string) Option {
	return func(p *Process) {
		p.params.HashFunction = hashFunc
	}
}

// WithProofParameters replaces the proof system parameters. The transcript
// hash of params is kept unless it is empty.
func WithProofParameters(params stark.Parameters) Option {
	return func(p *Process) {
		if params.HashFunction == "" {
			params.HashFunction = p.params.HashFunction
		}
		p.params = params
	}
}

// LoadProcess builds every credits function as a VM program over a zero
// instance and derives its proving key. Callers keep the result.
func LoadProcess(opts ...Option) (*Process, error) {
	p := &Process{
		program: program.Credits(),
		keys:    make(map[program.Identifier]*ProvingKey),
		params:  stark.DefaultParameters(),
	}
	for _, opt := range opts {
		opt(p)
	}
	switch p.params.HashFunction {
	case utils.HashSHA3, utils.HashSHA256, utils.HashBlake2b:
	default:
		return nil, errs.Newf(errs.ParseError, "unknown transcript hash %q", p.params.HashFunction)
	}
	if err := p.params.Validate(); err != nil {
		return nil, errs.Wrap(errs.ParseError, "proof parameters", err)
	}

	for _, fn := range p.program.Functions() {
		impl, err := newFunction(fn)
		if err != nil {
			return nil, err
		}
		prog := impl.build(&instance{}, &witness{})
		if err := prog.Finish(); err != nil {
			return nil, errs.Wrap(errs.ProofFailure, "build "+fn.Name.String(), err)
		}
		p.keys[fn.Name] = &ProvingKey{
			Function:     fn.Name,
			VerifyingKey: prog.Digest(),
			Height:       prog.Height(),
			NumPublic:    len(prog.Public()),
			impl:         impl,
			fn:           fn,
		}
	}
	return p, nil
}

// Parameters returns the proof system parameters.
func (p *Process) Parameters() stark.Parameters {
	return p.params
}

// Program returns the program the process executes.
func (p *Process) Program() *program.Program {
	return p.program
}

// ProvingKey returns the key of the function at loc.
func (p *Process) ProvingKey(loc program.Locator) (*ProvingKey, error) {
	if loc.Program != p.program.ID {
		return nil, errs.Newf(errs.MalformedAuthorization, "program %s is not loaded", loc.Program)
	}
	key, ok := p.keys[loc.Function]
	if !ok {
		return nil, errs.Newf(errs.MalformedAuthorization, "function %s is not loaded", loc)
	}
	return key, nil
}

// Execute proves function and its optional fee against the state that q
// resolves and assembles the transaction. It either returns a complete
// transaction or an error; nothing is retried.
//
// An in-flight proof does not observe ctx; cancellation is checked between
// stages.
func (p *Process) Execute(ctx context.Context, function, fee *ledger.Authorization, q query.Query) (*ledger.Transaction, error) {
	first, err := function.Peek()
	if err != nil {
		return nil, err
	}
	if _, err := p.ProvingKey(first.Locator()); err != nil {
		return nil, err
	}
	if fee != nil {
		if err := checkFeeBinding(function, fee); err != nil {
			return nil, err
		}
	}

	trace, err := p.Trace(function)
	if err != nil {
		return nil, err
	}
	if err := trace.Prepare(ctx, q); err != nil {
		return nil, err
	}
	exec, err := p.ProveExecution(ctx, trace)
	if err != nil {
		return nil, err
	}

	var feeArtifact *ledger.Fee
	if fee != nil {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execute fee: %w", err)
		}
		feeTrace, err := p.Trace(fee)
		if err != nil {
			return nil, err
		}
		if err := feeTrace.Prepare(ctx, q); err != nil {
			return nil, err
		}
		if feeArtifact, err = p.ProveFee(ctx, feeTrace); err != nil {
			return nil, err
		}
	}
	return ledger.NewTransaction(exec, feeArtifact)
}

// checkFeeBinding rejects a fee that is not a single fee_public call naming
// function's execution id.
func checkFeeBinding(function, fee *ledger.Authorization) error {
	ft, err := fee.Peek()
	if err != nil {
		return err
	}
	if fee.Len() != 1 || ft.Locator() != feeLocator {
		return errs.Newf(errs.MalformedAuthorization, "fee authorization must be a single %s call", feeLocator)
	}
	bound, err := literalAt(ft.Request().Inputs, ledger.FeeInputExecutionID, program.Literal.Digest)
	if err != nil {
		return errs.Wrap(errs.MissingBinding, "fee execution id", err)
	}
	if !bound.Equal(function.ExecutionID()) {
		return errs.New(errs.MissingBinding, "fee is bound to a different execution")
	}
	return nil
}

var feeLocator = program.Locator{Program: program.CreditsID, Function: program.FunctionFeePublic}
