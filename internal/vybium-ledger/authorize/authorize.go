// Package authorize builds signed, unproven authorizations for function calls
// and for the fees that pay for them.
package authorize

import (
	"io"
	"math/bits"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
)

// Call describes one function call and its declared outputs.
type Call struct {
	Program         program.ProgramID
	Function        program.Identifier
	Inputs          []program.Value
	InputTypes      []program.ValueType
	Outputs         []program.Value
	OutputTypes     []program.ValueType
	OutputRegisters []program.Register
}

// Locator returns the called function.
func (c Call) Locator() program.Locator {
	return program.Locator{Program: c.Program, Function: c.Function}
}

// Authorize signs call and wraps the resulting transition in a new
// authorization. The returned digest is the authorization's execution id.
//
// Record outputs may be declared with a zero nonce; the derived nonce is
// filled in. Nothing is read from rng when the call is malformed.
func Authorize(key *account.PrivateKey, call Call, rng io.Reader) (*ledger.Authorization, core.Digest, error) {
	if key == nil {
		return nil, core.Digest{}, errs.New(errs.SigningFailure, "no signing key")
	}
	if len(call.Outputs) != len(call.OutputTypes) || len(call.Outputs) != len(call.OutputRegisters) {
		return nil, core.Digest{}, errs.Newf(errs.ArityMismatch, "%s: %d outputs, %d output types, %d output registers",
			call.Locator(), len(call.Outputs), len(call.OutputTypes), len(call.OutputRegisters))
	}
	for i, t := range call.OutputTypes {
		if err := t.Check(call.Outputs[i]); err != nil {
			return nil, core.Digest{}, errs.Wrap(errs.TypeMismatch, "output "+call.OutputRegisters[i].String(), err)
		}
	}

	req, err := ledger.SignRequest(key, call.Locator(), call.Inputs, call.InputTypes, rng)
	if err != nil {
		return nil, core.Digest{}, err
	}
	transition, err := ledger.BuildTransition(req, call.Outputs, call.OutputTypes, call.OutputRegisters)
	if err != nil {
		return nil, core.Digest{}, err
	}
	auth, err := ledger.NewAuthorization(transition)
	if err != nil {
		return nil, core.Digest{}, err
	}
	return auth, auth.ExecutionID(), nil
}

// AuthorizeFee authorizes credits.vy/fee_public paying baseFee+priorityFee
// for the execution named by executionID. A nil executionID is rejected.
func AuthorizeFee(key *account.PrivateKey, baseFee, priorityFee uint64, executionID *core.Digest, rng io.Reader) (*ledger.Authorization, error) {
	if executionID == nil {
		return nil, errs.New(errs.MissingBinding, "fee authorization requires an execution id")
	}
	if key == nil {
		return nil, errs.New(errs.SigningFailure, "no signing key")
	}
	total, carry := bits.Add64(baseFee, priorityFee, 0)
	if carry != 0 {
		return nil, errs.Newf(errs.ParseError, "fee %d + %d overflows u64", baseFee, priorityFee)
	}

	fn, err := program.Credits().Function(program.FunctionFeePublic)
	if err != nil {
		return nil, err
	}
	call := Call{
		Program:  program.CreditsID,
		Function: program.FunctionFeePublic,
		Inputs: []program.Value{
			program.PlaintextValue(program.U64Literal(baseFee)),
			program.PlaintextValue(program.U64Literal(priorityFee)),
			program.PlaintextValue(program.DigestLiteral(*executionID)),
		},
		InputTypes: fn.Inputs,
		Outputs: []program.Value{program.FutureValue(&program.Future{
			Program:  program.CreditsID,
			Function: program.FunctionFeePublic,
			Arguments: []program.Argument{
				program.PlaintextArgument(program.AddressLiteral(key.Address())),
				program.PlaintextArgument(program.U64Literal(total)),
			},
		})},
		OutputTypes:     fn.Outputs,
		OutputRegisters: fn.OutputRegisters,
	}
	auth, _, err := Authorize(key, call, rng)
	return auth, err
}
