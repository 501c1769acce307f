package authorize

import (
	"io"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
)

// Authorizer builds credits transfers together with their fee authorizations.
type Authorizer struct {
	fees FeeSchedule
}

// NewAuthorizer returns an Authorizer that prices fees with fees. A nil
// schedule uses DefaultFeeSchedule.
func NewAuthorizer(fees FeeSchedule) *Authorizer {
	if fees == nil {
		fees = DefaultFeeSchedule()
	}
	return &Authorizer{fees: fees}
}

// TransferPublic authorizes credits.vy/transfer_public from the request's key
// to its recipient, plus a fee bound to that execution.
func (a *Authorizer) TransferPublic(req *AuthorizeRequest, rng io.Reader) (*AuthorizeResponse, error) {
	if req == nil || req.PrivateKey == nil {
		return nil, errs.New(errs.SigningFailure, "authorize request has no private key")
	}
	fn, err := program.Credits().Function(program.FunctionTransferPublic)
	if err != nil {
		return nil, err
	}
	caller := req.PrivateKey.Address()
	call := Call{
		Program:  program.CreditsID,
		Function: program.FunctionTransferPublic,
		Inputs: []program.Value{
			program.PlaintextValue(program.AddressLiteral(req.Recipient)),
			program.PlaintextValue(program.U64Literal(req.Amount)),
		},
		InputTypes: fn.Inputs,
		Outputs: []program.Value{program.FutureValue(&program.Future{
			Program:  program.CreditsID,
			Function: program.FunctionTransferPublic,
			Arguments: []program.Argument{
				program.PlaintextArgument(program.AddressLiteral(caller)),
				program.PlaintextArgument(program.AddressLiteral(req.Recipient)),
				program.PlaintextArgument(program.U64Literal(req.Amount)),
			},
		})},
		OutputTypes:     fn.Outputs,
		OutputRegisters: fn.OutputRegisters,
	}
	return a.withFee(req.PrivateKey, call, req.PriorityFee, rng)
}

// TransferPrivateToPublic authorizes credits.vy/transfer_private_to_public,
// spending record and returning the change to its owner as a new record.
func (a *Authorizer) TransferPrivateToPublic(key *account.PrivateKey, record *program.Record, recipient account.Address, amount, priorityFee uint64, rng io.Reader) (*AuthorizeResponse, error) {
	if key == nil {
		return nil, errs.New(errs.SigningFailure, "no signing key")
	}
	if record == nil {
		return nil, errs.New(errs.TypeMismatch, "no record to spend")
	}
	balance, err := record.Microcredits()
	if err != nil {
		return nil, err
	}
	if amount > balance {
		return nil, errs.Newf(errs.ParseError, "amount %d exceeds record balance %d", amount, balance)
	}
	fn, err := program.Credits().Function(program.FunctionTransferPrivateToPublic)
	if err != nil {
		return nil, err
	}
	// The change nonce is derived from the request's tvk when the
	// transition is built.
	change := program.NewCreditsRecord(record.Owner, balance-amount)
	call := Call{
		Program:  program.CreditsID,
		Function: program.FunctionTransferPrivateToPublic,
		Inputs: []program.Value{
			program.RecordValue(record),
			program.PlaintextValue(program.AddressLiteral(recipient)),
			program.PlaintextValue(program.U64Literal(amount)),
		},
		InputTypes: fn.Inputs,
		Outputs: []program.Value{
			program.RecordValue(change),
			program.FutureValue(&program.Future{
				Program:  program.CreditsID,
				Function: program.FunctionTransferPrivateToPublic,
				Arguments: []program.Argument{
					program.PlaintextArgument(program.AddressLiteral(recipient)),
					program.PlaintextArgument(program.U64Literal(amount)),
				},
			}),
		},
		OutputTypes:     fn.Outputs,
		OutputRegisters: fn.OutputRegisters,
	}
	return a.withFee(key, call, priorityFee, rng)
}

func (a *Authorizer) withFee(key *account.PrivateKey, call Call, priorityFee uint64, rng io.Reader) (*AuthorizeResponse, error) {
	baseFee, err := a.fees.BaseFee(call.Locator())
	if err != nil {
		return nil, err
	}
	function, executionID, err := Authorize(key, call, rng)
	if err != nil {
		return nil, err
	}
	fee, err := AuthorizeFee(key, baseFee, priorityFee, &executionID, rng)
	if err != nil {
		return nil, err
	}
	return &AuthorizeResponse{FunctionAuthorization: function, FeeAuthorization: fee}, nil
}

