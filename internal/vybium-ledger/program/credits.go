package program

import (
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

// Names in the credits program.
const (
	FunctionTransferPublic          Identifier = "transfer_public"
	FunctionTransferPrivateToPublic Identifier = "transfer_private_to_public"
	FunctionFeePublic               Identifier = "fee_public"

	CreditsRecord     Identifier = "credits"
	EntryMicrocredits Identifier = "microcredits"
)

// CreditsID is the id of the native credits program.
var CreditsID = ProgramID{Name: "credits", Network: "vy"}

// Function is the signature of a program function.
type Function struct {
	Name            Identifier
	Inputs          []ValueType
	Outputs         []ValueType
	OutputRegisters []Register
}

// Program is a named set of functions.
type Program struct {
	ID        ProgramID
	functions []*Function
}

// Function looks up a function by name.
func (p *Program) Function(name Identifier) (*Function, error) {
	for _, f := range p.functions {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, errs.Newf(errs.ParseError, "function %s not found in %s", name, p.ID)
}

// Functions returns the functions in declaration order.
func (p *Program) Functions() []*Function {
	return append([]*Function(nil), p.functions...)
}

// Credits returns the native credits program.
//
//	transfer_public(r0: address.public, r1: u64.public)
//	    -> r2: credits.vy/transfer_public.future
//	transfer_private_to_public(r0: credits.record, r1: address.public, r2: u64.public)
//	    -> r4: credits.record, r5: credits.vy/transfer_private_to_public.future
//	fee_public(r0: u64.public, r1: u64.public, r2: digest.public)
//	    -> r4: credits.vy/fee_public.future
//
// Registers not listed hold intermediates (r3 is the change or fee total).
func Credits() *Program {
	return &Program{
		ID: CreditsID,
		functions: []*Function{
			{
				Name:            FunctionTransferPublic,
				Inputs:          []ValueType{PublicType(LiteralAddress), PublicType(LiteralU64)},
				Outputs:         []ValueType{FutureType(CreditsID, FunctionTransferPublic)},
				OutputRegisters: []Register{2},
			},
			{
				Name: FunctionTransferPrivateToPublic,
				Inputs: []ValueType{
					RecordType(CreditsRecord),
					PublicType(LiteralAddress),
					PublicType(LiteralU64),
				},
				Outputs: []ValueType{
					RecordType(CreditsRecord),
					FutureType(CreditsID, FunctionTransferPrivateToPublic),
				},
				OutputRegisters: []Register{4, 5},
			},
			{
				Name: FunctionFeePublic,
				Inputs: []ValueType{
					PublicType(LiteralU64),
					PublicType(LiteralU64),
					PublicType(LiteralDigest),
				},
				Outputs:         []ValueType{FutureType(CreditsID, FunctionFeePublic)},
				OutputRegisters: []Register{4},
			},
		},
	}
}
