package ledger

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
)

// Transition binds one request to its response and output schema. It is
// immutable once built; callers must not modify the request or response.
type Transition struct {
	id              core.Digest
	request         *Request
	response        *Response
	outputTypes     []program.ValueType
	outputRegisters []program.Register
}

// NewTransition assembles a transition and computes its id.
func NewTransition(req *Request, resp *Response, outputTypes []program.ValueType, outputRegisters []program.Register) (*Transition, error) {
	if req == nil || resp == nil {
		return nil, errs.New(errs.MalformedAuthorization, "transition needs a request and a response")
	}
	if len(req.Inputs) != len(req.InputTypes) || len(req.Inputs) != len(req.InputIDs) {
		return nil, errs.Newf(errs.ArityMismatch, "%s: inconsistent input counts", req.Locator())
	}
	n := len(resp.Outputs)
	if len(resp.OutputIDs) != n || len(outputTypes) != n || len(outputRegisters) != n {
		return nil, errs.Newf(errs.ArityMismatch, "%s: inconsistent output counts", req.Locator())
	}

	t := &Transition{
		request:         req,
		response:        resp,
		outputTypes:     append([]program.ValueType(nil), outputTypes...),
		outputRegisters: append([]program.Register(nil), outputRegisters...),
	}
	t.id = t.computeID()
	return t, nil
}

// BuildTransition derives the response to req and assembles the transition.
func BuildTransition(req *Request, outputs []program.Value, outputTypes []program.ValueType, outputRegisters []program.Register) (*Transition, error) {
	resp, err := NewResponse(req, outputs, outputTypes, outputRegisters)
	if err != nil {
		return nil, err
	}
	return NewTransition(req, resp, outputTypes, outputRegisters)
}

func (t *Transition) computeID() core.Digest {
	r := t.request
	return TransitionID(r.Signer, r.Locator(), r.TCM, r.InputIDs, t.response.OutputIDs, t.outputTypes, t.outputRegisters)
}

// TransitionID hashes what a transition exposes to the ledger: the signer,
// the locator, the transcript commitment, every input id and every output id
// with its declared type and register. Verifiers recompute it from the public
// transition and the function signature.
func TransitionID(signer account.Address, loc program.Locator, tcm core.Digest, inputIDs []InputID, outputIDs []OutputID, outputTypes []program.ValueType, outputRegisters []program.Register) core.Digest {
	elems := signer.Elements()
	elems = append(elems, loc.Elements()...)
	elems = append(elems, tcm[:]...)
	elems = append(elems, field.New(uint64(len(inputIDs))))
	for _, id := range inputIDs {
		elems = append(elems, field.New(uint64(id.Kind)))
		elems = append(elems, id.ID[:]...)
		elems = append(elems, id.Tag[:]...)
	}
	elems = append(elems, field.New(uint64(len(outputIDs))))
	for i, id := range outputIDs {
		elems = append(elems, field.New(uint64(id.Kind)))
		elems = append(elems, id.ID[:]...)
		elems = append(elems, core.BytesToElements([]byte(outputTypes[i].String()))...)
		elems = append(elems, outputRegisters[i].Element())
	}
	return core.HashElements(domainTransID, elems...)
}

// ID returns the transition id.
func (t *Transition) ID() core.Digest { return t.id }

// Request returns the signed request.
func (t *Transition) Request() *Request { return t.request }

// Response returns the response.
func (t *Transition) Response() *Response { return t.response }

// Locator returns the called function.
func (t *Transition) Locator() program.Locator { return t.request.Locator() }

// Signer returns the address that signed the request.
func (t *Transition) Signer() account.Address { return t.request.Signer }

// OutputTypes returns a copy of the declared output types.
func (t *Transition) OutputTypes() []program.ValueType {
	return append([]program.ValueType(nil), t.outputTypes...)
}

// OutputRegisters returns a copy of the output registers.
func (t *Transition) OutputRegisters() []program.Register {
	return append([]program.Register(nil), t.outputRegisters...)
}

// Public strips the transition down to what the ledger sees. vk is the
// verifying key digest of the function that was proven.
func (t *Transition) Public(vk core.Digest) *PublicTransition {
	pt := &PublicTransition{
		ID:           t.id,
		Signer:       t.request.Signer,
		Signature:    append([]byte(nil), t.request.Signature...),
		Program:      t.request.Program,
		Function:     t.request.Function,
		InputIDs:     append([]InputID(nil), t.request.InputIDs...),
		OutputIDs:    append([]OutputID(nil), t.response.OutputIDs...),
		TCM:          t.request.TCM,
		VerifyingKey: vk,
	}
	for i, typ := range t.request.InputTypes {
		if typ.Kind == program.TypeConstant || typ.Kind == program.TypePublic {
			pt.PublicInputs = append(pt.PublicInputs, PublicValue{
				Index:    uint16(i),
				Register: program.Register(i),
				Value:    t.request.Inputs[i],
			})
		}
	}
	for i, typ := range t.outputTypes {
		switch typ.Kind {
		case program.TypeConstant, program.TypePublic, program.TypeFuture:
			pt.PublicOutputs = append(pt.PublicOutputs, PublicValue{
				Index:    uint16(i),
				Register: t.outputRegisters[i],
				Value:    t.response.Outputs[i],
			})
		}
	}
	return pt
}
