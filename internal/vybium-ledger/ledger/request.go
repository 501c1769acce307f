package ledger

import (
	"io"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
)

// RandomnessSize is the number of bytes a request draws from its rng.
const RandomnessSize = 32

// Request is a signed function call.
//
// TVK is the transcript view key: it keys every hidden input and output id
// and every derived record nonce. TCM commits to TVK and is what public ids
// and the signature bind to.
type Request struct {
	Signer     account.Address
	Program    program.ProgramID
	Function   program.Identifier
	InputIDs   []InputID
	Inputs     []program.Value
	InputTypes []program.ValueType
	Signature  []byte
	SKTag      core.Digest
	TVK        core.Digest
	TCM        core.Digest
}

// SignRequest signs a call to loc with inputs of the given types. Arity and
// types are checked before any randomness is drawn from rng.
func SignRequest(key *account.PrivateKey, loc program.Locator, inputs []program.Value, inputTypes []program.ValueType, rng io.Reader) (*Request, error) {
	if len(inputs) != len(inputTypes) {
		return nil, errs.Newf(errs.ArityMismatch, "%s: %d inputs for %d input types", loc, len(inputs), len(inputTypes))
	}
	signer := key.Address()
	for i, t := range inputTypes {
		if err := t.Check(inputs[i]); err != nil {
			return nil, errs.Wrap(errs.TypeMismatch, "input "+program.Register(i).String(), err)
		}
		if t.Kind == program.TypeRecord {
			rec, _ := inputs[i].Record()
			if rec.Owner != signer {
				return nil, errs.Newf(errs.SigningFailure, "record input %d is not owned by the signer", i)
			}
		}
	}

	var nonce [RandomnessSize]byte
	if _, err := io.ReadFull(rng, nonce[:]); err != nil {
		return nil, errs.Wrap(errs.SigningFailure, "sample request randomness", err)
	}

	elems := key.ViewElements()
	elems = append(elems, core.BytesToElements(nonce[:])...)
	tvk := core.HashElements(domainTVK, elems...)
	tcm := TranscriptCommitment(tvk)
	skTag := core.HashElements(domainSKTag, key.TagElements()...)

	ids, err := computeInputIDs(loc, tvk, tcm, skTag, inputs, inputTypes)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Signer:     signer,
		Program:    loc.Program,
		Function:   loc.Function,
		InputIDs:   ids,
		Inputs:     append([]program.Value(nil), inputs...),
		InputTypes: append([]program.ValueType(nil), inputTypes...),
		SKTag:      skTag,
		TVK:        tvk,
		TCM:        tcm,
	}
	msg, err := SigningMessage(signer, loc, ids, tcm)
	if err != nil {
		return nil, errs.Wrap(errs.SigningFailure, "build signing message", err)
	}
	req.Signature = key.Sign(msg)
	return req, nil
}

// Locator returns the called function.
func (r *Request) Locator() program.Locator {
	return program.Locator{Program: r.Program, Function: r.Function}
}

// Verify checks the request's internal consistency and signature. It does not
// need the signer's key.
func (r *Request) Verify() error {
	if len(r.Inputs) != len(r.InputTypes) || len(r.Inputs) != len(r.InputIDs) {
		return errs.Newf(errs.MalformedAuthorization, "%s: inconsistent input counts", r.Locator())
	}
	for i, t := range r.InputTypes {
		if err := t.Check(r.Inputs[i]); err != nil {
			return errs.Wrap(errs.MalformedAuthorization, "input "+program.Register(i).String(), err)
		}
		if t.Kind == program.TypeRecord {
			rec, _ := r.Inputs[i].Record()
			if rec.Owner != r.Signer {
				return errs.Newf(errs.MalformedAuthorization, "record input %d is not owned by the signer", i)
			}
		}
	}
	if !TranscriptCommitment(r.TVK).Equal(r.TCM) {
		return errs.New(errs.MalformedAuthorization, "transcript commitment does not match view key")
	}
	ids, err := computeInputIDs(r.Locator(), r.TVK, r.TCM, r.SKTag, r.Inputs, r.InputTypes)
	if err != nil {
		return errs.Wrap(errs.MalformedAuthorization, "recompute input ids", err)
	}
	for i := range ids {
		if !ids[i].Equal(r.InputIDs[i]) {
			return errs.Newf(errs.MalformedAuthorization, "input id %d does not match input", i)
		}
	}
	msg, err := SigningMessage(r.Signer, r.Locator(), r.InputIDs, r.TCM)
	if err != nil {
		return errs.Wrap(errs.MalformedAuthorization, "build signing message", err)
	}
	if !r.Signer.Verify(msg, r.Signature) {
		return errs.New(errs.MalformedAuthorization, "invalid request signature")
	}
	return nil
}

// SigningMessage is the byte string a signer signs for a call. It covers
// the signer, the locator, every input id and the transcript commitment.
func SigningMessage(signer account.Address, loc program.Locator, inputIDs []InputID, tcm core.Digest) ([]byte, error) {
	w := codec.NewWriter()
	if err := w.String(domainSignature); err != nil {
		return nil, err
	}
	w.Raw(signer[:])
	if err := loc.Program.Encode(w); err != nil {
		return nil, err
	}
	if err := loc.Function.Encode(w); err != nil {
		return nil, err
	}
	if err := codec.WriteSlice(w, inputIDs, encodeInputID); err != nil {
		return nil, err
	}
	w.Digest(tcm)
	return w.Bytes(), nil
}
