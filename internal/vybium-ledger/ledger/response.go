package ledger

import (
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
)

// Response holds the outputs of one call and their ids.
type Response struct {
	OutputIDs []OutputID
	Outputs   []program.Value
}

// NewResponse derives the response to req. Record outputs declared with a
// zero nonce receive the nonce derived from the request's view key and the
// output register; a non-zero nonce must already equal it.
func NewResponse(req *Request, outputs []program.Value, outputTypes []program.ValueType, outputRegisters []program.Register) (*Response, error) {
	if len(outputs) != len(outputTypes) || len(outputs) != len(outputRegisters) {
		return nil, errs.Newf(errs.ArityMismatch, "%s: %d outputs, %d output types, %d output registers",
			req.Locator(), len(outputs), len(outputTypes), len(outputRegisters))
	}

	loc := req.Locator()
	resp := &Response{
		OutputIDs: make([]OutputID, len(outputs)),
		Outputs:   make([]program.Value, len(outputs)),
	}
	for i, v := range outputs {
		t, reg := outputTypes[i], outputRegisters[i]
		if err := t.Check(v); err != nil {
			return nil, errs.Wrap(errs.TypeMismatch, "output "+reg.String(), err)
		}
		kind := outputKind(t)

		switch t.Kind {
		case program.TypeConstant, program.TypePublic, program.TypeFuture:
			resp.Outputs[i] = v
			resp.OutputIDs[i] = OutputID{Kind: kind, ID: PublicOutputID(kind, loc, req.TCM, reg, v)}
		case program.TypePrivate:
			resp.Outputs[i] = v
			resp.OutputIDs[i] = OutputID{Kind: kind, ID: hiddenOutputID(req.TVK, reg, v)}
		case program.TypeRecord, program.TypeExternalRecord:
			rec, _ := v.Record()
			nonce := RecordNonce(req.TVK, reg)
			if !rec.Nonce.IsZero() && !rec.Nonce.Equal(nonce) {
				return nil, errs.Newf(errs.RecordDerivation, "output %s: declared nonce does not match derived nonce", reg)
			}
			rec = rec.WithNonce(nonce)
			owner := loc.Program
			if t.Kind == program.TypeExternalRecord {
				owner = t.Program
			}
			resp.Outputs[i] = program.RecordValue(rec)
			resp.OutputIDs[i] = OutputID{Kind: kind, ID: rec.Commitment(owner, t.Record)}
		}
	}
	return resp, nil
}
