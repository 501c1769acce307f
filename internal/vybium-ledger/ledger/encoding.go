package ledger

import (
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/stark"
)

func encodeInputID(w *codec.Writer, id InputID) error {
	w.U8(uint8(id.Kind))
	w.Digest(id.ID)
	w.Digest(id.Tag)
	return nil
}

func decodeInputID(r *codec.Reader) (InputID, error) {
	kind, err := r.U8()
	if err != nil {
		return InputID{}, err
	}
	if kind < uint8(InputConstant) || kind > uint8(InputExternalRecord) {
		return InputID{}, errs.Newf(errs.SerializationError, "unknown input id tag %d", kind)
	}
	id, err := r.Digest()
	if err != nil {
		return InputID{}, err
	}
	tag, err := r.Digest()
	if err != nil {
		return InputID{}, err
	}
	return InputID{Kind: InputKind(kind), ID: id, Tag: tag}, nil
}

func encodeOutputID(w *codec.Writer, id OutputID) error {
	w.U8(uint8(id.Kind))
	w.Digest(id.ID)
	return nil
}

func decodeOutputID(r *codec.Reader) (OutputID, error) {
	kind, err := r.U8()
	if err != nil {
		return OutputID{}, err
	}
	if kind < uint8(OutputConstant) || kind > uint8(OutputFuture) {
		return OutputID{}, errs.Newf(errs.SerializationError, "unknown output id tag %d", kind)
	}
	id, err := r.Digest()
	if err != nil {
		return OutputID{}, err
	}
	return OutputID{Kind: OutputKind(kind), ID: id}, nil
}

func encodeValue(w *codec.Writer, v program.Value) error {
	return v.Encode(w)
}

func encodeValueType(w *codec.Writer, t program.ValueType) error {
	return t.Encode(w)
}

func encodeRegister(w *codec.Writer, reg program.Register) error {
	return reg.Encode(w)
}

func encodeTransition(w *codec.Writer, t *Transition) error {
	return t.Encode(w)
}

func encodePublicValue(w *codec.Writer, pv PublicValue) error {
	return pv.encode(w)
}

func encodePublicTransition(w *codec.Writer, t *PublicTransition) error {
	return t.Encode(w)
}

func encodeProofNode(w *codec.Writer, n core.ProofNode) error {
	w.Digest(n.Hash)
	w.Bool(n.IsRight)
	return nil
}

func decodeProofNode(r *codec.Reader) (core.ProofNode, error) {
	h, err := r.Digest()
	if err != nil {
		return core.ProofNode{}, err
	}
	right, err := r.Bool()
	if err != nil {
		return core.ProofNode{}, err
	}
	return core.ProofNode{Hash: h, IsRight: right}, nil
}

func decodeSiblings(r *codec.Reader) ([]core.ProofNode, error) {
	nodes, err := codec.ReadSlice(r, decodeProofNode)
	if err != nil {
		return nil, err
	}
	if len(nodes) > MaxStatePathDepth {
		return nil, errs.Newf(errs.SerializationError, "path of %d nodes exceeds depth %d", len(nodes), MaxStatePathDepth)
	}
	return nodes, nil
}

// Encode writes the request.
func (r *Request) Encode(w *codec.Writer) error {
	if len(r.Signature) != account.SignatureSize {
		return errs.Newf(errs.SerializationError, "signature must be %d bytes", account.SignatureSize)
	}
	w.Raw(r.Signer[:])
	if err := r.Program.Encode(w); err != nil {
		return err
	}
	if err := r.Function.Encode(w); err != nil {
		return err
	}
	if err := codec.WriteSlice(w, r.InputIDs, encodeInputID); err != nil {
		return err
	}
	if err := codec.WriteSlice(w, r.Inputs, encodeValue); err != nil {
		return err
	}
	if err := codec.WriteSlice(w, r.InputTypes, encodeValueType); err != nil {
		return err
	}
	w.Raw(r.Signature)
	w.Digest(r.SKTag)
	w.Digest(r.TVK)
	w.Digest(r.TCM)
	return nil
}

// DecodeRequest reads a request.
func DecodeRequest(rd *codec.Reader) (*Request, error) {
	raw, err := rd.Raw(account.AddressSize)
	if err != nil {
		return nil, err
	}
	req := &Request{}
	copy(req.Signer[:], raw)
	if req.Program, err = program.DecodeProgramID(rd); err != nil {
		return nil, err
	}
	if req.Function, err = program.DecodeIdentifier(rd); err != nil {
		return nil, err
	}
	if req.InputIDs, err = codec.ReadSlice(rd, decodeInputID); err != nil {
		return nil, err
	}
	if req.Inputs, err = codec.ReadSlice(rd, program.DecodeValue); err != nil {
		return nil, err
	}
	if req.InputTypes, err = codec.ReadSlice(rd, program.DecodeValueType); err != nil {
		return nil, err
	}
	if req.Signature, err = rd.Raw(account.SignatureSize); err != nil {
		return nil, err
	}
	if req.SKTag, err = rd.Digest(); err != nil {
		return nil, err
	}
	if req.TVK, err = rd.Digest(); err != nil {
		return nil, err
	}
	if req.TCM, err = rd.Digest(); err != nil {
		return nil, err
	}
	return req, nil
}

// Encode writes the response.
func (r *Response) Encode(w *codec.Writer) error {
	if err := codec.WriteSlice(w, r.OutputIDs, encodeOutputID); err != nil {
		return err
	}
	return codec.WriteSlice(w, r.Outputs, encodeValue)
}

// DecodeResponse reads a response.
func DecodeResponse(rd *codec.Reader) (*Response, error) {
	ids, err := codec.ReadSlice(rd, decodeOutputID)
	if err != nil {
		return nil, err
	}
	outputs, err := codec.ReadSlice(rd, program.DecodeValue)
	if err != nil {
		return nil, err
	}
	return &Response{OutputIDs: ids, Outputs: outputs}, nil
}

// Encode writes the transition. The id is not encoded; decoding recomputes it.
func (t *Transition) Encode(w *codec.Writer) error {
	if err := t.request.Encode(w); err != nil {
		return err
	}
	if err := t.response.Encode(w); err != nil {
		return err
	}
	if err := codec.WriteSlice(w, t.outputTypes, encodeValueType); err != nil {
		return err
	}
	return codec.WriteSlice(w, t.outputRegisters, encodeRegister)
}

// DecodeTransition reads a transition.
func DecodeTransition(rd *codec.Reader) (*Transition, error) {
	req, err := DecodeRequest(rd)
	if err != nil {
		return nil, err
	}
	resp, err := DecodeResponse(rd)
	if err != nil {
		return nil, err
	}
	types, err := codec.ReadSlice(rd, program.DecodeValueType)
	if err != nil {
		return nil, err
	}
	regs, err := codec.ReadSlice(rd, program.DecodeRegister)
	if err != nil {
		return nil, err
	}
	t, err := NewTransition(req, resp, types, regs)
	if err != nil {
		return nil, errs.Wrap(errs.SerializationError, "transition", err)
	}
	return t, nil
}

// Encode writes the authorization.
func (a *Authorization) Encode(w *codec.Writer) error {
	return codec.WriteSlice(w, a.transitions, encodeTransition)
}

// DecodeAuthorization reads an authorization.
func DecodeAuthorization(rd *codec.Reader) (*Authorization, error) {
	transitions, err := codec.ReadSlice(rd, DecodeTransition)
	if err != nil {
		return nil, err
	}
	a, err := NewAuthorization(transitions...)
	if err != nil {
		return nil, errs.Wrap(errs.SerializationError, "authorization", err)
	}
	return a, nil
}

// UnmarshalAuthorization decodes a complete authorization buffer.
func UnmarshalAuthorization(data []byte) (*Authorization, error) {
	return codec.Unmarshal(data, DecodeAuthorization)
}

// Encode writes the state path.
func (p *StatePath) Encode(w *codec.Writer) error {
	w.Digest(p.GlobalStateRoot)
	w.Digest(p.Commitment)
	return codec.WriteSlice(w, p.Siblings, encodeProofNode)
}

// DecodeStatePath reads a state path.
func DecodeStatePath(rd *codec.Reader) (*StatePath, error) {
	root, err := rd.Digest()
	if err != nil {
		return nil, err
	}
	commitment, err := rd.Digest()
	if err != nil {
		return nil, err
	}
	siblings, err := decodeSiblings(rd)
	if err != nil {
		return nil, err
	}
	return &StatePath{GlobalStateRoot: root, Commitment: commitment, Siblings: siblings}, nil
}

func (pv PublicValue) encode(w *codec.Writer) error {
	w.U16(pv.Index)
	if err := pv.Register.Encode(w); err != nil {
		return err
	}
	return pv.Value.Encode(w)
}

func decodePublicValue(rd *codec.Reader) (PublicValue, error) {
	index, err := rd.U16()
	if err != nil {
		return PublicValue{}, err
	}
	reg, err := program.DecodeRegister(rd)
	if err != nil {
		return PublicValue{}, err
	}
	v, err := program.DecodeValue(rd)
	if err != nil {
		return PublicValue{}, err
	}
	return PublicValue{Index: index, Register: reg, Value: v}, nil
}

// Encode writes the public transition.
func (t *PublicTransition) Encode(w *codec.Writer) error {
	if len(t.Signature) != account.SignatureSize {
		return errs.Newf(errs.SerializationError, "signature must be %d bytes", account.SignatureSize)
	}
	w.Digest(t.ID)
	w.Raw(t.Signer[:])
	w.Raw(t.Signature)
	if err := t.Program.Encode(w); err != nil {
		return err
	}
	if err := t.Function.Encode(w); err != nil {
		return err
	}
	if err := codec.WriteSlice(w, t.InputIDs, encodeInputID); err != nil {
		return err
	}
	if err := codec.WriteSlice(w, t.OutputIDs, encodeOutputID); err != nil {
		return err
	}
	if err := codec.WriteSlice(w, t.PublicInputs, encodePublicValue); err != nil {
		return err
	}
	if err := codec.WriteSlice(w, t.PublicOutputs, encodePublicValue); err != nil {
		return err
	}
	w.Digest(t.TCM)
	w.Digest(t.VerifyingKey)
	return nil
}

// DecodePublicTransition reads a public transition.
func DecodePublicTransition(rd *codec.Reader) (*PublicTransition, error) {
	t := &PublicTransition{}
	var err error
	if t.ID, err = rd.Digest(); err != nil {
		return nil, err
	}
	raw, err := rd.Raw(account.AddressSize)
	if err != nil {
		return nil, err
	}
	copy(t.Signer[:], raw)
	if t.Signature, err = rd.Raw(account.SignatureSize); err != nil {
		return nil, err
	}
	if t.Program, err = program.DecodeProgramID(rd); err != nil {
		return nil, err
	}
	if t.Function, err = program.DecodeIdentifier(rd); err != nil {
		return nil, err
	}
	if t.InputIDs, err = codec.ReadSlice(rd, decodeInputID); err != nil {
		return nil, err
	}
	if t.OutputIDs, err = codec.ReadSlice(rd, decodeOutputID); err != nil {
		return nil, err
	}
	if t.PublicInputs, err = codec.ReadSlice(rd, decodePublicValue); err != nil {
		return nil, err
	}
	if t.PublicOutputs, err = codec.ReadSlice(rd, decodePublicValue); err != nil {
		return nil, err
	}
	if t.TCM, err = rd.Digest(); err != nil {
		return nil, err
	}
	if t.VerifyingKey, err = rd.Digest(); err != nil {
		return nil, err
	}
	return t, nil
}

// Encode writes the proof.
func (p *Proof) Encode(w *codec.Writer) error {
	return codec.WriteSlice(w, p.Transitions, func(w *codec.Writer, sp *stark.Proof) error {
		return sp.Encode(w)
	})
}

// DecodeProof reads a proof.
func DecodeProof(rd *codec.Reader) (*Proof, error) {
	proofs, err := codec.ReadSlice(rd, stark.DecodeProof)
	if err != nil {
		return nil, err
	}
	return &Proof{Transitions: proofs}, nil
}

func encodeProof(w *codec.Writer, p *Proof) error {
	return p.Encode(w)
}

// Encode writes the execution.
func (e *Execution) Encode(w *codec.Writer) error {
	if err := codec.WriteSlice(w, e.Transitions, encodePublicTransition); err != nil {
		return err
	}
	w.Digest(e.GlobalStateRoot)
	return codec.WriteOption(w, e.Proof, encodeProof)
}

// DecodeExecution reads an execution.
func DecodeExecution(rd *codec.Reader) (*Execution, error) {
	transitions, err := codec.ReadSlice(rd, DecodePublicTransition)
	if err != nil {
		return nil, err
	}
	root, err := rd.Digest()
	if err != nil {
		return nil, err
	}
	proof, err := codec.ReadOption(rd, DecodeProof)
	if err != nil {
		return nil, err
	}
	return &Execution{Transitions: transitions, GlobalStateRoot: root, Proof: proof}, nil
}

// Encode writes the fee.
func (f *Fee) Encode(w *codec.Writer) error {
	if err := f.Transition.Encode(w); err != nil {
		return err
	}
	w.Digest(f.GlobalStateRoot)
	return codec.WriteOption(w, f.Proof, encodeProof)
}

// DecodeFee reads a fee.
func DecodeFee(rd *codec.Reader) (*Fee, error) {
	t, err := DecodePublicTransition(rd)
	if err != nil {
		return nil, err
	}
	root, err := rd.Digest()
	if err != nil {
		return nil, err
	}
	proof, err := codec.ReadOption(rd, DecodeProof)
	if err != nil {
		return nil, err
	}
	return &Fee{Transition: t, GlobalStateRoot: root, Proof: proof}, nil
}

// Encode writes the transaction.
func (tx *Transaction) Encode(w *codec.Writer) error {
	w.Digest(tx.ID)
	if err := tx.Execution.Encode(w); err != nil {
		return err
	}
	return codec.WriteOption(w, tx.Fee, func(w *codec.Writer, f *Fee) error { return f.Encode(w) })
}

// DecodeTransaction reads a transaction and checks its id and fee binding.
func DecodeTransaction(rd *codec.Reader) (*Transaction, error) {
	id, err := rd.Digest()
	if err != nil {
		return nil, err
	}
	exec, err := DecodeExecution(rd)
	if err != nil {
		return nil, err
	}
	fee, err := codec.ReadOption(rd, DecodeFee)
	if err != nil {
		return nil, err
	}
	tx, err := NewTransaction(exec, fee)
	if err != nil {
		return nil, errs.Wrap(errs.SerializationError, "transaction", err)
	}
	if !tx.ID.Equal(id) {
		return nil, errs.New(errs.SerializationError, "transaction id does not match contents")
	}
	return tx, nil
}

// UnmarshalTransaction decodes a complete transaction buffer.
func UnmarshalTransaction(data []byte) (*Transaction, error) {
	return codec.Unmarshal(data, DecodeTransaction)
}
