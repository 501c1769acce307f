package executor

import (
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/query"
)

// ExecuteRequest carries a function authorization, its fee and the state
// facts the prover should use.
type ExecuteRequest struct {
	FunctionAuthorization *ledger.Authorization
	FeeAuthorization      *ledger.Authorization
	StateRoot             *core.Digest
	StatePath             *ledger.StatePath
}

// Query returns a static query over the request's state facts.
func (r *ExecuteRequest) Query() query.Query {
	return query.NewStaticQuery(r.StateRoot, r.StatePath)
}

// Encode writes the request.
func (r *ExecuteRequest) Encode(w *codec.Writer) error {
	if r.FunctionAuthorization == nil || r.FeeAuthorization == nil {
		return errs.New(errs.SerializationError, "execute request is incomplete")
	}
	if err := r.FunctionAuthorization.Encode(w); err != nil {
		return err
	}
	if err := r.FeeAuthorization.Encode(w); err != nil {
		return err
	}
	if err := codec.WriteOption(w, r.StateRoot, func(w *codec.Writer, d *core.Digest) error {
		w.Digest(*d)
		return nil
	}); err != nil {
		return err
	}
	return codec.WriteOption(w, r.StatePath, func(w *codec.Writer, p *ledger.StatePath) error {
		return p.Encode(w)
	})
}

// DecodeExecuteRequest reads a request written by Encode.
func DecodeExecuteRequest(r *codec.Reader) (*ExecuteRequest, error) {
	function, err := ledger.DecodeAuthorization(r)
	if err != nil {
		return nil, err
	}
	fee, err := ledger.DecodeAuthorization(r)
	if err != nil {
		return nil, err
	}
	root, err := codec.ReadOption(r, func(r *codec.Reader) (*core.Digest, error) {
		d, err := r.Digest()
		if err != nil {
			return nil, err
		}
		return &d, nil
	})
	if err != nil {
		return nil, err
	}
	path, err := codec.ReadOption(r, ledger.DecodeStatePath)
	if err != nil {
		return nil, err
	}
	return &ExecuteRequest{
		FunctionAuthorization: function,
		FeeAuthorization:      fee,
		StateRoot:             root,
		StatePath:             path,
	}, nil
}

// UnmarshalExecuteRequest decodes a complete request buffer.
func UnmarshalExecuteRequest(data []byte) (*ExecuteRequest, error) {
	return codec.Unmarshal(data, DecodeExecuteRequest)
}
