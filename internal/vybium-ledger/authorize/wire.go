package authorize

import (
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
)

// AuthorizeRequest asks the authorize service for a public transfer.
type AuthorizeRequest struct {
	PrivateKey  *account.PrivateKey
	Recipient   account.Address
	Amount      uint64
	PriorityFee uint64
}

// Encode writes the request. The private key travels as its seed.
func (r *AuthorizeRequest) Encode(w *codec.Writer) error {
	if r.PrivateKey == nil {
		return errs.New(errs.SerializationError, "authorize request has no private key")
	}
	seed := r.PrivateKey.Seed()
	w.Raw(seed[:])
	w.Raw(r.Recipient[:])
	w.U64(r.Amount)
	w.U64(r.PriorityFee)
	return nil
}

// DecodeAuthorizeRequest reads a request written by Encode.
func DecodeAuthorizeRequest(r *codec.Reader) (*AuthorizeRequest, error) {
	raw, err := r.Raw(account.SeedSize)
	if err != nil {
		return nil, err
	}
	var seed [account.SeedSize]byte
	copy(seed[:], raw)
	key, err := account.PrivateKeyFromSeedBytes(seed)
	if err != nil {
		return nil, errs.Wrap(errs.SerializationError, "authorize request key", err)
	}
	out := &AuthorizeRequest{PrivateKey: key}
	raw, err = r.Raw(account.AddressSize)
	if err != nil {
		return nil, err
	}
	copy(out.Recipient[:], raw)
	if out.Amount, err = r.U64(); err != nil {
		return nil, err
	}
	if out.PriorityFee, err = r.U64(); err != nil {
		return nil, err
	}
	return out, nil
}

// AuthorizeResponse pairs a function authorization with the fee
// authorization bound to it.
type AuthorizeResponse struct {
	FunctionAuthorization *ledger.Authorization
	FeeAuthorization      *ledger.Authorization
}

// Encode writes both authorizations.
func (r *AuthorizeResponse) Encode(w *codec.Writer) error {
	if r.FunctionAuthorization == nil || r.FeeAuthorization == nil {
		return errs.New(errs.SerializationError, "authorize response is incomplete")
	}
	if err := r.FunctionAuthorization.Encode(w); err != nil {
		return err
	}
	return r.FeeAuthorization.Encode(w)
}

// DecodeAuthorizeResponse reads a response written by Encode.
func DecodeAuthorizeResponse(r *codec.Reader) (*AuthorizeResponse, error) {
	function, err := ledger.DecodeAuthorization(r)
	if err != nil {
		return nil, err
	}
	fee, err := ledger.DecodeAuthorization(r)
	if err != nil {
		return nil, err
	}
	return &AuthorizeResponse{FunctionAuthorization: function, FeeAuthorization: fee}, nil
}

// FeeAmount returns the total the fee authorization pays.
func (r *AuthorizeResponse) FeeAmount() (uint64, error) {
	t, err := r.FeeAuthorization.Peek()
	if err != nil {
		return 0, err
	}
	fee := &ledger.Fee{Transition: t.Public(core.Digest{})}
	return fee.Amount()
}

// Bound reports whether the fee authorization names the function
// authorization's execution id.
func (r *AuthorizeResponse) Bound() bool {
	t, err := r.FeeAuthorization.Peek()
	if err != nil {
		return false
	}
	fee := &ledger.Fee{Transition: t.Public(core.Digest{})}
	id, err := fee.ExecutionID()
	if err != nil {
		return false
	}
	return id.Equal(r.FunctionAuthorization.ExecutionID())
}
