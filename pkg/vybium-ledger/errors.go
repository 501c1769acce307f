package vybiumledger

import "github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"

// ErrorCode classifies a failure.
type ErrorCode = errs.Code

// Error is a failure with a code, a message and an optional cause.
type Error = errs.Error

const (
	ErrCodeUnknown                = errs.Unknown
	ErrCodeParse                  = errs.ParseError
	ErrCodeArityMismatch          = errs.ArityMismatch
	ErrCodeTypeMismatch           = errs.TypeMismatch
	ErrCodeSigningFailure         = errs.SigningFailure
	ErrCodeRecordDerivation       = errs.RecordDerivation
	ErrCodeMissingBinding         = errs.MissingBinding
	ErrCodeMalformedAuthorization = errs.MalformedAuthorization
	ErrCodeUnresolvedState        = errs.UnresolvedState
	ErrCodeProofFailure           = errs.ProofFailure
	ErrCodeSerialization          = errs.SerializationError
	ErrCodeTransport              = errs.TransportError
)

// Sentinels for errors.Is. They match any error with the same code.
var (
	ErrParse                  = errs.ErrParse
	ErrArityMismatch          = errs.ErrArityMismatch
	ErrTypeMismatch           = errs.ErrTypeMismatch
	ErrSigningFailure         = errs.ErrSigningFailure
	ErrRecordDerivation       = errs.ErrRecordDerivation
	ErrMissingBinding         = errs.ErrMissingBinding
	ErrMalformedAuthorization = errs.ErrMalformedAuthorization
	ErrUnresolvedState        = errs.ErrUnresolvedState
	ErrProofFailure           = errs.ErrProofFailure
	ErrSerialization          = errs.ErrSerialization
	ErrTransport              = errs.ErrTransport
)

// CodeOf returns the code of the first coded error in err's chain.
func CodeOf(err error) ErrorCode {
	return errs.CodeOf(err)
}
