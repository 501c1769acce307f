// Package errs defines the error taxonomy shared by the authorization and
// proving pipeline.
//
// Every failure surfaced by the core carries a Code. Callers match on the
// code with errors.Is against the package sentinels:
//
//	if errors.Is(err, errs.ErrUnresolvedState) {
//		// fetch a fresh state root and build a new authorization
//	}
//
// None of these errors are retried internally. Identical inputs reproduce
// identical failures, so retry policy belongs to the caller.
package errs

import "fmt"

// Code identifies the class of a failure.
type Code int

const (
	// Unknown is the zero value and should not be produced by the core.
	Unknown Code = iota

	// ParseError covers malformed keys, addresses, identifiers, literals and amounts.
	ParseError

	// ArityMismatch is returned when value and type sequences differ in length.
	ArityMismatch

	// TypeMismatch is returned when a value does not conform to its declared type.
	TypeMismatch

	// SigningFailure is returned when a request cannot be signed.
	SigningFailure

	// RecordDerivation is returned when a record output cannot be derived from the transcript.
	RecordDerivation

	// MissingBinding is returned when a fee is requested without an execution id.
	MissingBinding

	// MalformedAuthorization is returned for authorizations that cannot be replayed.
	MalformedAuthorization

	// UnresolvedState is returned when the query lacks a required root or path.
	UnresolvedState

	// ProofFailure is returned when a transition program is unsatisfied or a
	// proof does not verify.
	ProofFailure

	// SerializationError is returned when a wire buffer cannot be decoded.
	SerializationError

	// TransportError is returned by boundary collaborators talking to remote services.
	TransportError
)

var codeNames = map[Code]string{
	Unknown:                "unknown",
	ParseError:             "parse_error",
	ArityMismatch:          "arity_mismatch",
	TypeMismatch:           "type_mismatch",
	SigningFailure:         "signing_failure",
	RecordDerivation:       "record_derivation",
	MissingBinding:         "missing_binding",
	MalformedAuthorization: "malformed_authorization",
	UnresolvedState:        "unresolved_state",
	ProofFailure:           "proof_failure",
	SerializationError:     "serialization_error",
	TransportError:         "transport_error",
}

// String returns the snake_case name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is the concrete error type of the pipeline.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Message == "" && e.Cause == nil {
		return e.Code.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is.
var (
	ErrParse                  = &Error{Code: ParseError}
	ErrArityMismatch          = &Error{Code: ArityMismatch}
	ErrTypeMismatch           = &Error{Code: TypeMismatch}
	ErrSigningFailure         = &Error{Code: SigningFailure}
	ErrRecordDerivation       = &Error{Code: RecordDerivation}
	ErrMissingBinding         = &Error{Code: MissingBinding}
	ErrMalformedAuthorization = &Error{Code: MalformedAuthorization}
	ErrUnresolvedState        = &Error{Code: UnresolvedState}
	ErrProofFailure           = &Error{Code: ProofFailure}
	ErrSerialization          = &Error{Code: SerializationError}
	ErrTransport              = &Error{Code: TransportError}
)

// New builds an error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds an error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause. A nil cause yields nil.
func Wrap(code Code, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code of the outermost *Error in err's chain.
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return Unknown
		}
		err = u.Unwrap()
	}
	return Unknown
}
