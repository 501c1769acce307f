package program

import (
	"strings"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

// TypeKind discriminates ValueType.
type TypeKind uint8

const (
	TypeConstant TypeKind = iota + 1
	TypePublic
	TypePrivate
	TypeRecord
	TypeExternalRecord
	TypeFuture
)

// ValueType is the declared type of a function input or output.
type ValueType struct {
	Kind TypeKind
	// Literal is set for constant, public and private types.
	Literal LiteralType
	// Record is set for record and external record types.
	Record Identifier
	// Program is set for external record and future types.
	Program ProgramID
	// Function is set for future types.
	Function Identifier
}

func ConstantType(t LiteralType) ValueType { return ValueType{Kind: TypeConstant, Literal: t} }
func PublicType(t LiteralType) ValueType   { return ValueType{Kind: TypePublic, Literal: t} }
func PrivateType(t LiteralType) ValueType  { return ValueType{Kind: TypePrivate, Literal: t} }
func RecordType(name Identifier) ValueType { return ValueType{Kind: TypeRecord, Record: name} }

func ExternalRecordType(program ProgramID, name Identifier) ValueType {
	return ValueType{Kind: TypeExternalRecord, Program: program, Record: name}
}

func FutureType(program ProgramID, function Identifier) ValueType {
	return ValueType{Kind: TypeFuture, Program: program, Function: function}
}

// IsLiteral reports whether t is a constant, public or private literal type.
func (t ValueType) IsLiteral() bool {
	return t.Kind == TypeConstant || t.Kind == TypePublic || t.Kind == TypePrivate
}

// Visibility returns the visibility of a literal type.
func (t ValueType) Visibility() Visibility {
	switch t.Kind {
	case TypePublic:
		return Public
	case TypePrivate:
		return Private
	}
	return Constant
}

// Check reports a TypeMismatch when v is not of type t.
func (t ValueType) Check(v Value) error {
	switch t.Kind {
	case TypeConstant, TypePublic, TypePrivate:
		l, err := v.Plaintext()
		if err != nil {
			return errs.Newf(errs.TypeMismatch, "expected %s, got %s value", t, kindName(v.Kind()))
		}
		if l.Type() != t.Literal {
			return errs.Newf(errs.TypeMismatch, "expected %s, got %s literal", t, l.Type())
		}
	case TypeRecord, TypeExternalRecord:
		if _, err := v.Record(); err != nil {
			return errs.Newf(errs.TypeMismatch, "expected %s, got %s value", t, kindName(v.Kind()))
		}
	case TypeFuture:
		f, err := v.Future()
		if err != nil {
			return errs.Newf(errs.TypeMismatch, "expected %s, got %s value", t, kindName(v.Kind()))
		}
		if f.Program != t.Program || f.Function != t.Function {
			return errs.Newf(errs.TypeMismatch, "expected %s, got future of %s", t, f.Locator())
		}
	default:
		return errs.Newf(errs.TypeMismatch, "unknown type kind %d", t.Kind)
	}
	return nil
}

func kindName(k ValueKind) string {
	switch k {
	case ValuePlaintext:
		return "plaintext"
	case ValueRecord:
		return "record"
	case ValueFuture:
		return "future"
	}
	return "empty"
}

// String returns the type in source form, e.g. u64.public, credits.record,
// credits.vy/credits.record, credits.vy/fee_public.future.
func (t ValueType) String() string {
	switch t.Kind {
	case TypeConstant, TypePublic, TypePrivate:
		return t.Literal.String() + "." + t.Visibility().String()
	case TypeRecord:
		return string(t.Record) + ".record"
	case TypeExternalRecord:
		return t.Program.String() + "/" + string(t.Record) + ".record"
	case TypeFuture:
		return t.Program.String() + "/" + string(t.Function) + ".future"
	}
	return "<invalid type>"
}

// ParseValueType parses the source form produced by String.
func ParseValueType(s string) (ValueType, error) {
	s = strings.TrimSpace(s)
	dot := strings.LastIndex(s, ".")
	if dot < 0 {
		return ValueType{}, errs.Newf(errs.ParseError, "type %q has no kind suffix", s)
	}
	prefix, suffix := s[:dot], s[dot+1:]

	switch suffix {
	case "constant", "public", "private":
		lt, err := ParseLiteralType(prefix)
		if err != nil {
			return ValueType{}, err
		}
		vis, _ := ParseVisibility(suffix)
		switch vis {
		case Public:
			return PublicType(lt), nil
		case Private:
			return PrivateType(lt), nil
		}
		return ConstantType(lt), nil
	case "record":
		if pid, name, ok := strings.Cut(prefix, "/"); ok {
			id, err := ParseProgramID(pid)
			if err != nil {
				return ValueType{}, err
			}
			rn, err := ParseIdentifier(name)
			if err != nil {
				return ValueType{}, err
			}
			return ExternalRecordType(id, rn), nil
		}
		rn, err := ParseIdentifier(prefix)
		if err != nil {
			return ValueType{}, err
		}
		return RecordType(rn), nil
	case "future":
		loc, err := ParseLocator(prefix)
		if err != nil {
			return ValueType{}, err
		}
		return FutureType(loc.Program, loc.Function), nil
	}
	return ValueType{}, errs.Newf(errs.ParseError, "unknown type kind %q", suffix)
}
