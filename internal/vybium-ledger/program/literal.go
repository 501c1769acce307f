package program

import (
	"strconv"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

// LiteralType enumerates the primitive types.
type LiteralType uint8

const (
	LiteralAddress LiteralType = iota + 1
	LiteralBoolean
	LiteralField
	LiteralU64
	LiteralDigest
)

var literalTypeNames = map[LiteralType]string{
	LiteralAddress: "address",
	LiteralBoolean: "boolean",
	LiteralField:   "field",
	LiteralU64:     "u64",
	LiteralDigest:  "digest",
}

// String returns the type keyword.
func (t LiteralType) String() string {
	if name, ok := literalTypeNames[t]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is a known literal type.
func (t LiteralType) Valid() bool {
	_, ok := literalTypeNames[t]
	return ok
}

// ParseLiteralType parses a type keyword.
func ParseLiteralType(s string) (LiteralType, error) {
	for t, name := range literalTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, errs.Newf(errs.ParseError, "unknown literal type %q", s)
}

// Literal is a typed primitive value.
type Literal struct {
	typ     LiteralType
	address account.Address
	boolean bool
	field   field.Element
	u64     uint64
	digest  core.Digest
}

// AddressLiteral wraps an address.
func AddressLiteral(a account.Address) Literal {
	return Literal{typ: LiteralAddress, address: a}
}

// BoolLiteral wraps a boolean.
func BoolLiteral(b bool) Literal {
	return Literal{typ: LiteralBoolean, boolean: b}
}

// FieldLiteral wraps a field element.
func FieldLiteral(e field.Element) Literal {
	return Literal{typ: LiteralField, field: e}
}

// U64Literal wraps an unsigned integer.
func U64Literal(v uint64) Literal {
	return Literal{typ: LiteralU64, u64: v}
}

// DigestLiteral wraps a digest.
func DigestLiteral(d core.Digest) Literal {
	return Literal{typ: LiteralDigest, digest: d}
}

// Type returns the literal's type.
func (l Literal) Type() LiteralType {
	return l.typ
}

func (l Literal) expect(t LiteralType) error {
	if l.typ != t {
		return errs.Newf(errs.TypeMismatch, "expected %s literal, got %s", t, l.typ)
	}
	return nil
}

// Address returns the address payload.
func (l Literal) Address() (account.Address, error) {
	return l.address, l.expect(LiteralAddress)
}

// Bool returns the boolean payload.
func (l Literal) Bool() (bool, error) {
	return l.boolean, l.expect(LiteralBoolean)
}

// Field returns the field payload.
func (l Literal) Field() (field.Element, error) {
	return l.field, l.expect(LiteralField)
}

// U64 returns the integer payload.
func (l Literal) U64() (uint64, error) {
	return l.u64, l.expect(LiteralU64)
}

// Digest returns the digest payload.
func (l Literal) Digest() (core.Digest, error) {
	return l.digest, l.expect(LiteralDigest)
}

// Elements returns the type tag followed by the payload as field elements.
func (l Literal) Elements() []field.Element {
	out := []field.Element{field.New(uint64(l.typ))}
	switch l.typ {
	case LiteralAddress:
		out = append(out, l.address.Elements()...)
	case LiteralBoolean:
		out = append(out, core.BoolToElement(l.boolean))
	case LiteralField:
		out = append(out, l.field)
	case LiteralU64:
		out = append(out, core.U64ToElements(l.u64)...)
	case LiteralDigest:
		out = append(out, l.digest.Elements()...)
	}
	return out
}

// Equal reports whether two literals have the same type and payload.
func (l Literal) Equal(other Literal) bool {
	if l.typ != other.typ {
		return false
	}
	switch l.typ {
	case LiteralAddress:
		return l.address == other.address
	case LiteralBoolean:
		return l.boolean == other.boolean
	case LiteralField:
		return l.field.Equal(other.field)
	case LiteralU64:
		return l.u64 == other.u64
	case LiteralDigest:
		return l.digest.Equal(other.digest)
	}
	return true
}

// String returns the literal in source form: vy1..., true, 5field, 100u64,
// <hex>digest.
func (l Literal) String() string {
	switch l.typ {
	case LiteralAddress:
		return l.address.String()
	case LiteralBoolean:
		return strconv.FormatBool(l.boolean)
	case LiteralField:
		return strconv.FormatUint(l.field.Value(), 10) + "field"
	case LiteralU64:
		return strconv.FormatUint(l.u64, 10) + "u64"
	case LiteralDigest:
		return l.digest.String() + "digest"
	}
	return "<invalid literal>"
}

// ParseLiteral parses the source form produced by String.
func ParseLiteral(s string) (Literal, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "vy1"):
		a, err := account.ParseAddress(s)
		if err != nil {
			return Literal{}, err
		}
		return AddressLiteral(a), nil
	case s == "true" || s == "false":
		return BoolLiteral(s == "true"), nil
	case strings.HasSuffix(s, "u64"):
		v, err := strconv.ParseUint(strings.TrimSuffix(s, "u64"), 10, 64)
		if err != nil {
			return Literal{}, errs.Wrap(errs.ParseError, "u64 literal "+s, err)
		}
		return U64Literal(v), nil
	case strings.HasSuffix(s, "digest"):
		d, err := core.ParseDigest(strings.TrimSuffix(s, "digest"))
		if err != nil {
			return Literal{}, errs.Wrap(errs.ParseError, "digest literal", err)
		}
		return DigestLiteral(d), nil
	case strings.HasSuffix(s, "field"):
		v, err := strconv.ParseUint(strings.TrimSuffix(s, "field"), 10, 64)
		if err != nil {
			return Literal{}, errs.Wrap(errs.ParseError, "field literal "+s, err)
		}
		e, err := core.ElementFromUint64(v)
		if err != nil {
			return Literal{}, errs.Wrap(errs.ParseError, "field literal", err)
		}
		return FieldLiteral(e), nil
	}
	return Literal{}, errs.Newf(errs.ParseError, "unrecognized literal %q", s)
}
