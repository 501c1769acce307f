// Package program defines the data model of ledger programs: program and
// function identifiers, literals, records, futures, values and their types.
package program

import (
	"strconv"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

// MaxIdentifierLen is the longest accepted identifier in bytes.
const MaxIdentifierLen = 31

// Identifier names a function, record, record entry or network.
type Identifier string

// ParseIdentifier validates s as an identifier: a lowercase letter followed by
// lowercase letters, digits or underscores.
func ParseIdentifier(s string) (Identifier, error) {
	if s == "" {
		return "", errs.New(errs.ParseError, "identifier is empty")
	}
	if len(s) > MaxIdentifierLen {
		return "", errs.Newf(errs.ParseError, "identifier %q exceeds %d bytes", s, MaxIdentifierLen)
	}
	for i, c := range []byte(s) {
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9' || c == '_'):
		default:
			return "", errs.Newf(errs.ParseError, "identifier %q has invalid character at %d", s, i)
		}
	}
	return Identifier(s), nil
}

// String returns the identifier.
func (id Identifier) String() string {
	return string(id)
}

// Elements returns the identifier as field elements.
func (id Identifier) Elements() []field.Element {
	return core.BytesToElements([]byte(id))
}

// ProgramID is a program name qualified by its network, e.g. credits.vy.
type ProgramID struct {
	Name    Identifier
	Network Identifier
}

// ParseProgramID parses "name.network".
func ParseProgramID(s string) (ProgramID, error) {
	name, network, ok := strings.Cut(s, ".")
	if !ok {
		return ProgramID{}, errs.Newf(errs.ParseError, "program id %q must be name.network", s)
	}
	n, err := ParseIdentifier(name)
	if err != nil {
		return ProgramID{}, err
	}
	net, err := ParseIdentifier(network)
	if err != nil {
		return ProgramID{}, err
	}
	return ProgramID{Name: n, Network: net}, nil
}

// String returns "name.network".
func (p ProgramID) String() string {
	return string(p.Name) + "." + string(p.Network)
}

// Elements returns the program id as field elements.
func (p ProgramID) Elements() []field.Element {
	return append(p.Name.Elements(), p.Network.Elements()...)
}

// Locator names one function of one program.
type Locator struct {
	Program  ProgramID
	Function Identifier
}

// ParseLocator parses "name.network/function".
func ParseLocator(s string) (Locator, error) {
	pid, fn, ok := strings.Cut(s, "/")
	if !ok {
		return Locator{}, errs.Newf(errs.ParseError, "locator %q must be program/function", s)
	}
	id, err := ParseProgramID(pid)
	if err != nil {
		return Locator{}, err
	}
	name, err := ParseIdentifier(fn)
	if err != nil {
		return Locator{}, err
	}
	return Locator{Program: id, Function: name}, nil
}

// String returns "program/function".
func (l Locator) String() string {
	return l.Program.String() + "/" + string(l.Function)
}

// Elements returns the locator as field elements.
func (l Locator) Elements() []field.Element {
	return append(l.Program.Elements(), l.Function.Elements()...)
}

// Register addresses a slot in a function's register file. Its locator is the
// index used to separate derivations per output.
type Register uint16

// ParseRegister parses "r<N>".
func ParseRegister(s string) (Register, error) {
	if !strings.HasPrefix(s, "r") {
		return 0, errs.Newf(errs.ParseError, "register %q must start with r", s)
	}
	n, err := strconv.ParseUint(s[1:], 10, 16)
	if err != nil {
		return 0, errs.Wrap(errs.ParseError, "register "+s, err)
	}
	return Register(n), nil
}

// String returns "r<N>".
func (r Register) String() string {
	return "r" + strconv.FormatUint(uint64(r), 10)
}

// Element returns the register locator as a field element.
func (r Register) Element() field.Element {
	return field.New(uint64(r))
}
