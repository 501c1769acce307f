package program

import (
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

const (
	RecordCommitmentDomain = "vybium.record.commitment"
	nonceEntry             = "_nonce"
)

// Visibility controls whether a value is revealed on the ledger.
type Visibility uint8

const (
	Constant Visibility = iota
	Public
	Private
)

// String returns the visibility keyword.
func (v Visibility) String() string {
	switch v {
	case Constant:
		return "constant"
	case Public:
		return "public"
	case Private:
		return "private"
	}
	return "unknown"
}

// ParseVisibility parses a visibility keyword.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "constant":
		return Constant, nil
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	}
	return 0, errs.Newf(errs.ParseError, "unknown visibility %q", s)
}

// Entry is one named field of a record.
type Entry struct {
	Name       Identifier
	Visibility Visibility
	Value      Literal
}

// Record is an owned, spendable value.
type Record struct {
	Owner           account.Address
	OwnerVisibility Visibility
	Entries         []Entry
	// Nonce is zero until derived from the producing transition.
	Nonce core.Digest
}

// NewCreditsRecord returns a private credits record with a zero nonce.
func NewCreditsRecord(owner account.Address, microcredits uint64) *Record {
	return &Record{
		Owner:           owner,
		OwnerVisibility: Private,
		Entries: []Entry{{
			Name:       EntryMicrocredits,
			Visibility: Private,
			Value:      U64Literal(microcredits),
		}},
	}
}

// Entry returns the named entry's value.
func (r *Record) Entry(name Identifier) (Literal, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return Literal{}, false
}

// Microcredits returns the balance of a credits record.
func (r *Record) Microcredits() (uint64, error) {
	l, ok := r.Entry(EntryMicrocredits)
	if !ok {
		return 0, errs.New(errs.TypeMismatch, "record has no microcredits entry")
	}
	return l.U64()
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	out := *r
	out.Entries = append([]Entry(nil), r.Entries...)
	return &out
}

// WithNonce returns a copy of r carrying nonce.
func (r *Record) WithNonce(nonce core.Digest) *Record {
	out := r.Clone()
	out.Nonce = nonce
	return out
}

// Elements returns the record as field elements, nonce included.
func (r *Record) Elements() []field.Element {
	out := r.Owner.Elements()
	out = append(out, field.New(uint64(r.OwnerVisibility)), field.New(uint64(len(r.Entries))))
	for _, e := range r.Entries {
		out = append(out, e.Name.Elements()...)
		out = append(out, field.New(uint64(e.Visibility)))
		out = append(out, e.Value.Elements()...)
	}
	return append(out, r.Nonce[:]...)
}

// Commitment binds the record to the program and record name that produced it.
// It is the leaf a record occupies in the global state tree.
func (r *Record) Commitment(program ProgramID, name Identifier) core.Digest {
	elems := program.Elements()
	elems = append(elems, name.Elements()...)
	elems = append(elems, r.Elements()...)
	return core.PoseidonHash(RecordCommitmentDomain, elems...)
}

// Equal reports whether two records are identical.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Owner != other.Owner || r.OwnerVisibility != other.OwnerVisibility || !r.Nonce.Equal(other.Nonce) {
		return false
	}
	if len(r.Entries) != len(other.Entries) {
		return false
	}
	for i := range r.Entries {
		a, b := r.Entries[i], other.Entries[i]
		if a.Name != b.Name || a.Visibility != b.Visibility || !a.Value.Equal(b.Value) {
			return false
		}
	}
	return true
}

// String returns the record in source form:
//
//	{ owner: vy1....private, microcredits: 100u64.private, _nonce: <hex>.public }
func (r *Record) String() string {
	var b strings.Builder
	b.WriteString("{ owner: ")
	b.WriteString(r.Owner.String() + "." + r.OwnerVisibility.String())
	for _, e := range r.Entries {
		b.WriteString(", " + string(e.Name) + ": " + e.Value.String() + "." + e.Visibility.String())
	}
	b.WriteString(", " + nonceEntry + ": " + r.Nonce.String() + ".public }")
	return b.String()
}

// ParseRecord parses the source form produced by String. A missing _nonce
// leaves the nonce zero.
func ParseRecord(s string) (*Record, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, errs.New(errs.ParseError, "record must be enclosed in braces")
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, errs.New(errs.ParseError, "record is empty")
	}

	r := &Record{}
	seenOwner := false
	for _, part := range strings.Split(body, ",") {
		key, raw, ok := strings.Cut(part, ":")
		if !ok {
			return nil, errs.Newf(errs.ParseError, "record entry %q has no value", strings.TrimSpace(part))
		}
		key = strings.TrimSpace(key)
		raw = strings.TrimSpace(raw)
		dot := strings.LastIndex(raw, ".")
		if dot < 0 {
			return nil, errs.Newf(errs.ParseError, "record entry %q has no visibility", key)
		}
		vis, err := ParseVisibility(raw[dot+1:])
		if err != nil {
			return nil, err
		}
		value := raw[:dot]

		switch key {
		case "owner":
			owner, err := account.ParseAddress(value)
			if err != nil {
				return nil, err
			}
			r.Owner, r.OwnerVisibility, seenOwner = owner, vis, true
		case nonceEntry:
			nonce, err := core.ParseDigest(value)
			if err != nil {
				return nil, errs.Wrap(errs.ParseError, "record nonce", err)
			}
			r.Nonce = nonce
		default:
			name, err := ParseIdentifier(key)
			if err != nil {
				return nil, err
			}
			if _, dup := r.Entry(name); dup {
				return nil, errs.Newf(errs.ParseError, "duplicate record entry %q", name)
			}
			lit, err := ParseLiteral(value)
			if err != nil {
				return nil, err
			}
			r.Entries = append(r.Entries, Entry{Name: name, Visibility: vis, Value: lit})
		}
	}
	if !seenOwner {
		return nil, errs.New(errs.ParseError, "record has no owner")
	}
	return r, nil
}

// Argument is one argument of a future: a plaintext or a nested future.
type Argument struct {
	Plaintext *Literal
	Future    *Future
}

// PlaintextArgument wraps a literal argument.
func PlaintextArgument(l Literal) Argument {
	return Argument{Plaintext: &l}
}

// FutureArgument wraps a nested future.
func FutureArgument(f *Future) Argument {
	return Argument{Future: f}
}

func (a Argument) elements() []field.Element {
	if a.Future != nil {
		return append([]field.Element{field.One}, a.Future.Elements()...)
	}
	if a.Plaintext != nil {
		return append([]field.Element{field.Zero}, a.Plaintext.Elements()...)
	}
	return nil
}

func (a Argument) equal(other Argument) bool {
	switch {
	case a.Future != nil && other.Future != nil:
		return a.Future.Equal(other.Future)
	case a.Plaintext != nil && other.Plaintext != nil:
		return a.Plaintext.Equal(*other.Plaintext)
	}
	return false
}

func (a Argument) String() string {
	if a.Future != nil {
		return a.Future.String()
	}
	if a.Plaintext != nil {
		return a.Plaintext.String()
	}
	return "<empty>"
}

// Future records the public arguments of a call for on-chain finalization.
type Future struct {
	Program   ProgramID
	Function  Identifier
	Arguments []Argument
}

// Locator returns the function the future finalizes.
func (f *Future) Locator() Locator {
	return Locator{Program: f.Program, Function: f.Function}
}

// Elements returns the future as field elements.
func (f *Future) Elements() []field.Element {
	out := f.Locator().Elements()
	out = append(out, field.New(uint64(len(f.Arguments))))
	for _, a := range f.Arguments {
		out = append(out, a.elements()...)
	}
	return out
}

// Equal reports whether two futures are identical.
func (f *Future) Equal(other *Future) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.Program != other.Program || f.Function != other.Function || len(f.Arguments) != len(other.Arguments) {
		return false
	}
	for i := range f.Arguments {
		if !f.Arguments[i].equal(other.Arguments[i]) {
			return false
		}
	}
	return true
}

// String returns "program/function(arg, ...)".
func (f *Future) String() string {
	args := make([]string, len(f.Arguments))
	for i, a := range f.Arguments {
		args[i] = a.String()
	}
	return f.Locator().String() + "(" + strings.Join(args, ", ") + ")"
}

// ValueKind discriminates Value.
type ValueKind uint8

const (
	ValuePlaintext ValueKind = iota + 1
	ValueRecord
	ValueFuture
)

// Value is a register value: a plaintext, a record or a future.
type Value struct {
	kind      ValueKind
	plaintext Literal
	record    *Record
	future    *Future
}

// PlaintextValue wraps a literal.
func PlaintextValue(l Literal) Value {
	return Value{kind: ValuePlaintext, plaintext: l}
}

// RecordValue wraps a record.
func RecordValue(r *Record) Value {
	return Value{kind: ValueRecord, record: r}
}

// FutureValue wraps a future.
func FutureValue(f *Future) Value {
	return Value{kind: ValueFuture, future: f}
}

// Kind returns the value's variant.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Plaintext returns the literal of a plaintext value.
func (v Value) Plaintext() (Literal, error) {
	if v.kind != ValuePlaintext {
		return Literal{}, errs.New(errs.TypeMismatch, "value is not a plaintext")
	}
	return v.plaintext, nil
}

// Record returns the record of a record value.
func (v Value) Record() (*Record, error) {
	if v.kind != ValueRecord || v.record == nil {
		return nil, errs.New(errs.TypeMismatch, "value is not a record")
	}
	return v.record, nil
}

// Future returns the future of a future value.
func (v Value) Future() (*Future, error) {
	if v.kind != ValueFuture || v.future == nil {
		return nil, errs.New(errs.TypeMismatch, "value is not a future")
	}
	return v.future, nil
}

// Elements returns the kind tag followed by the payload as field elements.
func (v Value) Elements() []field.Element {
	out := []field.Element{field.New(uint64(v.kind))}
	switch v.kind {
	case ValuePlaintext:
		out = append(out, v.plaintext.Elements()...)
	case ValueRecord:
		out = append(out, v.record.Elements()...)
	case ValueFuture:
		out = append(out, v.future.Elements()...)
	}
	return out
}

// Equal reports whether two values are identical.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case ValuePlaintext:
		return v.plaintext.Equal(other.plaintext)
	case ValueRecord:
		return v.record.Equal(other.record)
	case ValueFuture:
		return v.future.Equal(other.future)
	}
	return true
}

// String returns the value in source form.
func (v Value) String() string {
	switch v.kind {
	case ValuePlaintext:
		return v.plaintext.String()
	case ValueRecord:
		return v.record.String()
	case ValueFuture:
		return v.future.String()
	}
	return "<invalid value>"
}

// ParseValue parses a literal or a record in source form.
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		r, err := ParseRecord(s)
		if err != nil {
			return Value{}, err
		}
		return RecordValue(r), nil
	}
	l, err := ParseLiteral(s)
	if err != nil {
		return Value{}, err
	}
	return PlaintextValue(l), nil
}
